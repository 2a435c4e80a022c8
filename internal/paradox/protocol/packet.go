package protocol

// Message framing: 16-byte header, body, 0xEE padding

import (
	"fmt"
)

// Header holds the variable fields of a message header. Bytes 2 and 6 are
// always zero and bytes 8..15 are fill.
type Header struct {
	Length      byte // body length before padding
	MessageType byte
	Flags       byte
	Command     byte
	Mode        byte
}

// NewRequestHeader returns a header with the request flags set.
func NewRequestHeader(length int, messageType, command, mode byte) Header {
	return Header{
		Length:      byte(length),
		MessageType: messageType,
		Flags:       FlagsRequest,
		Command:     command,
		Mode:        mode,
	}
}

// Encode returns the 16-byte wire form of the header.
func (h Header) Encode() []byte {
	raw := []byte{SyncByte, h.Length, 0x00, h.MessageType, h.Flags, h.Command, 0x00, h.Mode}
	return PadRight(raw, HeaderSize, FillByte)
}

// DecodeHeader reads the variable fields back out of a raw header.
func DecodeHeader(raw [HeaderSize]byte) Header {
	return Header{
		Length:      raw[1],
		MessageType: raw[3],
		Flags:       raw[4],
		Command:     raw[5],
		Mode:        raw[7],
	}
}

// Packet is one framed message. Body includes any trailing fill bytes that
// followed the declared length.
type Packet struct {
	Header [HeaderSize]byte
	Body   []byte
}

// Command returns the high nibble of the first body byte, or false for an
// empty body.
func (p Packet) Command() (byte, bool) {
	if len(p.Body) == 0 {
		return 0, false
	}
	return HighNibble(p.Body[0]), true
}

// Bytes returns header and body concatenated.
func (p Packet) Bytes() []byte {
	out := make([]byte, 0, HeaderSize+len(p.Body))
	out = append(out, p.Header[:]...)
	return append(out, p.Body...)
}

// Encode builds a message from a header and a body.
func Encode(h Header, body []byte) []byte {
	out := h.Encode()
	return append(out, body...)
}

// FramingError reports a buffer that cannot be split into messages.
type FramingError struct {
	Offset int
	Reason string
}

func (e *FramingError) Error() string {
	return fmt.Sprintf("framing error at offset %d: %s", e.Offset, e.Reason)
}

// SplitPackets splits a raw read into the messages it contains, in arrival
// order. A read can carry more than one response, e.g. a live event pushed
// between a request and its answer.
func SplitPackets(buf []byte) ([]Packet, error) {
	var packets []Packet
	offset := 0

	for offset < len(buf) {
		rest := buf[offset:]
		if len(rest) < HeaderSize {
			return nil, &FramingError{Offset: offset, Reason: fmt.Sprintf("no %d byte header found (%d bytes left)", HeaderSize, len(rest))}
		}
		if rest[0] != SyncByte {
			return nil, &FramingError{Offset: offset, Reason: fmt.Sprintf("sync byte 0x%02X, want 0x%02X", rest[0], SyncByte)}
		}

		var pkt Packet
		copy(pkt.Header[:], rest[:HeaderSize])
		length := int(rest[1])
		rest = rest[HeaderSize:]
		offset += HeaderSize

		if len(rest) < length {
			return nil, &FramingError{Offset: offset, Reason: fmt.Sprintf("unexpected end of data: body length %d, %d bytes left", length, len(rest))}
		}

		// Padding is heuristic: it ends at the first non-fill byte.
		for length < len(rest) && rest[length] == FillByte {
			length++
		}

		pkt.Body = make([]byte, length)
		copy(pkt.Body, rest[:length])
		packets = append(packets, pkt)
		offset += length
	}

	return packets, nil
}
