package protocol

// Byte-level helpers shared by the request builders and response decoders

import (
	"fmt"
	"strings"
)

// HighNibble returns bits 7..4 of b.
func HighNibble(b byte) byte {
	return (b & 0xF0) >> 4
}

// LowNibble returns bits 3..0 of b.
func LowNibble(b byte) byte {
	return b & 0x0F
}

// GetBit reports whether bit pos of value is set.
// pos must be below 32.
func GetBit(value uint32, pos uint) bool {
	return value&(1<<pos) != 0
}

// SetBit returns value with bit pos set or cleared.
// pos must be below 8.
func SetBit(value byte, pos uint, on bool) byte {
	if on {
		return value | (1 << pos)
	}
	return value &^ (1 << pos)
}

// Checksum returns the 8-bit wraparound sum of data.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// SealChecksum stores the checksum of body[:len-1] in the last byte of body.
func SealChecksum(body []byte) []byte {
	if len(body) == 0 {
		return body
	}
	body[len(body)-1] = Checksum(body[:len(body)-1])
	return body
}

// ASCIIBytes encodes text one byte per rune. Runes outside ASCII, and
// invalid UTF-8 bytes, become '?'.
func ASCIIBytes(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if r > 0x7F {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out
}

// ASCIIFixedWidth encodes text with ASCIIBytes as exactly width bytes,
// truncating long text and right-padding short text with fill.
func ASCIIFixedWidth(text string, width int, fill byte) []byte {
	out := make([]byte, width)
	n := copy(out, ASCIIBytes(text))
	for i := n; i < width; i++ {
		out[i] = fill
	}
	return out
}

// DecodeASCIITrimmed decodes data[offset:offset+length] as ASCII and strips
// trailing spaces and NUL bytes. Bytes above 0x7F decode as '?'.
func DecodeASCIITrimmed(data []byte, offset, length int) string {
	raw := data[offset : offset+length]
	out := make([]byte, len(raw))
	for i, b := range raw {
		if b > 0x7F {
			b = '?'
		}
		out[i] = b
	}
	return strings.TrimRight(string(out), " \x00")
}

// SplitAddress18 splits an 18-bit memory address into its low byte, middle
// byte and the two high bits. Bits above 17 are ignored.
func SplitAddress18(value uint32) (bits0to7, bits8to15, bits16to17 byte) {
	bits0to7 = byte(value & 0xFF)
	bits8to15 = byte((value & 0xFF00) >> 8)
	bits16to17 = byte((value & 0x30000) >> 16)
	return bits0to7, bits8to15, bits16to17
}

// PadRight returns a copy of data extended to n bytes with fill. Data longer
// than n is copied unchanged.
func PadRight(data []byte, n int, fill byte) []byte {
	size := len(data)
	if n > size {
		size = n
	}
	out := make([]byte, size)
	copy(out, data)
	for i := len(data); i < size; i++ {
		out[i] = fill
	}
	return out
}

// HexString renders data as upper-case hex pairs separated by spaces.
func HexString(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(fmt.Sprintf("%02X", b))
	}
	return sb.String()
}
