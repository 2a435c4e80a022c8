package panelsim

import (
	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// parseStream splits complete requests off the front of buffer and returns
// them with the unconsumed remainder. Bytes between messages (block fill,
// line noise) are skipped up to the next sync byte. A request's body is
// exactly the declared length; any fill after it is skipped as well.
func parseStream(buffer []byte) ([]protocol.Packet, []byte) {
	packets := make([]protocol.Packet, 0)
	offset := 0

	for offset < len(buffer) {
		if buffer[offset] != protocol.SyncByte {
			offset++
			continue
		}
		if len(buffer[offset:]) < protocol.HeaderSize {
			break
		}
		length := int(buffer[offset+1])
		total := protocol.HeaderSize + length
		if len(buffer[offset:]) < total {
			break
		}

		var pkt protocol.Packet
		copy(pkt.Header[:], buffer[offset:offset+protocol.HeaderSize])
		pkt.Body = make([]byte, length)
		copy(pkt.Body, buffer[offset+protocol.HeaderSize:offset+total])
		packets = append(packets, pkt)
		offset += total
	}

	if offset == 0 {
		return packets, buffer
	}
	remaining := make([]byte, len(buffer)-offset)
	copy(remaining, buffer[offset:])
	return packets, remaining
}
