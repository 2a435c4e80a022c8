package pcap

// Hex dumps of panel memory and recorded messages

import (
	"fmt"
	"strings"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// HexDump renders data as rows of offset, hex bytes and printable ASCII.
func HexDump(data []byte, width int) string {
	return HexDumpAt(data, 0, width)
}

// HexDumpAt is HexDump with offsets counted from base, e.g. the EEPROM
// address the data was read from.
func HexDumpAt(data []byte, base uint32, width int) string {
	if width <= 0 {
		width = 16
	}

	var sb strings.Builder
	for row := 0; row < len(data); row += width {
		line := data[row:min(row+width, len(data))]
		fmt.Fprintf(&sb, "%05X: %-*s |%s|\n", base+uint32(row), width*3-1, protocol.HexString(line), printable(line))
	}
	return sb.String()
}

func printable(data []byte) string {
	out := make([]byte, len(data))
	for i, b := range data {
		if b >= 0x20 && b < 0x7F {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

// FormatPacketHex formats a panel message. With annotate set, the header
// fields are decoded and the header and body are dumped separately.
func FormatPacketHex(data []byte, annotate bool) string {
	if !annotate || len(data) < protocol.HeaderSize {
		return HexDump(data, 16)
	}

	h := protocol.DecodeHeader([protocol.HeaderSize]byte(data[:protocol.HeaderSize]))
	out := fmt.Sprintf("Header (len=%d type=0x%02X flags=0x%02X cmd=0x%02X mode=0x%02X):\n%s",
		h.Length, h.MessageType, h.Flags, h.Command, h.Mode, HexDump(data[:protocol.HeaderSize], 16))
	if body := data[protocol.HeaderSize:]; len(body) > 0 {
		out += "Body:\n" + HexDump(body, 16)
	}
	return out
}
