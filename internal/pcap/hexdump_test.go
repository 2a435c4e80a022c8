package pcap

import (
	"strings"
	"testing"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

func TestHexDump(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0x03, 'Z', 'O', 'N', 'E', 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0xAA}

	dump := HexDump(data, 16)

	if !strings.Contains(dump, "0000:") || !strings.Contains(dump, "0010:") {
		t.Errorf("hex dump should contain offsets:\n%s", dump)
	}
	if !strings.Contains(dump, "00 01 02 03") {
		t.Error("hex dump should contain hex bytes")
	}
	if !strings.Contains(dump, "|....ZONE........|") {
		t.Errorf("hex dump should contain ASCII column:\n%s", dump)
	}
}

func TestHexDumpAt(t *testing.T) {
	dump := HexDumpAt([]byte("Front Door\x00\x00"), 0x430, 8)
	want := "00430: 46 72 6F 6E 74 20 44 6F |Front Do|\n" +
		"00438: 6F 72 00 00             |or..|\n"
	if dump != want {
		t.Errorf("dump =\n%s\nwant\n%s", dump, want)
	}
	if HexDumpAt(nil, 0x430, 8) != "" {
		t.Error("empty data should give an empty dump")
	}
}

func TestFormatPacketHex(t *testing.T) {
	h := protocol.NewRequestHeader(3, protocol.MessageTypePassthrough, protocol.ModuleCommandPassthrough, protocol.ModeSession)
	data := protocol.Encode(h, []byte{0x50, 0x08, 0x58})

	annotated := FormatPacketHex(data, true)
	if !strings.Contains(annotated, "Header (len=3 type=0x04 flags=0x08 cmd=0x00 mode=0x14)") {
		t.Errorf("annotated = %s", annotated)
	}
	if !strings.Contains(annotated, "Body:") {
		t.Error("annotated format should label the body")
	}

	if strings.Contains(FormatPacketHex(data[:8], true), "Header") {
		t.Error("short data should not be annotated")
	}
}
