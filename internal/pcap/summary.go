package pcap

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// SessionSummary provides high-level stats for a recorded IP150 session.
type SessionSummary struct {
	Segments       int
	ClientBytes    int
	PanelBytes     int
	Requests       int
	Responses      int
	Kinds          map[string]int
	RAMReads       int
	EEPROMReads    int
	Events         int
	ChecksumErrors int
	FramingErrors  int
}

var requestNames = map[byte]string{
	protocol.OpcodeInitialize: "initialize",
	protocol.OpcodeReadMemory: "read memory",
	protocol.OpcodeSerialInit: "serial init",
	protocol.OpcodeInitComm:   "init comm",
}

var responseNames = map[byte]string{
	protocol.CommandLoginConfirm: "login confirm",
	protocol.CommandReadMemory:   "read memory",
	0x7:                          "init comm",
	0xE:                          "event",
}

var moduleNames = map[byte]string{
	protocol.ModuleCommandLogin:   "login",
	protocol.ModuleCommandProbeF2: "probe F2",
	protocol.ModuleCommandProbeF3: "probe F3",
	protocol.ModuleCommandProbeF8: "probe F8",
}

// SummarizeSession summarizes the IP150 traffic in a pcap stream. A zero
// panelPort infers the client from the first payload.
func SummarizeSession(r io.Reader, panelPort uint16) (*SessionSummary, error) {
	segments, err := ReadSegments(r, panelPort)
	if err != nil {
		return nil, err
	}

	summary := &SessionSummary{Kinds: make(map[string]int)}
	for _, seg := range segments {
		summary.Segments++
		if seg.FromClient {
			summary.ClientBytes += len(seg.Data)
		} else {
			summary.PanelBytes += len(seg.Data)
		}

		packets, err := protocol.SplitPackets(seg.Data)
		if err != nil {
			summary.FramingErrors++
			continue
		}
		for _, pkt := range packets {
			summary.add(pkt, seg.FromClient)
		}
	}
	return summary, nil
}

// SummarizeFile summarizes a pcap file.
func SummarizeFile(path string, panelPort uint16) (*SessionSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pcap file: %w", err)
	}
	defer f.Close()
	return SummarizeSession(f, panelPort)
}

func (s *SessionSummary) add(pkt protocol.Packet, fromClient bool) {
	h := protocol.DecodeHeader(pkt.Header)
	direction := "response"
	if fromClient {
		direction = "request"
		s.Requests++
	} else {
		s.Responses++
	}

	if h.MessageType == protocol.MessageTypeModule && h.Command != protocol.ModuleCommandPassthrough {
		name, ok := moduleNames[h.Command]
		if !ok {
			name = fmt.Sprintf("module 0x%02X", h.Command)
		}
		s.Kinds[direction+" "+name]++
		return
	}
	if len(pkt.Body) == 0 {
		s.Kinds[direction+" empty"]++
		return
	}

	declared := int(h.Length)
	if declared > len(pkt.Body) {
		declared = len(pkt.Body)
	}
	body := pkt.Body[:declared]

	var name string
	var ok bool
	if fromClient {
		name, ok = requestNames[pkt.Body[0]]
		if !ok {
			name = fmt.Sprintf("0x%02X", pkt.Body[0])
		}
		if pkt.Body[0] == protocol.OpcodeReadMemory && len(body) >= protocol.ReadMemoryBodySize {
			if protocol.GetBit(uint32(body[2]), protocol.ControlByteRAMBit) {
				s.RAMReads++
			} else {
				s.EEPROMReads++
			}
			s.checkSum(body)
		}
	} else {
		command := protocol.HighNibble(pkt.Body[0])
		name, ok = responseNames[command]
		if !ok {
			name = fmt.Sprintf("0x%X", command)
		}
		switch command {
		case 0xE:
			s.Events++
		case protocol.CommandReadMemory:
			if len(body) > protocol.ReadMemoryPayloadOffset {
				s.checkSum(body)
			}
		}
	}
	s.Kinds[direction+" "+name]++
}

func (s *SessionSummary) checkSum(body []byte) {
	if protocol.Checksum(body[:len(body)-1]) != body[len(body)-1] {
		s.ChecksumErrors++
	}
}

// FormatSessionSummary renders a summary as aligned text.
func FormatSessionSummary(s *SessionSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Segments:        %d (client %d bytes, panel %d bytes)\n", s.Segments, s.ClientBytes, s.PanelBytes)
	fmt.Fprintf(&b, "Messages:        %d requests, %d responses\n", s.Requests, s.Responses)
	fmt.Fprintf(&b, "Memory reads:    %d RAM, %d EEPROM\n", s.RAMReads, s.EEPROMReads)
	fmt.Fprintf(&b, "Live events:     %d\n", s.Events)
	if s.ChecksumErrors > 0 || s.FramingErrors > 0 {
		fmt.Fprintf(&b, "Errors:          %d checksum, %d framing\n", s.ChecksumErrors, s.FramingErrors)
	}

	kinds := make([]string, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	if len(kinds) > 0 {
		b.WriteString("Message kinds:\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-26s %d\n", k, s.Kinds[k])
		}
	}
	return b.String()
}
