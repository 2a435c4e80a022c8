package pcap

// Offline replay of a recorded panel session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/tturner/evoprobe/internal/paradox/client"
)

// ErrReplayExhausted is returned by ReceiveRaw when the recording holds no
// further panel data for the current request.
var ErrReplayExhausted = errors.New("replay: no more recorded responses")

// Segment is one TCP payload from a recording.
type Segment struct {
	FromClient bool
	Data       []byte
}

// MismatchError reports a request that differs from the recorded one.
type MismatchError struct {
	Index    int
	Got      []byte
	Recorded []byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("replay: request %d differs from recording (%d bytes sent, %d recorded)", e.Index, len(e.Got), len(e.Recorded))
}

// ReadSegments extracts the TCP payloads exchanged with panelPort from a pcap
// stream. A zero panelPort means the first payload's sender is the client.
func ReadSegments(r io.Reader, panelPort uint16) ([]Segment, error) {
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open pcap: %w", err)
	}

	var segments []Segment
	var clientKey string
	source := gopacket.NewPacketSource(reader, reader.LinkType())
	for packet := range source.Packets() {
		layer := packet.Layer(layers.LayerTypeTCP)
		if layer == nil {
			continue
		}
		tcp, _ := layer.(*layers.TCP)
		if tcp == nil || len(tcp.Payload) == 0 {
			continue
		}

		var fromClient bool
		switch {
		case panelPort != 0:
			if tcp.DstPort != layers.TCPPort(panelPort) && tcp.SrcPort != layers.TCPPort(panelPort) {
				continue
			}
			fromClient = tcp.DstPort == layers.TCPPort(panelPort)
		default:
			key := sourceKey(packet, tcp)
			if clientKey == "" {
				clientKey = key
			}
			fromClient = key == clientKey
		}
		segments = append(segments, Segment{
			FromClient: fromClient,
			Data:       append([]byte(nil), tcp.Payload...),
		})
	}
	return segments, nil
}

// sourceKey identifies the sending endpoint of a packet.
func sourceKey(packet gopacket.Packet, tcp *layers.TCP) string {
	var src string
	if network := packet.NetworkLayer(); network != nil {
		src = network.NetworkFlow().Src().String()
	}
	return fmt.Sprintf("%s:%d", src, tcp.SrcPort)
}

// ReplayPort is a client.Port that answers from a recording. Each Send
// consumes the next recorded client segment and queues the panel segments
// that followed it.
type ReplayPort struct {
	mu       sync.Mutex
	segments []Segment
	next     int
	sent     int
	pending  [][]byte
	strict   bool
	closed   bool
}

var _ client.Port = (*ReplayPort)(nil)

// NewReplayPort replays segments. In strict mode a request that differs from
// the recorded one fails with *MismatchError.
func NewReplayPort(segments []Segment, strict bool) *ReplayPort {
	p := &ReplayPort{segments: segments, strict: strict}
	p.queuePanel()
	return p
}

// OpenReplay loads a recording from path.
func OpenReplay(path string, panelPort uint16, strict bool) (*ReplayPort, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer file.Close()

	segments, err := ReadSegments(file, panelPort)
	if err != nil {
		return nil, err
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("replay %s: no TCP payloads found", path)
	}
	return NewReplayPort(segments, strict), nil
}

// queuePanel moves panel segments up to the next client segment into pending.
func (p *ReplayPort) queuePanel() {
	for p.next < len(p.segments) && !p.segments[p.next].FromClient {
		p.pending = append(p.pending, p.segments[p.next].Data)
		p.next++
	}
}

func (p *ReplayPort) Send(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return fmt.Errorf("replay: port closed")
	}
	if p.next >= len(p.segments) {
		return fmt.Errorf("replay: request %d beyond end of recording", p.sent+1)
	}
	recorded := p.segments[p.next].Data
	p.sent++
	if p.strict && !bytes.Equal(recorded, data) {
		return &MismatchError{Index: p.sent, Got: append([]byte(nil), data...), Recorded: recorded}
	}
	p.next++
	p.queuePanel()
	return nil
}

func (p *ReplayPort) ReceiveRaw(_ context.Context, max int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("replay: port closed")
	}
	if len(p.pending) == 0 {
		return nil, ErrReplayExhausted
	}
	chunk := p.pending[0]
	if max > 0 && len(chunk) > max {
		p.pending[0] = chunk[max:]
		return chunk[:max], nil
	}
	p.pending = p.pending[1:]
	return chunk, nil
}

// DataAvailable is true once the port is closed so that ReceiveRaw reports
// it.
func (p *ReplayPort) DataAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed || len(p.pending) > 0
}

func (p *ReplayPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.pending = nil
	return nil
}

// Remaining returns the number of recorded client requests not yet replayed.
func (p *ReplayPort) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.segments[p.next:] {
		if s.FromClient {
			n++
		}
	}
	return n
}
