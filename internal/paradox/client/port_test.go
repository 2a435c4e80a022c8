package client

import (
	"context"
	"errors"
	"time"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// scriptPort replays one scripted reply chunk per Send.
type scriptPort struct {
	sent    [][]byte
	replies [][]byte
	pending [][]byte
	closed  bool
}

var errScriptTimeout = errors.New("script: read timeout")

func newScriptPort(replies ...[]byte) *scriptPort {
	return &scriptPort{replies: replies}
}

func (p *scriptPort) Send(_ context.Context, data []byte) error {
	p.sent = append(p.sent, append([]byte(nil), data...))
	if len(p.replies) > 0 {
		if p.replies[0] != nil {
			p.pending = append(p.pending, p.replies[0])
		}
		p.replies = p.replies[1:]
	}
	return nil
}

func (p *scriptPort) ReceiveRaw(_ context.Context, max int) ([]byte, error) {
	if len(p.pending) == 0 {
		return nil, errScriptTimeout
	}
	chunk := p.pending[0]
	p.pending = p.pending[1:]
	if len(chunk) > max {
		chunk = chunk[:max]
	}
	return chunk, nil
}

func (p *scriptPort) DataAvailable() bool {
	return len(p.pending) > 0
}

func (p *scriptPort) Close() error {
	p.closed = true
	return nil
}

// countingSleep records sleeps without waiting.
type countingSleep struct {
	calls int
	total time.Duration
}

func (c *countingSleep) sleep(_ context.Context, d time.Duration) error {
	c.calls++
	c.total += d
	return nil
}

func testReader(c *countingSleep) *Reader {
	r := NewReader()
	r.Sleep = c.sleep
	return r
}

func responsePacket(flags byte, body []byte, padTo int) []byte {
	h := protocol.Header{
		Length:      byte(len(body)),
		MessageType: protocol.MessageTypePassthrough,
		Flags:       flags,
		Command:     protocol.ModuleCommandPassthrough,
		Mode:        protocol.ModeSession,
	}
	return protocol.Encode(h, protocol.PadRight(body, padTo, protocol.FillByte))
}

func concat(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}
