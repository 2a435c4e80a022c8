package pcap

import (
	"bytes"
	"context"
	"errors"
	"net/netip"
	"path/filepath"
	"testing"
)

// echoPort answers each Send with a fixed reply chunk.
type echoPort struct {
	replies [][]byte
	pending [][]byte
	closed  bool
}

func (p *echoPort) Send(_ context.Context, data []byte) error {
	if len(p.replies) > 0 {
		p.pending = append(p.pending, p.replies[0])
		p.replies = p.replies[1:]
	}
	return nil
}

func (p *echoPort) ReceiveRaw(_ context.Context, max int) ([]byte, error) {
	if len(p.pending) == 0 {
		return nil, errors.New("timeout")
	}
	chunk := p.pending[0]
	p.pending = p.pending[1:]
	return chunk, nil
}

func (p *echoPort) DataAvailable() bool { return len(p.pending) > 0 }

func (p *echoPort) Close() error {
	p.closed = true
	return nil
}

func TestRecordThenReplay(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, DefaultClientEndpoint, DefaultPanelEndpoint)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	inner := &echoPort{replies: [][]byte{{0xAA, 0x01}, {0xAA, 0x02, 0x03}}}
	port := NewRecordingPort(inner, rec)
	for i, req := range [][]byte{{0x10}, {0x20, 0x21}} {
		if err := port.Send(ctx, req); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
		if !port.DataAvailable() {
			t.Fatalf("reply %d not available", i)
		}
		if _, err := port.ReceiveRaw(ctx, 2048); err != nil {
			t.Fatalf("ReceiveRaw %d: %v", i, err)
		}
	}
	if err := port.Close(); err != nil || !inner.closed {
		t.Fatalf("Close = %v, inner closed = %v", err, inner.closed)
	}

	segments, err := ReadSegments(bytes.NewReader(buf.Bytes()), DefaultPanelEndpoint.Port())
	if err != nil {
		t.Fatalf("ReadSegments: %v", err)
	}
	want := []Segment{
		{FromClient: true, Data: []byte{0x10}},
		{FromClient: false, Data: []byte{0xAA, 0x01}},
		{FromClient: true, Data: []byte{0x20, 0x21}},
		{FromClient: false, Data: []byte{0xAA, 0x02, 0x03}},
	}
	if len(segments) != len(want) {
		t.Fatalf("segments = %d, want %d", len(segments), len(want))
	}
	for i := range want {
		if segments[i].FromClient != want[i].FromClient || !bytes.Equal(segments[i].Data, want[i].Data) {
			t.Errorf("segment %d = %+v, want %+v", i, segments[i], want[i])
		}
	}

	// Direction inference without a port gives the same split.
	inferred, err := ReadSegments(bytes.NewReader(buf.Bytes()), 0)
	if err != nil || len(inferred) != 4 || !inferred[0].FromClient || inferred[1].FromClient {
		t.Fatalf("inferred = %+v, %v", inferred, err)
	}

	replay := NewReplayPort(segments, true)
	if replay.DataAvailable() {
		t.Error("nothing should be pending before the first request")
	}
	if err := replay.Send(ctx, []byte{0x10}); err != nil {
		t.Fatalf("replay Send: %v", err)
	}
	got, err := replay.ReceiveRaw(ctx, 2048)
	if err != nil || !bytes.Equal(got, []byte{0xAA, 0x01}) {
		t.Fatalf("replay ReceiveRaw = % X, %v", got, err)
	}
	if _, err := replay.ReceiveRaw(ctx, 2048); !errors.Is(err, ErrReplayExhausted) {
		t.Errorf("err = %v, want ErrReplayExhausted", err)
	}
	if replay.Remaining() != 1 {
		t.Errorf("remaining = %d, want 1", replay.Remaining())
	}

	var mismatch *MismatchError
	if err := replay.Send(ctx, []byte{0x20, 0x22}); !errors.As(err, &mismatch) || mismatch.Index != 2 {
		t.Fatalf("err = %v, want *MismatchError for request 2", err)
	}
}

func TestReplayPortLenient(t *testing.T) {
	ctx := context.Background()
	p := NewReplayPort([]Segment{
		{FromClient: false, Data: []byte{0xE0}},
		{FromClient: true, Data: []byte{0x01}},
		{FromClient: false, Data: []byte{0x01, 0x02, 0x03, 0x04}},
	}, false)

	// Unsolicited panel data before the first request is queued immediately.
	if !p.DataAvailable() {
		t.Fatal("leading panel segment should be pending")
	}
	if got, _ := p.ReceiveRaw(ctx, 16); !bytes.Equal(got, []byte{0xE0}) {
		t.Errorf("leading = % X", got)
	}
	if err := p.Send(ctx, []byte{0x99}); err != nil {
		t.Fatalf("lenient Send: %v", err)
	}
	first, _ := p.ReceiveRaw(ctx, 3)
	rest, _ := p.ReceiveRaw(ctx, 3)
	if !bytes.Equal(first, []byte{0x01, 0x02, 0x03}) || !bytes.Equal(rest, []byte{0x04}) {
		t.Errorf("split reads = % X / % X", first, rest)
	}
	if err := p.Send(ctx, []byte{0x02}); err == nil {
		t.Error("expected error past end of recording")
	}
	p.Close()
	if !p.DataAvailable() {
		t.Error("a closed port should report readiness")
	}
	if _, err := p.ReceiveRaw(ctx, 16); err == nil {
		t.Error("ReceiveRaw on a closed port should fail")
	}
}

func TestCreateRecorderAndOpenReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.pcap")
	rec, err := CreateRecorder(path, ParseEndpoint("192.168.1.50:50123", DefaultClientEndpoint), DefaultPanelEndpoint)
	if err != nil {
		t.Fatalf("CreateRecorder: %v", err)
	}
	if err := rec.WriteClient([]byte{0x01}); err != nil {
		t.Fatal(err)
	}
	if err := rec.WritePanel([]byte{0x02}); err != nil {
		t.Fatal(err)
	}
	if err := rec.Close(); err != nil {
		t.Fatal(err)
	}

	p, err := OpenReplay(path, 0, true)
	if err != nil {
		t.Fatalf("OpenReplay: %v", err)
	}
	if p.Remaining() != 1 {
		t.Errorf("remaining = %d", p.Remaining())
	}

	if _, err := OpenReplay(filepath.Join(t.TempDir(), "missing.pcap"), 0, false); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseEndpoint(t *testing.T) {
	fallback := netip.MustParseAddrPort("10.9.9.9:1")
	if got := ParseEndpoint("192.168.1.50:10000", fallback); got.String() != "192.168.1.50:10000" {
		t.Errorf("got %s", got)
	}
	if got := ParseEndpoint("panel.local:10000", fallback); got != fallback {
		t.Errorf("host name should fall back, got %s", got)
	}
	if got := ParseEndpoint("[::1]:10000", fallback); got != fallback {
		t.Errorf("IPv6 should fall back, got %s", got)
	}
}
