package client

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

func TestAwaitCommandNoData(t *testing.T) {
	sleeper := &countingSleep{}
	r := testReader(sleeper)
	port := newScriptPort()

	body, ok, err := r.AwaitCommand(context.Background(), port, protocol.CommandReadMemory)
	if err != nil {
		t.Fatalf("AwaitCommand: %v", err)
	}
	if ok || body != nil {
		t.Fatalf("expected no-data outcome, got ok=%v body=% X", ok, body)
	}
	if sleeper.calls != DefaultMaxRetries {
		t.Errorf("sleeps = %d, want %d", sleeper.calls, DefaultMaxRetries)
	}
	if sleeper.total != DefaultMaxRetries*DefaultRetryDelay {
		t.Errorf("slept %v, want %v", sleeper.total, DefaultMaxRetries*DefaultRetryDelay)
	}
}

func TestAwaitCommandMatchAfterLiveEvent(t *testing.T) {
	event := responsePacket(0x08, []byte{0xE2, 0x14, 0x19, 0x01}, 16)
	read := responsePacket(0x08, []byte{0x52, 0x00, 0x00, 0x04, 0x30, 0x10, 'Z', 'O'}, 0)
	port := newScriptPort()
	port.pending = [][]byte{concat(event, read)}

	sleeper := &countingSleep{}
	body, ok, err := testReader(sleeper).AwaitCommand(context.Background(), port, protocol.CommandReadMemory)
	if err != nil {
		t.Fatalf("AwaitCommand: %v", err)
	}
	if !ok {
		t.Fatal("expected a match")
	}
	if body[0] != 0x52 {
		t.Errorf("body[0] = 0x%02X, want 0x52", body[0])
	}
	if sleeper.calls != 0 {
		t.Errorf("sleeps = %d, want 0", sleeper.calls)
	}
}

func TestAwaitCommandReducesWideCommand(t *testing.T) {
	read := responsePacket(0x08, []byte{0x52, 0x01}, 0)
	port := newScriptPort()
	port.pending = [][]byte{read}

	body, ok, err := testReader(&countingSleep{}).AwaitCommand(context.Background(), port, protocol.OpcodeReadMemory)
	if err != nil || !ok {
		t.Fatalf("AwaitCommand = ok %v, err %v", ok, err)
	}
	if !bytes.Equal(body, []byte{0x52, 0x01}) {
		t.Errorf("body = % X", body)
	}
}

func TestAwaitCommandDropsUnmatchedPackets(t *testing.T) {
	event := responsePacket(0x08, []byte{0xE2, 0x00}, 0)
	port := newScriptPort()
	port.pending = [][]byte{event}

	sleeper := &countingSleep{}
	_, ok, err := testReader(sleeper).AwaitCommand(context.Background(), port, protocol.CommandReadMemory)
	if err != nil {
		t.Fatalf("AwaitCommand: %v", err)
	}
	if ok {
		t.Fatal("unexpected match")
	}
	if len(port.pending) != 0 {
		t.Error("unmatched read should be consumed")
	}
	if sleeper.calls != DefaultMaxRetries {
		t.Errorf("sleeps = %d, want %d", sleeper.calls, DefaultMaxRetries)
	}
}

func TestAwaitCommandLateResponse(t *testing.T) {
	read := responsePacket(0x08, []byte{0x52, 0x01}, 0)
	port := newScriptPort()
	sleeper := &countingSleep{}
	r := testReader(sleeper)
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		sleeper.calls++
		if sleeper.calls == 2 {
			port.pending = append(port.pending, read)
		}
		return nil
	}

	_, ok, err := r.AwaitCommand(context.Background(), port, protocol.CommandReadMemory)
	if err != nil || !ok {
		t.Fatalf("AwaitCommand = ok %v, err %v", ok, err)
	}
	if sleeper.calls != 2 {
		t.Errorf("sleeps = %d, want 2", sleeper.calls)
	}
}

func TestAwaitCommandFramingError(t *testing.T) {
	port := newScriptPort()
	port.pending = [][]byte{{0x01, 0x02, 0x03}}

	_, _, err := testReader(&countingSleep{}).AwaitCommand(context.Background(), port, protocol.CommandReadMemory)
	var fe *protocol.FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("err = %v, want *FramingError", err)
	}
}

func TestAwaitCommandContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReader()
	_, _, err := r.AwaitCommand(ctx, newScriptPort(), protocol.CommandReadMemory)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
