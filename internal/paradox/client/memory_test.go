package client

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

func loggedInSession(t *testing.T, replies ...[]byte) (*Session, *scriptPort, *countingSleep) {
	t.Helper()
	port := newScriptPort(append(loginScript(0x10), replies...)...)
	sleeper := &countingSleep{}
	s := NewSession(port, WithReader(testReader(sleeper)))
	ok, err := s.Login(context.Background(), "1234")
	if err != nil || !ok {
		t.Fatalf("Login = %v, %v", ok, err)
	}
	return s, port, sleeper
}

func memoryResponse(control byte, address uint32, payload []byte) []byte {
	lo, mid, _ := protocol.SplitAddress18(address)
	body := []byte{0x52, 0x00, control, 0x00, mid, lo}
	body = append(body, payload...)
	body = append(body, 0x00)
	protocol.SealChecksum(body)
	return responsePacket(0x08, body, 0)
}

func TestBuildReadRequest(t *testing.T) {
	tests := []struct {
		name    string
		space   Space
		address uint32
		length  int
		body    []byte
	}{
		{"eeprom zone 1", SpaceEEPROM, 0x430, 16, []byte{0x50, 0x08, 0x00, 0x00, 0x04, 0x30, 0x10}},
		{"eeprom high bits", SpaceEEPROM, 0x15190, 16, []byte{0x50, 0x08, 0x01, 0x00, 0x51, 0x90, 0x10}},
		{"eeprom top", SpaceEEPROM, 0x3FFFF, 1, []byte{0x50, 0x08, 0x03, 0x00, 0xFF, 0xFF, 0x01}},
		{"ram block 1", SpaceRAM, 1, 64, []byte{0x50, 0x08, 0x80, 0x00, 0x00, 0x01, 0x40}},
		{"ram block 16", SpaceRAM, 16, 64, []byte{0x50, 0x08, 0x80, 0x00, 0x00, 0x10, 0x40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildReadRequest(tt.space, tt.address, tt.length)
			if len(got) != protocol.HeaderSize+8 {
				t.Fatalf("len = %d, want 24", len(got))
			}
			wantHeader := []byte{0xAA, 0x08, 0x00, 0x04, 0x08, 0x00, 0x00, 0x14}
			if !bytes.Equal(got[:8], wantHeader) {
				t.Errorf("header = % X, want % X", got[:8], wantHeader)
			}
			body := got[protocol.HeaderSize:]
			if !bytes.Equal(body[:7], tt.body) {
				t.Errorf("body = % X, want % X", body[:7], tt.body)
			}
			if body[7] != protocol.Checksum(body[:7]) {
				t.Errorf("checksum = 0x%02X, want 0x%02X", body[7], protocol.Checksum(body[:7]))
			}
		})
	}
}

func TestReadEEPROMInvalidArguments(t *testing.T) {
	s, port, _ := loggedInSession(t)
	sentBefore := len(port.sent)

	tests := []struct {
		name    string
		address uint32
		block   uint8
		length  int
	}{
		{"block 16", 0x430, 16, 16},
		{"zero length", 0x430, 0, 0},
		{"too long", 0x430, 0, 65},
		{"address past 18 bits", 0x40000, 0, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.ReadEEPROM(context.Background(), tt.address, tt.block, tt.length)
			var argErr *InvalidArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("err = %v, want *InvalidArgumentError", err)
			}
		})
	}
	if len(port.sent) != sentBefore {
		t.Error("invalid arguments must not reach the wire")
	}
}

func TestReadRAMInvalidArguments(t *testing.T) {
	s, _, _ := loggedInSession(t)
	for _, block := range []uint32{0, 17} {
		_, err := s.ReadRAM(context.Background(), block, 64)
		var argErr *InvalidArgumentError
		if !errors.As(err, &argErr) {
			t.Errorf("block %d: err = %v, want *InvalidArgumentError", block, err)
		}
	}
	if _, err := s.ReadRAM(context.Background(), 1, 0); err == nil {
		t.Error("expected error for zero length")
	}
}

func TestReadEEPROM(t *testing.T) {
	label := protocol.ASCIIFixedWidth("Front Door", 16, ' ')
	s, port, _ := loggedInSession(t, memoryResponse(0x00, 0x430, label))

	data, err := s.ReadEEPROM(context.Background(), 0x430, 0, 16)
	if err != nil {
		t.Fatalf("ReadEEPROM: %v", err)
	}
	if !bytes.Equal(data, label) {
		t.Errorf("data = %q, want %q", data, label)
	}
	req := port.sent[len(port.sent)-1]
	if req[16] != 0x50 || req[20] != 0x04 || req[21] != 0x30 || req[22] != 16 {
		t.Errorf("request = % X", req)
	}
}

func TestReadRAMWithCoalescedEvent(t *testing.T) {
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}
	event := responsePacket(0x08, []byte{0xE2, 0x14, 0x19}, 16)
	s, _, _ := loggedInSession(t, concat(event, memoryResponse(0x80, 1, payload)))

	data, err := s.ReadRAM(context.Background(), 1, 64)
	if err != nil {
		t.Fatalf("ReadRAM: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("data = % X", data)
	}
}

func TestReadMemoryNoResponse(t *testing.T) {
	s, _, sleeper := loggedInSession(t)

	_, err := s.ReadEEPROM(context.Background(), 0x430, 0, 16)
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("err = %v, want ErrNoResponse", err)
	}
	if !IsMiss(err) {
		t.Error("IsMiss = false for a missing response")
	}
	if sleeper.calls != DefaultMaxRetries {
		t.Errorf("sleeps = %d, want %d", sleeper.calls, DefaultMaxRetries)
	}
}

func TestReadMemoryIncomplete(t *testing.T) {
	short := responsePacket(0x08, []byte{0x52, 0x00, 0x00, 0x00, 0x04, 0x30, 'A', 'B'}, 0)
	s, _, _ := loggedInSession(t, short)

	_, err := s.ReadEEPROM(context.Background(), 0x430, 0, 16)
	if !errors.Is(err, ErrIncompleteRead) {
		t.Fatalf("err = %v, want ErrIncompleteRead", err)
	}
	if !IsMiss(err) {
		t.Error("IsMiss = false for a short read")
	}
}

func TestReadMemoryRequiresLogin(t *testing.T) {
	s := NewSession(newScriptPort())
	_, err := s.ReadRAM(context.Background(), 1, 64)
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", err)
	}
	if IsMiss(err) {
		t.Error("state errors are not soft misses")
	}
}
