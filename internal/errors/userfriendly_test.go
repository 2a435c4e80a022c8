package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/tturner/evoprobe/internal/paradox/client"
	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

func TestUserFriendlyError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      UserFriendlyError
		contains []string
	}{
		{
			name:     "message only",
			err:      UserFriendlyError{Message: "something broke"},
			contains: []string{"something broke"},
		},
		{
			name: "all fields",
			err: UserFriendlyError{
				Message: "connection failed",
				Reason:  "timeout",
				Hint:    "check network",
				Try:     "ping host",
				Err:     fmt.Errorf("dial tcp: timeout"),
			},
			contains: []string{"connection failed", "Reason: timeout", "Hint: check network", "Try: ping host", "Details: dial tcp: timeout"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("Error() = %q, want to contain %q", msg, s)
				}
			}
		})
	}
}

func TestUserFriendlyError_ErrorOmitsEmptyFields(t *testing.T) {
	msg := UserFriendlyError{Message: "msg"}.Error()
	if strings.Contains(msg, "Reason:") || strings.Contains(msg, "Hint:") || strings.Contains(msg, "Try:") || strings.Contains(msg, "Details:") {
		t.Errorf("Error() = %q, should not contain empty fields", msg)
	}
}

func TestUserFriendlyError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("read_eeprom: %w", client.ErrNoResponse)
	err := WrapProtocolError(inner, "READ_EEPROM")

	if !errors.Is(err, client.ErrNoResponse) {
		t.Error("Unwrap should expose the inner sentinel")
	}

	var nilErr UserFriendlyError
	if nilErr.Unwrap() != nil {
		t.Error("Unwrap on nil Err should return nil")
	}
}

func TestWrapNetworkError(t *testing.T) {
	if WrapNetworkError(nil, "10.0.0.1", 10000) != nil {
		t.Error("nil error should return nil")
	}

	tests := []struct {
		in     string
		reason string
	}{
		{"dial tcp: i/o timeout", "timeout"},
		{"connection refused", "refused"},
		{"no route to host", "route"},
		{"read: connection reset by peer", "reset"},
		{"something else", "Network communication failed"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ufe := WrapNetworkError(fmt.Errorf("%s", tt.in), "10.0.0.1", 10000).(UserFriendlyError)
			if !strings.Contains(ufe.Message, "10.0.0.1:10000") {
				t.Errorf("message should contain address, got %q", ufe.Message)
			}
			if !strings.Contains(ufe.Reason, tt.reason) {
				t.Errorf("reason = %q, want to mention %q", ufe.Reason, tt.reason)
			}
		})
	}
}

func TestWrapLoginError(t *testing.T) {
	if WrapLoginError(nil, "10.0.0.1") != nil {
		t.Error("nil error should return nil")
	}

	auth := fmt.Errorf("step 1 (module_login): %w", &client.AuthenticationError{Step: 1, Got: 0x08, Want: 0x38})
	ufe := WrapLoginError(auth, "10.0.0.1").(UserFriendlyError)
	if !strings.Contains(ufe.Message, "rejected") {
		t.Errorf("message = %q", ufe.Message)
	}
	if !strings.Contains(ufe.Reason, "password") {
		t.Errorf("reason = %q", ufe.Reason)
	}

	short := fmt.Errorf("step 6 (serial_init): %w", client.ErrShortResponse)
	ufe = WrapLoginError(short, "10.0.0.1").(UserFriendlyError)
	if !strings.Contains(ufe.Reason, "truncated") {
		t.Errorf("reason = %q", ufe.Reason)
	}
}

func TestWrapProtocolError(t *testing.T) {
	if WrapProtocolError(nil, "READ_RAM") != nil {
		t.Error("nil error should return nil")
	}

	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"framing", &protocol.FramingError{Offset: 0, Reason: "missing sync byte"}, "malformed"},
		{"argument", &client.InvalidArgumentError{Name: "block number", Value: 17, Min: 1, Max: 16}, "out of range"},
		{"miss", fmt.Errorf("read_ram: %w", client.ErrIncompleteRead), "did not answer"},
		{"state", &client.StateError{Op: "read_ram", State: client.StateIdle}, "not logged in"},
		{"network", fmt.Errorf("write: connection refused"), "refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ufe := WrapProtocolError(tt.err, "READ_RAM").(UserFriendlyError)
			if !strings.Contains(ufe.Message, "READ_RAM") {
				t.Errorf("message = %q", ufe.Message)
			}
			if !strings.Contains(ufe.Reason, tt.reason) {
				t.Errorf("reason = %q, want to mention %q", ufe.Reason, tt.reason)
			}
		})
	}
}

func TestWrapConfigError(t *testing.T) {
	if WrapConfigError(nil, "evoprobe.yaml") != nil {
		t.Error("nil error should return nil")
	}

	ufe := WrapConfigError(fmt.Errorf("invalid yaml"), "evoprobe.yaml").(UserFriendlyError)
	if !strings.Contains(ufe.Message, "evoprobe.yaml") {
		t.Errorf("message should contain config path, got %q", ufe.Message)
	}
	if ufe.Reason != "invalid yaml" {
		t.Errorf("reason should be inner error message, got %q", ufe.Reason)
	}
}
