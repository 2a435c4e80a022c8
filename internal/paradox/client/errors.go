package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResponse means the retry budget ran out before a matching
	// response arrived. It is a soft miss, not a connection failure.
	ErrNoResponse = errors.New("no response")

	// ErrIncompleteRead means a memory read response was shorter than the
	// requested length. It is a soft miss.
	ErrIncompleteRead = errors.New("memory read incomplete")

	// ErrShortResponse means a handshake response was too short to carry
	// the fields the next step needs.
	ErrShortResponse = errors.New("short response")

	// ErrNotConnected is returned by a transport that was never connected or
	// has been closed.
	ErrNotConnected = errors.New("not connected")

	// ErrNotLoggedIn is returned by commands issued outside a logged-in session.
	ErrNotLoggedIn = errors.New("not logged in")
)

// IsMiss reports whether err is a soft protocol miss that the caller may
// skip or retry.
func IsMiss(err error) bool {
	return errors.Is(err, ErrNoResponse) || errors.Is(err, ErrIncompleteRead)
}

// InvalidArgumentError reports an out-of-range argument. It is raised before
// any I/O happens.
type InvalidArgumentError struct {
	Name  string
	Value int64
	Min   int64
	Max   int64
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s %d: valid values are %d to %d", e.Name, e.Value, e.Min, e.Max)
}

func checkRange(name string, value, min, max int64) error {
	if value < min || value > max {
		return &InvalidArgumentError{Name: name, Value: value, Min: min, Max: max}
	}
	return nil
}

// AuthenticationError reports a login step whose acknowledgement did not
// match.
type AuthenticationError struct {
	Step int
	Got  byte
	Want byte
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("login step %d rejected: ack 0x%02X, want 0x%02X", e.Step, e.Got, e.Want)
}

// StateError reports a handshake step run from the wrong state.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: invalid in state %s", e.Op, e.State)
}

func (e *StateError) Unwrap() error {
	return ErrNotLoggedIn
}
