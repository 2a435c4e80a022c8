package client

// Session lifecycle: login handshake, logout, command plumbing

import (
	"context"
	"errors"
	"fmt"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// Exchange is one request and the raw bytes received for it. Response is nil
// for requests that expect no answer.
type Exchange struct {
	Step     string
	Request  []byte
	Response []byte
}

// Option configures a Session.
type Option func(*Session)

// WithReader replaces the default response reader.
func WithReader(r *Reader) Option {
	return func(s *Session) {
		s.reader = r
	}
}

// WithObserver registers a callback that sees every exchange, e.g. for hex
// logging at the application layer.
func WithObserver(fn func(Exchange)) Option {
	return func(s *Session) {
		s.observe = fn
	}
}

// Session drives one authenticated conversation with the module. It owns its
// Port exclusively and is not safe for concurrent use.
type Session struct {
	port      Port
	reader    *Reader
	observe   func(Exchange)
	state     State
	panelType string
}

// NewSession creates an idle session over port.
func NewSession(port Port, opts ...Option) *Session {
	s := &Session{
		port:   port,
		reader: NewReader(),
		state:  StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current handshake state.
func (s *Session) State() State {
	return s.state
}

// PanelType returns the panel identity captured during login.
func (s *Session) PanelType() string {
	return s.panelType
}

// Login runs the seven-step handshake. It returns false with a nil error when
// the panel declines the final confirmation, and an *AuthenticationError when
// the module rejects the password.
func (s *Session) Login(ctx context.Context, password string) (bool, error) {
	if s.state != StateIdle {
		return false, &StateError{Op: "login", State: s.state}
	}
	// The module compares ASCII bytes; the header carries their count.
	encoded := string(protocol.ASCIIBytes(password))
	if err := checkRange("password length", int64(len(encoded)), 0, 0xFF); err != nil {
		return false, err
	}

	hs := &handshakeState{password: encoded}
	for i, step := range loginSteps {
		if s.state != step.from {
			return false, &StateError{Op: step.name, State: s.state}
		}

		request := step.request(hs)
		if err := s.port.Send(ctx, request); err != nil {
			return false, fmt.Errorf("step %d (%s): send: %w", i+1, step.name, err)
		}
		raw, pkt, err := s.receiveStep(ctx)
		s.notify(step.name, request, raw)
		if err != nil {
			return false, fmt.Errorf("step %d (%s): %w", i+1, step.name, err)
		}

		if step.handle != nil {
			if err := step.handle(hs, pkt); err != nil {
				if errors.Is(err, errConfirmRejected) {
					return false, nil
				}
				return false, fmt.Errorf("step %d (%s): %w", i+1, step.name, err)
			}
		}

		if hs.panelType != "" && s.panelType == "" {
			s.panelType = hs.panelType
		}
		s.state = step.to
	}

	return true, nil
}

// receiveStep reads one chunk and returns its first message.
func (s *Session) receiveStep(ctx context.Context) ([]byte, protocol.Packet, error) {
	raw, err := s.port.ReceiveRaw(ctx, protocol.MaxReadSize)
	if err != nil {
		return nil, protocol.Packet{}, fmt.Errorf("receive: %w", err)
	}
	packets, err := protocol.SplitPackets(raw)
	if err != nil {
		return raw, protocol.Packet{}, err
	}
	if len(packets) == 0 {
		return raw, protocol.Packet{}, fmt.Errorf("receive: %w", ErrNoResponse)
	}
	return raw, packets[0], nil
}

// Logout sends the logout request without waiting for an answer.
func (s *Session) Logout(ctx context.Context) error {
	if s.state != StateLoggedIn {
		return &StateError{Op: "logout", State: s.state}
	}
	request := buildLogout()
	if err := s.port.Send(ctx, request); err != nil {
		return fmt.Errorf("send logout: %w", err)
	}
	s.notify("logout", request, nil)
	s.state = StateLoggedOut
	return nil
}

// Close closes the underlying port.
func (s *Session) Close() error {
	return s.port.Close()
}

// command sends request and waits for a response carrying command.
func (s *Session) command(ctx context.Context, name string, request []byte, command byte) ([]byte, bool, error) {
	if s.state != StateLoggedIn {
		return nil, false, &StateError{Op: name, State: s.state}
	}
	if err := s.port.Send(ctx, request); err != nil {
		return nil, false, fmt.Errorf("%s: send: %w", name, err)
	}
	body, ok, err := s.reader.AwaitCommand(ctx, s.port, command)
	s.notify(name, request, body)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", name, err)
	}
	return body, ok, nil
}

func (s *Session) notify(step string, request, response []byte) {
	if s.observe != nil {
		s.observe(Exchange{Step: step, Request: request, Response: response})
	}
}
