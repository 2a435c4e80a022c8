package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/tturner/evoprobe/internal/paradox/client"
	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// UserFriendlyError provides user-friendly error messages with context and hints
type UserFriendlyError struct {
	Message string
	Reason  string
	Hint    string
	Try     string
	Err     error
}

func (e UserFriendlyError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Message)
	if e.Reason != "" {
		buf.WriteString("\n  Reason: " + e.Reason)
	}
	if e.Hint != "" {
		buf.WriteString("\n  Hint: " + e.Hint)
	}
	if e.Try != "" {
		buf.WriteString("\n  Try: " + e.Try)
	}
	if e.Err != nil {
		buf.WriteString("\n  Details: " + e.Err.Error())
	}
	return buf.String()
}

func (e UserFriendlyError) Unwrap() error {
	return e.Err
}

// WrapNetworkError wraps connection and transport errors with user-friendly context
func WrapNetworkError(err error, address string, port int) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Failed to communicate with IP150 module at %s:%d", address, port),
		Reason:  extractNetworkReason(err),
		Hint:    "Check the module's software port (default 10000) and that no other client (e.g. BabyWare) holds the session",
		Try:     fmt.Sprintf("evoprobe dump --address %s --port %d --log-level debug", address, port),
		Err:     err,
	}
}

// WrapLoginError wraps handshake failures with user-friendly context
func WrapLoginError(err error, address string) error {
	if err == nil {
		return nil
	}

	var authErr *client.AuthenticationError
	if stderrors.As(err, &authErr) {
		return UserFriendlyError{
			Message: fmt.Sprintf("IP150 module at %s rejected the login", address),
			Reason:  "The module password was not accepted",
			Hint:    "The module password is the IP150 web password, not a panel user code",
			Try:     "Re-run without --password to be prompted for it",
			Err:     err,
		}
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Login to panel via %s failed", address),
		Reason:  extractProtocolReason(err),
		Hint:    "The module accepted the connection but the panel handshake did not complete",
		Try:     "Run with --log-level debug --record session.pcap and inspect the exchange",
		Err:     err,
	}
}

// WrapProtocolError wraps errors from panel commands after login
func WrapProtocolError(err error, operation string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Panel operation failed: %s", operation),
		Reason:  extractProtocolReason(err),
		Hint:    "The panel may be busy, or the address may not exist on this panel model",
		Try:     "Check the addresses in the queries section of your config",
		Err:     err,
	}
}

// WrapConfigError wraps configuration errors with user-friendly context
func WrapConfigError(err error, configPath string) error {
	if err == nil {
		return nil
	}

	return UserFriendlyError{
		Message: fmt.Sprintf("Configuration error in %s", configPath),
		Reason:  err.Error(),
		Hint:    "Delete the file to have a default one written on the next run",
		Try:     fmt.Sprintf("evoprobe dump --config %s", configPath),
		Err:     err,
	}
}

func extractNetworkReason(err error) string {
	errStr := err.Error()

	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return "Connection timeout - module may be offline or unreachable"
	}
	if strings.Contains(errStr, "connection refused") {
		return "Connection refused - module may not be listening on this port"
	}
	if strings.Contains(errStr, "no route to host") {
		return "No route to host - network routing issue or module unreachable"
	}
	if strings.Contains(errStr, "connection reset") || strings.Contains(errStr, "EOF") {
		return "Connection reset - module closed the connection unexpectedly"
	}

	return "Network communication failed"
}

func extractProtocolReason(err error) string {
	var framing *protocol.FramingError
	var argErr *client.InvalidArgumentError
	switch {
	case stderrors.As(err, &framing):
		return "Received a malformed packet from the module"
	case stderrors.As(err, &argErr):
		return "Argument out of range: " + argErr.Error()
	case stderrors.Is(err, client.ErrShortResponse):
		return "Module answered with a truncated handshake response"
	case stderrors.Is(err, client.ErrNotLoggedIn):
		return "Session is not logged in"
	case client.IsMiss(err):
		return "Panel did not answer in time"
	}
	return extractNetworkReason(err)
}
