package client

// Transport abstraction for the IP150 software port

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tturner/evoprobe/internal/paradox/protocol"
)

// Port is a bidirectional byte stream to the module. A Port is owned by one
// session and must not be used concurrently.
type Port interface {
	Send(ctx context.Context, data []byte) error
	// ReceiveRaw blocks until at least one byte arrives and returns up to
	// max bytes.
	ReceiveRaw(ctx context.Context, max int) ([]byte, error)
	// DataAvailable reports, without blocking, whether ReceiveRaw would
	// return immediately, with data or with a transport error.
	DataAvailable() bool
	Close() error
}

// DialFunc opens the stream to the module, e.g. through a jump host.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// TCPTransport implements Port over a TCP connection.
type TCPTransport struct {
	dial        DialFunc
	conn        net.Conn
	reader      *bufio.Reader
	addr        string
	dialTimeout time.Duration
	readTimeout time.Duration
	// peekErr is a stream failure seen by DataAvailable, returned by the
	// next ReceiveRaw.
	peekErr error
	connMu  sync.RWMutex
}

var _ Port = (*TCPTransport)(nil)

// Default transport timeouts.
const (
	DefaultDialTimeout = 5 * time.Second
	DefaultReadTimeout = 5 * time.Second
)

// pollWindow is how long DataAvailable waits on the socket.
const pollWindow = time.Millisecond

// NewTCPTransport creates a new TCP transport
func NewTCPTransport(dialTimeout, readTimeout time.Duration) *TCPTransport {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &TCPTransport{dialTimeout: dialTimeout, readTimeout: readTimeout}
}

// NewConnTransport wraps an already connected stream, e.g. one end of
// net.Pipe in tests.
func NewConnTransport(conn net.Conn, readTimeout time.Duration) *TCPTransport {
	t := NewTCPTransport(0, readTimeout)
	t.conn = conn
	t.reader = bufio.NewReaderSize(conn, protocol.MaxReadSize)
	t.addr = conn.RemoteAddr().String()
	return t
}

// SetDialer replaces the direct TCP dial used by Connect.
func (t *TCPTransport) SetDialer(dial DialFunc) {
	t.connMu.Lock()
	defer t.connMu.Unlock()
	t.dial = dial
}

// Connect establishes a TCP connection
func (t *TCPTransport) Connect(ctx context.Context, addr string) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn != nil {
		return fmt.Errorf("already connected")
	}

	dial := t.dial
	if dial == nil {
		dialer := net.Dialer{
			Timeout:   t.dialTimeout,
			KeepAlive: 30 * time.Second,
		}
		dial = dialer.DialContext
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	defer cancel()
	conn, err := dial(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial TCP: %w", err)
	}

	t.conn = conn
	t.reader = bufio.NewReaderSize(conn, protocol.MaxReadSize)
	t.addr = addr
	t.peekErr = nil
	return nil
}

// Addr returns the remote address.
func (t *TCPTransport) Addr() string {
	t.connMu.RLock()
	defer t.connMu.RUnlock()
	return t.addr
}

// Close closes the TCP connection. Blocked reads fail with a transport error.
func (t *TCPTransport) Close() error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		return nil
	}

	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	t.peekErr = nil
	return err
}

// Send writes data to the module.
func (t *TCPTransport) Send(ctx context.Context, data []byte) error {
	t.connMu.RLock()
	defer t.connMu.RUnlock()

	if t.conn == nil {
		return ErrNotConnected
	}
	if len(data) == 0 {
		return nil
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	if _, err := t.conn.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// ReceiveRaw reads whatever the module has sent, up to max bytes.
func (t *TCPTransport) ReceiveRaw(ctx context.Context, max int) ([]byte, error) {
	t.connMu.RLock()
	conn, reader, peekErr := t.conn, t.reader, t.peekErr
	t.connMu.RUnlock()

	if conn == nil {
		return nil, ErrNotConnected
	}
	if peekErr != nil && reader.Buffered() == 0 {
		return nil, fmt.Errorf("read: %w", peekErr)
	}
	if max <= 0 {
		max = protocol.MaxReadSize
	}

	deadline := time.Now().Add(t.readTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	buf := make([]byte, max)
	n, err := reader.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return buf[:n], nil
}

// DataAvailable peeks at the socket with a short deadline. A closed
// transport or a failed stream reports true; ReceiveRaw then returns the
// error.
func (t *TCPTransport) DataAvailable() bool {
	t.connMu.RLock()
	conn, reader, peekErr := t.conn, t.reader, t.peekErr
	t.connMu.RUnlock()

	if conn == nil || peekErr != nil {
		return true
	}
	if reader.Buffered() > 0 {
		return true
	}

	err := conn.SetReadDeadline(time.Now().Add(pollWindow))
	if err == nil {
		_, err = reader.Peek(1)
	}
	if err == nil || errors.Is(err, os.ErrDeadlineExceeded) {
		return reader.Buffered() > 0
	}

	t.connMu.Lock()
	if t.conn == conn {
		t.peekErr = err
	}
	t.connMu.Unlock()
	return true
}
