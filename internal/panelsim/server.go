// Package panelsim serves a simulated IP150 module and EVO panel over the
// software port, backed by a memory image.
package panelsim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tturner/evoprobe/internal/config"
	"github.com/tturner/evoprobe/internal/logging"
)

// idleTimeout bounds how long a connection may stay silent.
const idleTimeout = 30 * time.Second

// Server is a simulated panel.
type Server struct {
	image      *config.Image
	logger     *logging.Logger
	listenAddr string
	listener   *net.TCPListener
	mem        *memory
	serial     [4]byte

	reads atomic.Uint64

	connsMu sync.Mutex
	conns   map[*net.TCPConn]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer builds a simulator for img that will listen on listenAddr
// (host:port; port 0 picks a free port).
func NewServer(img *config.Image, listenAddr string, logger *logging.Logger) (*Server, error) {
	if img == nil {
		return nil, errors.New("panelsim: nil image")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	if err := config.ValidateImage(img); err != nil {
		return nil, fmt.Errorf("validate image: %w", err)
	}
	serial, err := img.SerialBytes()
	if err != nil {
		return nil, err
	}
	mem, err := newMemory(img, time.Now)
	if err != nil {
		return nil, fmt.Errorf("build memory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		image:      img,
		logger:     logger,
		listenAddr: listenAddr,
		mem:        mem,
		serial:     serial,
		conns:      make(map[*net.TCPConn]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start binds the listener and starts accepting connections.
func (s *Server) Start() error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("resolve TCP address: %w", err)
	}
	s.listener, err = net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("listen TCP: %w", err)
	}

	s.logger.Info("Panel simulator (%s) listening on %s", s.image.PanelType, s.listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound address after Start.
func (s *Server) Addr() *net.TCPAddr {
	if s.listener == nil {
		return nil
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr
	}
	return nil
}

// Stop closes the listener and every open connection, then waits for the
// connection handlers to finish.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	s.logger.Info("Panel simulator stopped")
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.listener.SetDeadline(time.Now().Add(1 * time.Second))
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error("Accept error: %v", err)
			continue
		}

		if !s.track(conn) {
			return
		}
		go s.handleConnection(conn)
	}
}

// track registers conn for Stop and the handler wait group. A connection
// accepted after Stop began is closed and track returns false.
func (s *Server) track(conn *net.TCPConn) bool {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.ctx.Err() != nil {
		conn.Close()
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) handleConnection(conn *net.TCPConn) {
	defer s.wg.Done()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
		conn.Close()
	}()

	remoteAddr := conn.RemoteAddr().String()
	s.logger.Info("New connection from %s", remoteAddr)

	sess := &connState{remote: remoteAddr}
	buffer := make([]byte, 0, 1024)
	readBuf := make([]byte, 2048)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(idleTimeout))
		n, err := conn.Read(readBuf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("Connection closed by client: %s", remoteAddr)
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				s.logger.Info("Idle connection dropped: %s", remoteAddr)
				return
			}
			if s.ctx.Err() == nil {
				s.logger.Error("Read error from %s: %v", remoteAddr, err)
			}
			return
		}

		buffer = append(buffer, readBuf[:n]...)
		packets, remaining := parseStream(buffer)
		buffer = remaining

		for _, pkt := range packets {
			s.logger.LogHex("sim << "+remoteAddr, pkt.Bytes())
			resp := s.dispatch(sess, pkt)
			if len(resp) == 0 {
				continue
			}
			s.logger.LogHex("sim >> "+remoteAddr, resp)
			if _, err := conn.Write(resp); err != nil {
				s.logger.Error("Write error to %s: %v", remoteAddr, err)
				return
			}
		}
		if sess.loggedOut {
			s.logger.Info("Session logged out: %s", remoteAddr)
			return
		}
	}
}
