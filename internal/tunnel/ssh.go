package tunnel

// SSH jump host for reaching an IP150 on a remote site network

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Options configures the jump host connection.
type Options struct {
	Host string
	Port int // default 22

	// Authentication
	User          string
	KeyFile       string
	KeyPassphrase string
	Password      string
	Agent         bool

	// Host verification
	KnownHostsFile     string
	InsecureIgnoreHost bool

	ConnectTimeout time.Duration
	KeepAlive      time.Duration
}

// Jump dials TCP connections through an SSH server. The SSH connection is
// opened on the first dial and shared by later ones.
type Jump struct {
	opts   Options
	client *ssh.Client
	done   chan struct{}
	mu     sync.Mutex
}

// New creates a jump host. No connection is made until DialContext.
func New(opts Options) (*Jump, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("ssh host is required")
	}
	if opts.Port == 0 {
		opts.Port = 22
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 30 * time.Second
	}
	return &Jump{opts: opts}, nil
}

// ParseTarget splits "user@host:port" into its parts. User and port are
// optional.
func ParseTarget(s string) (user, host string, port int, err error) {
	s = strings.TrimSpace(s)
	if at := strings.LastIndex(s, "@"); at >= 0 {
		user, s = s[:at], s[at+1:]
	}
	host = s
	if h, p, splitErr := net.SplitHostPort(s); splitErr == nil {
		host = h
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid ssh port %q", p)
		}
	}
	if host == "" {
		return "", "", 0, fmt.Errorf("invalid ssh target %q", s)
	}
	return user, host, port, nil
}

func (j *Jump) String() string {
	addr := net.JoinHostPort(j.opts.Host, strconv.Itoa(j.opts.Port))
	if j.opts.User != "" {
		return j.opts.User + "@" + addr
	}
	return addr
}

// DialContext opens a connection to addr from the jump host. The returned
// conn supports deadlines.
func (j *Jump) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	client, err := j.connect(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := client.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s via %s: %w", addr, j, err)
	}
	return bridge(remote), nil
}

// bridge copies between an SSH channel and one end of an in-memory pipe.
// SSH channels reject deadlines; pipes honour them.
func bridge(remote net.Conn) net.Conn {
	local, inner := net.Pipe()
	go func() {
		_, _ = io.Copy(inner, remote)
		inner.Close()
	}()
	go func() {
		_, _ = io.Copy(remote, inner)
		remote.Close()
	}()
	return local
}

// connect establishes the SSH connection if not already connected.
func (j *Jump) connect(ctx context.Context) (*ssh.Client, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.client != nil {
		return j.client, nil
	}

	config, err := j.buildSSHConfig()
	if err != nil {
		return nil, fmt.Errorf("build SSH config: %w", err)
	}

	addr := net.JoinHostPort(j.opts.Host, strconv.Itoa(j.opts.Port))
	dialer := net.Dialer{Timeout: j.opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake: %w", err)
	}

	j.client = ssh.NewClient(sshConn, chans, reqs)
	j.done = make(chan struct{})
	if j.opts.KeepAlive > 0 {
		go j.keepAlive(j.client, j.done)
	}
	return j.client, nil
}

// buildSSHConfig builds the SSH client configuration.
func (j *Jump) buildSSHConfig() (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if j.opts.Agent {
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			authMethods = append(authMethods, agentAuth)
		}
	}

	if j.opts.KeyFile != "" {
		keyAuth, err := publicKeyAuth(j.opts.KeyFile, j.opts.KeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("key file auth: %w", err)
		}
		authMethods = append(authMethods, keyAuth)
	}

	// Try default key files if no key specified
	if j.opts.KeyFile == "" && !j.opts.Agent {
		for _, keyPath := range defaultKeyPaths() {
			if keyAuth, err := publicKeyAuth(keyPath, ""); err == nil {
				authMethods = append(authMethods, keyAuth)
				break
			}
		}
	}

	if j.opts.Password != "" {
		authMethods = append(authMethods, ssh.Password(j.opts.Password))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication methods available")
	}

	hostKeyCallback, err := j.hostKeyCallback()
	if err != nil {
		return nil, err
	}

	user := j.opts.User
	if user == "" {
		user = os.Getenv("USER")
		if user == "" {
			user = os.Getenv("USERNAME") // Windows
		}
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         j.opts.ConnectTimeout,
	}, nil
}

// hostKeyCallback verifies against known_hosts. A missing file is an error
// unless InsecureIgnoreHost is set.
func (j *Jump) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if j.opts.InsecureIgnoreHost {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := j.opts.KnownHostsFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("known hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	callback, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("known hosts: %w", err)
	}
	return callback, nil
}

// keepAlive sends periodic keep-alive requests until done is closed.
func (j *Jump) keepAlive(client *ssh.Client, done chan struct{}) {
	ticker := time.NewTicker(j.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
				return
			}
		}
	}
}

// Close closes the SSH connection and every connection dialled through it.
func (j *Jump) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.client == nil {
		return nil
	}
	close(j.done)
	err := j.client.Close()
	j.client = nil
	return err
}

func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil
	}
	agentClient := agent.NewClient(conn)
	return ssh.PublicKeysCallback(agentClient.Signers)
}

// publicKeyAuth returns a public key authentication method.
func publicKeyAuth(keyPath, passphrase string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	var signer ssh.Signer
	if passphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

func defaultKeyPaths() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
	}
}
