package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tturner/evoprobe/internal/config"
	evoErrors "github.com/tturner/evoprobe/internal/errors"
	"github.com/tturner/evoprobe/internal/logging"
	"github.com/tturner/evoprobe/internal/metrics"
	"github.com/tturner/evoprobe/internal/paradox/client"
	"github.com/tturner/evoprobe/internal/pcap"
	"github.com/tturner/evoprobe/internal/tunnel"
	"github.com/tturner/evoprobe/internal/ui"
)

// ConnectOptions selects the panel, the transport and the run's artifacts.
// Non-zero flag values override the config file.
type ConnectOptions struct {
	ConfigPath   string
	QuickStart   bool
	Address      string
	Port         int
	Password     string
	SSH          string // user@host[:port] jump host
	ReplayFile   string // serve the session from a recorded pcap instead of TCP
	ReplayStrict bool
	RecordFile   string // write the session to a pcap
	MetricsFile  string // CSV
	MetricsJSON  string
	LogLevel     string
	LogFile      string
	Out          io.Writer // report output; nil is stdout
}

// panelRun owns everything one command opens: the session, its port, the
// recorder, the metrics writer and the logger.
type panelRun struct {
	opts    ConnectOptions
	cfg     *config.Config
	logger  *logging.Logger
	sink    *metrics.Sink
	writer  *metrics.Writer
	rec     *pcap.Recorder
	replay  *pcap.ReplayPort
	jump    *tunnel.Jump
	session *client.Session
	target  string
	out     io.Writer
}

// loadRunConfig loads the config file, or the defaults when none is given,
// and applies flag overrides.
func loadRunConfig(opts ConnectOptions) (*config.Config, error) {
	var cfg *config.Config
	if opts.ConfigPath != "" {
		loaded, err := config.LoadConfig(opts.ConfigPath, opts.QuickStart)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.CreateDefaultConfig()
	}

	if opts.Address != "" {
		cfg.Panel.Address = opts.Address
	}
	if opts.Port != 0 {
		cfg.Panel.Port = opts.Port
	}
	if opts.Password != "" {
		cfg.Panel.Password = opts.Password
	}
	if opts.SSH != "" {
		user, host, port, err := tunnel.ParseTarget(opts.SSH)
		if err != nil {
			return nil, evoErrors.WrapConfigError(err, opts.ConfigPath)
		}
		if cfg.Panel.SSH == nil {
			cfg.Panel.SSH = &config.SSHConfig{}
		}
		cfg.Panel.SSH.Host, cfg.Panel.SSH.Port = host, port
		if user != "" {
			cfg.Panel.SSH.User = user
		}
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.LogFile != "" {
		cfg.Logging.LogFile = opts.LogFile
	}

	config.ApplyDefaults(cfg)
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, evoErrors.WrapConfigError(err, opts.ConfigPath)
	}
	return cfg, nil
}

func newPanelRun(command string, opts ConnectOptions) (*panelRun, error) {
	cfg, err := loadRunConfig(opts)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(level, cfg.Logging.LogFile)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	r := &panelRun{
		opts:   opts,
		cfg:    cfg,
		logger: logger,
		sink:   metrics.NewSink(),
		target: net.JoinHostPort(cfg.Panel.Address, strconv.Itoa(cfg.Panel.Port)),
		out:    opts.Out,
	}
	if r.out == nil {
		r.out = os.Stdout
	}

	if opts.MetricsFile != "" || opts.MetricsJSON != "" {
		r.writer, err = metrics.NewWriter(opts.MetricsFile, opts.MetricsJSON)
		if err != nil {
			logger.Close()
			return nil, fmt.Errorf("create metrics writer: %w", err)
		}
	}

	logger.LogStartup(command, cfg.Panel.Address, cfg.Panel.Port, opts.ConfigPath)
	return r, nil
}

// connect opens the port (TCP or replay), wraps it in a recorder when asked
// and builds the session.
func (r *panelRun) connect(ctx context.Context) error {
	var port client.Port
	if r.opts.ReplayFile != "" {
		replay, err := pcap.OpenReplay(r.opts.ReplayFile, 0, r.opts.ReplayStrict)
		if err != nil {
			return fmt.Errorf("open replay: %w", err)
		}
		r.replay = replay
		r.target = "replay:" + r.opts.ReplayFile
		r.logger.Info("Replaying session from %s", r.opts.ReplayFile)
		port = replay
	} else {
		tr := client.NewTCPTransport(r.cfg.Timeouts.Dial(), r.cfg.Timeouts.Read())
		if s := r.cfg.Panel.SSH; s != nil {
			jump, err := tunnel.New(tunnel.Options{
				Host:               s.Host,
				Port:               s.Port,
				User:               s.User,
				KeyFile:            s.KeyFile,
				KeyPassphrase:      s.KeyPassphrase,
				Password:           s.Password,
				Agent:              s.Agent,
				KnownHostsFile:     s.KnownHosts,
				InsecureIgnoreHost: s.InsecureIgnoreHostKey,
				ConnectTimeout:     r.cfg.Timeouts.Dial(),
				KeepAlive:          time.Duration(s.KeepAliveMs) * time.Millisecond,
			})
			if err != nil {
				return evoErrors.WrapConfigError(err, r.opts.ConfigPath)
			}
			r.jump = jump
			tr.SetDialer(jump.DialContext)
			r.logger.Info("Tunnelling through %s", jump)
		}
		if err := tr.Connect(ctx, r.target); err != nil {
			return evoErrors.WrapNetworkError(err, r.cfg.Panel.Address, r.cfg.Panel.Port)
		}
		r.logger.Info("Connected to %s", r.target)
		port = tr
	}

	if r.opts.RecordFile != "" {
		panelEP := pcap.ParseEndpoint(r.target, pcap.DefaultPanelEndpoint)
		rec, err := pcap.CreateRecorder(r.opts.RecordFile, pcap.DefaultClientEndpoint, panelEP)
		if err != nil {
			port.Close()
			return fmt.Errorf("create recorder: %w", err)
		}
		r.rec = rec
		port = pcap.NewRecordingPort(port, rec)
	}

	reader := client.NewReader()
	reader.MaxRetries = r.cfg.Timeouts.MaxRetries
	reader.RetryDelay = r.cfg.Timeouts.RetryDelay()

	r.session = client.NewSession(port,
		client.WithReader(reader),
		client.WithObserver(func(ex client.Exchange) {
			r.logger.LogExchange(ex.Step, ex.Request, ex.Response)
		}),
	)
	return nil
}

// login runs the handshake, prompting for the password when none is set.
func (r *panelRun) login(ctx context.Context) error {
	password := r.cfg.Panel.Password
	if password == "" && r.replay == nil {
		prompted, err := ui.PromptPassword(r.target)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		password = prompted
	}

	start := time.Now()
	ok, err := r.session.Login(ctx, password)
	if err == nil && !ok {
		err = errors.New("panel declined the login confirmation")
	}
	r.observe(metrics.OperationLogin, r.target, start, 0, err)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return evoErrors.WrapLoginError(err, r.target)
	}
	r.logger.Info("Logged in (panel %s)", r.session.PanelType())
	return nil
}

// observe records one panel operation in the metrics sink, the metrics files
// and the log.
func (r *panelRun) observe(op metrics.OperationType, target string, start time.Time, n int, err error) {
	rtt := time.Since(start)
	m := r.sink.Observe(op, target, start, n, err)
	r.logger.LogOperation(string(op), target, string(m.Outcome), rtt, err)
	if r.writer != nil {
		if werr := r.writer.WriteMetric(m); werr != nil {
			r.logger.Error("write metric: %v", werr)
		}
	}
}

// settleAndLogout waits for the configured settle time, then logs out.
func (r *panelRun) settleAndLogout(ctx context.Context) error {
	if r.session == nil || r.session.State() != client.StateLoggedIn {
		return nil
	}
	if d := r.cfg.Timeouts.Settle(); d > 0 && r.replay == nil {
		r.logger.Verbose("Waiting %v before logout", d)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	start := time.Now()
	err := r.session.Logout(context.WithoutCancel(ctx))
	r.observe(metrics.OperationLogout, r.target, start, 0, err)
	return err
}

// close releases everything the run opened.
func (r *panelRun) close() {
	if r.session != nil {
		if err := r.session.Close(); err != nil {
			r.logger.Verbose("close session: %v", err)
		}
	}
	if r.jump != nil {
		if err := r.jump.Close(); err != nil {
			r.logger.Verbose("close ssh: %v", err)
		}
	}
	if r.replay != nil && r.replay.Remaining() > 0 {
		r.logger.Info("Replay finished with %d recorded requests unused", r.replay.Remaining())
	}
	if r.rec != nil {
		if err := r.rec.Close(); err != nil {
			r.logger.Error("close recording: %v", err)
		} else {
			r.logger.Info("Session recorded to %s", r.opts.RecordFile)
		}
	}
	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			r.logger.Error("close metrics: %v", err)
		}
	}
	r.logger.Close()
}

// withSignals returns a context cancelled on SIGINT or SIGTERM.
func withSignals(parent context.Context, logger *logging.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Info("Received interrupt signal, shutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
