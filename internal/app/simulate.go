package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tturner/evoprobe/internal/config"
	"github.com/tturner/evoprobe/internal/logging"
	"github.com/tturner/evoprobe/internal/panelsim"
)

type SimulateOptions struct {
	ImagePath  string // YAML memory image; empty uses the built-in EVO192 image
	Listen     string // host:port
	DropEvery  int    // overrides the image when > 0
	EventEvery int
	LogLevel   string
	LogFile    string
	PrintImage bool // print the effective image as YAML and exit
	Out        io.Writer
}

// RunSimulate serves a simulated panel until interrupted.
func RunSimulate(opts SimulateOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	img := config.CreateDefaultImage()
	if opts.ImagePath != "" {
		loaded, err := config.LoadImage(opts.ImagePath)
		if err != nil {
			return err
		}
		img = loaded
	}
	if opts.DropEvery > 0 {
		img.DropEvery = opts.DropEvery
	}
	if opts.EventEvery > 0 {
		img.EventEvery = opts.EventEvery
	}

	if opts.PrintImage {
		data, err := yaml.Marshal(img)
		if err != nil {
			return fmt.Errorf("marshal image: %w", err)
		}
		_, err = out.Write(data)
		return err
	}

	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(level, opts.LogFile)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	listen := opts.Listen
	if listen == "" {
		listen = fmt.Sprintf("127.0.0.1:%d", config.DefaultSoftwarePort)
	}
	logger.Info("Starting evoprobe simulate")
	if opts.ImagePath != "" {
		logger.Verbose("  Image: %s", opts.ImagePath)
	}

	srv, err := panelsim.NewServer(img, listen, logger)
	if err != nil {
		return fmt.Errorf("create simulator: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start simulator: %w", err)
	}

	fmt.Fprintf(out, "Simulating %s on %s (password %q)\n", img.PanelType, srv.Addr(), img.Password)
	fmt.Fprintf(out, "  Press Ctrl+C to stop\n")

	ctx, cancel := withSignals(context.Background(), logger)
	defer cancel()
	<-ctx.Done()

	fmt.Fprintf(out, "\nShutting down simulator...\n")
	return srv.Stop()
}
