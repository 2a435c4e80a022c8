package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/evoprobe/internal/app"
)

type simulateFlags struct {
	image      string
	listen     string
	dropEvery  int
	eventEvery int
	logLevel   string
	logFile    string
	printImage bool
}

func newSimulateCmd() *cobra.Command {
	flags := &simulateFlags{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulated EVO panel behind an IP150 module",
		Long: `Serve the IP150 software port for a simulated EVO panel.

The simulator accepts the module login and panel handshake, answers RAM and
EEPROM reads from a YAML memory image and keeps the panel clock ticking.
--drop-every N ignores every Nth memory read and --event-every N prepends a
live event to every Nth reply, which exercises the client's retry and
resynchronisation paths.`,
		Example: `  # Simulate the built-in EVO192 image on the default port
  evoprobe simulate

  # Simulate a custom image on all interfaces
  evoprobe simulate --image panel.yaml --listen 0.0.0.0:10000

  # Print the built-in image as a starting point for a custom one
  evoprobe simulate --print-image > panel.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) > 0 {
				return cobra.NoArgs(cmd, args)
			}
			return runSimulate(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.image, "image", "", "Memory image YAML (built-in EVO192 image when empty)")
	cmd.Flags().StringVar(&flags.listen, "listen", "", "Listen address (default 127.0.0.1:10000)")
	cmd.Flags().IntVar(&flags.dropEvery, "drop-every", 0, "Ignore every Nth memory read (0 disables)")
	cmd.Flags().IntVar(&flags.eventEvery, "event-every", 0, "Prepend a live event to every Nth reply (0 disables)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "info", "Log level: silent|error|info|verbose|debug")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Also write the log to this file")
	cmd.Flags().BoolVar(&flags.printImage, "print-image", false, "Print the effective memory image as YAML and exit")

	return cmd
}

func runSimulate(cmd *cobra.Command, flags *simulateFlags) error {
	if flags.dropEvery < 0 || flags.eventEvery < 0 {
		return fmt.Errorf("--drop-every and --event-every must be >= 0")
	}
	return app.RunSimulate(app.SimulateOptions{
		ImagePath:  flags.image,
		Listen:     flags.listen,
		DropEvery:  flags.dropEvery,
		EventEvery: flags.eventEvery,
		LogLevel:   flags.logLevel,
		LogFile:    flags.logFile,
		PrintImage: flags.printImage,
		Out:        cmd.OutOrStdout(),
	})
}
