package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/evoprobe/internal/app"
)

func handleHelpArg(cmd *cobra.Command, args []string) bool {
	if len(args) == 0 {
		return false
	}
	if strings.EqualFold(args[0], "help") {
		_ = cmd.Help()
		return true
	}
	return false
}

// connectFlags are shared by every command that talks to a panel.
type connectFlags struct {
	configPath   string
	quickStart   bool
	address      string
	port         int
	password     string
	ssh          string
	replay       string
	replayStrict bool
	record       string
	metricsFile  string
	metricsJSON  string
	logLevel     string
	logFile      string
	copyReport   bool
}

func registerConnectFlags(cmd *cobra.Command, flags *connectFlags) {
	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path (defaults are used when not set)")
	cmd.Flags().BoolVar(&flags.quickStart, "quick-start", false, "Write a default config file if --config does not exist")
	cmd.Flags().StringVar(&flags.address, "address", "", "IP150 module address (overrides config)")
	cmd.Flags().IntVar(&flags.port, "port", 0, "IP150 software port (default 10000)")
	cmd.Flags().StringVar(&flags.password, "password", "", "IP150 module password (prompted for when empty)")
	cmd.Flags().StringVar(&flags.ssh, "ssh", "", "Reach the module through an SSH jump host (user@host[:port])")
	cmd.Flags().StringVar(&flags.replay, "replay", "", "Replay a recorded session from a pcap file instead of connecting")
	cmd.Flags().BoolVar(&flags.replayStrict, "replay-strict", false, "Fail when a request differs from the recording")
	cmd.Flags().StringVar(&flags.record, "record", "", "Record the session to a pcap file")
	cmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "Write per-operation metrics to a CSV file")
	cmd.Flags().StringVar(&flags.metricsJSON, "metrics-json", "", "Write per-operation metrics to a JSON file")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level override: silent|error|info|verbose|debug")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Also write the log to this file")
	cmd.Flags().BoolVar(&flags.copyReport, "copy", false, "Copy the report to the clipboard")
}

func (f *connectFlags) options() app.ConnectOptions {
	return app.ConnectOptions{
		ConfigPath:   f.configPath,
		QuickStart:   f.quickStart,
		Address:      f.address,
		Port:         f.port,
		Password:     f.password,
		SSH:          f.ssh,
		ReplayFile:   f.replay,
		ReplayStrict: f.replayStrict,
		RecordFile:   f.record,
		MetricsFile:  f.metricsFile,
		MetricsJSON:  f.metricsJSON,
		LogLevel:     f.logLevel,
		LogFile:      f.logFile,
	}
}

// parseUint accepts decimal or 0x-prefixed hex.
func parseUint(s string, bits int) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func missingFlagError(cmd *cobra.Command, flag string) error {
	_ = cmd.Help()
	return fmt.Errorf("required flag %s not set", flag)
}
