package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/evoprobe/internal/app"
)

type dumpFlags struct {
	connectFlags
	progress bool
}

func newDumpCmd() *cobra.Command {
	flags := &dumpFlags{}

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Log in and dump the panel clock, memory and labels",
		Long: `Log in to the panel, read the configured RAM block and the panel clock,
the configured EEPROM ranges and every configured label range, then log out
and print a report.

What is read comes from the queries section of the config file. Labels that
the panel does not answer are reported as missing rather than failing the run.`,
		Example: `  # Dump using a config file
  evoprobe dump --config evoprobe.yaml

  # Dump a panel without a config file and prompt for the password
  evoprobe dump --address 192.168.1.50

  # Record the session and write metrics
  evoprobe dump --config evoprobe.yaml --record session.pcap --metrics-file metrics.csv

  # Replay a recorded session offline
  evoprobe dump --config evoprobe.yaml --replay session.pcap`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) > 0 {
				return cobra.NoArgs(cmd, args)
			}
			return runDump(cmd, flags)
		},
	}

	registerConnectFlags(cmd, &flags.connectFlags)
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "Show a progress bar while scanning labels")

	return cmd
}

func runDump(cmd *cobra.Command, flags *dumpFlags) error {
	opts := flags.options()
	opts.Out = cmd.OutOrStdout()
	return app.RunDump(app.DumpOptions{
		ConnectOptions: opts,
		Copy:           flags.copyReport,
		Progress:       flags.progress,
	})
}
