package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/evoprobe/internal/app"
)

type labelsFlags struct {
	connectFlags
	first    int
	last     int
	progress bool
}

func newLabelsCmd() *cobra.Command {
	flags := &labelsFlags{}

	cmd := &cobra.Command{
		Use:   "labels <zone|partition|user|door|module>",
		Short: "Read one label table",
		Long: `Log in and read the labels of one kind from panel EEPROM.

Each label is a 16-byte record. --last 0 reads up to the last record of the
table (192 zones, 8 partitions, 999 users, 32 doors, 254 modules on EVO192).
Records the panel does not answer are listed as missing.`,
		Example: `  # Read all zone labels
  evoprobe labels zone --config evoprobe.yaml --progress

  # Read users 1 to 10
  evoprobe labels user --first 1 --last 10 --config evoprobe.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("labels requires a label kind (e.g. 'evoprobe labels zone')")
			}
			return runLabels(cmd, flags, args[0])
		},
	}

	registerConnectFlags(cmd, &flags.connectFlags)
	cmd.Flags().IntVar(&flags.first, "first", 1, "First record number")
	cmd.Flags().IntVar(&flags.last, "last", 0, "Last record number (0 for the end of the table)")
	cmd.Flags().BoolVar(&flags.progress, "progress", false, "Show a progress bar")

	return cmd
}

func runLabels(cmd *cobra.Command, flags *labelsFlags, kind string) error {
	if flags.last != 0 && flags.last < flags.first {
		return fmt.Errorf("--last (%d) must not be below --first (%d)", flags.last, flags.first)
	}
	opts := flags.options()
	opts.Out = cmd.OutOrStdout()
	return app.RunLabels(app.LabelsOptions{
		ConnectOptions: opts,
		Kind:           kind,
		First:          flags.first,
		Last:           flags.last,
		Copy:           flags.copyReport,
		Progress:       flags.progress,
	})
}
