package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tturner/evoprobe/internal/app"
)

func newInspectCmd() *cobra.Command {
	var panelPort int

	cmd := &cobra.Command{
		Use:   "inspect <pcap|dir>",
		Short: "Summarize recorded sessions",
		Long: `Summarize one recording made with --record, or every .pcap/.pcapng file
under a directory: message counts per kind, RAM and EEPROM reads, live events,
and checksum or framing errors.`,
		Example: `  evoprobe inspect session.pcap
  evoprobe inspect captures/ --panel-port 10000`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) != 1 {
				return fmt.Errorf("inspect requires a pcap file or directory")
			}
			if panelPort < 0 || panelPort > 65535 {
				return fmt.Errorf("--panel-port must be 0-65535")
			}
			return app.RunInspect(app.InspectOptions{
				Path:      args[0],
				PanelPort: uint16(panelPort),
				Out:       cmd.OutOrStdout(),
			})
		},
	}
	cmd.Flags().IntVar(&panelPort, "panel-port", 0, "Panel TCP port in the capture (0 infers from the first payload)")
	return cmd
}
