package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tturner/evoprobe/internal/app"
	"github.com/tturner/evoprobe/internal/paradox/client"
)

type readFlags struct {
	connectFlags
	length int
	count  int
}

func newReadCmd() *cobra.Command {
	flags := &readFlags{}

	cmd := &cobra.Command{
		Use:   "read <ram|eeprom> <address>",
		Short: "Read raw panel memory",
		Long: `Log in and read raw panel memory, printing each read as a hex dump.

For eeprom the address is a byte address (0 to 0x3FFFF). For ram it is a
block number. Addresses accept decimal or 0x-prefixed hex. With --count,
consecutive reads follow each other: the next EEPROM read starts --length
bytes later and the next RAM read uses the next block.`,
		Example: `  # Read RAM block 1 (holds the panel clock)
  evoprobe read ram 1 --config evoprobe.yaml

  # Read 64 bytes of EEPROM at 0x430, four times in a row
  evoprobe read eeprom 0x430 --count 4 --config evoprobe.yaml`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if len(args) != 2 {
				return fmt.Errorf("read requires a memory space and an address (e.g. 'evoprobe read eeprom 0x430')")
			}
			return runRead(cmd, flags, args[0], args[1])
		},
	}

	registerConnectFlags(cmd, &flags.connectFlags)
	cmd.Flags().IntVar(&flags.length, "length", client.MaxReadLength, fmt.Sprintf("Bytes per read (1-%d)", client.MaxReadLength))
	cmd.Flags().IntVar(&flags.count, "count", 1, "Number of consecutive reads")

	return cmd
}

func runRead(cmd *cobra.Command, flags *readFlags, space, address string) error {
	space = strings.ToLower(space)
	if space != "ram" && space != "eeprom" {
		return fmt.Errorf("invalid memory space %q; must be ram or eeprom", space)
	}
	addr, err := parseUint(address, 32)
	if err != nil {
		return err
	}
	if flags.length < 1 || flags.length > client.MaxReadLength {
		return fmt.Errorf("--length must be 1-%d, got %d", client.MaxReadLength, flags.length)
	}
	if flags.count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	opts := flags.options()
	opts.Out = cmd.OutOrStdout()
	return app.RunRead(app.ReadOptions{
		ConnectOptions: opts,
		Space:          space,
		Address:        uint32(addr),
		Length:         flags.length,
		Count:          flags.count,
		Copy:           flags.copyReport,
	})
}
