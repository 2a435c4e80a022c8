package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/tturner/evoprobe/internal/config"
	evoErrors "github.com/tturner/evoprobe/internal/errors"
	"github.com/tturner/evoprobe/internal/paradox/client"
	"github.com/tturner/evoprobe/internal/ui"
)

type ReadOptions struct {
	ConnectOptions
	Space   string // "ram" or "eeprom"
	Address uint32 // EEPROM address, or RAM block number
	Length  int
	Count   int // consecutive reads; each starts Length bytes (or one block) later
	Copy    bool
}

// RunRead performs raw memory reads and prints them as hex dumps.
func RunRead(opts ReadOptions) error {
	space := strings.ToLower(opts.Space)
	if space != "ram" && space != "eeprom" {
		return fmt.Errorf("invalid memory space %q; must be ram or eeprom", opts.Space)
	}
	if opts.Count < 1 {
		opts.Count = 1
	}
	if opts.Length == 0 {
		opts.Length = client.MaxReadLength
	}

	r, err := newPanelRun("read", opts.ConnectOptions)
	if err != nil {
		return err
	}
	defer r.close()

	ctx, cancel := withSignals(context.Background(), r.logger)
	defer cancel()

	if err := r.connect(ctx); err != nil {
		return err
	}
	if err := r.login(ctx); err != nil {
		return err
	}

	report := &ui.Report{
		Target:    r.target,
		PanelType: r.session.PanelType(),
		LoggedIn:  true,
	}
	for i := 0; i < opts.Count; i++ {
		if space == "ram" {
			block := opts.Address + uint32(i)
			data, err := r.readRAM(ctx, block)
			if err != nil && !client.IsMiss(err) {
				return evoErrors.WrapProtocolError(err, "read RAM")
			}
			report.Memory = append(report.Memory, ui.MemoryBlock{
				Space:   "ram",
				Address: block,
				Length:  opts.Length,
				Data:    truncate(data, opts.Length),
				Missing: err != nil,
			})
			continue
		}

		rng := config.EEPROMRange{Address: opts.Address + uint32(i*opts.Length), Length: opts.Length}
		block, err := r.readEEPROM(ctx, rng)
		if err != nil {
			return err
		}
		report.Memory = append(report.Memory, block)
	}

	if err := r.settleAndLogout(ctx); err != nil {
		r.logger.Error("logout: %v", err)
	}
	report.Summary = r.sink.GetSummary()
	return r.emit(report, opts.Copy)
}

func truncate(data []byte, n int) []byte {
	if len(data) > n {
		return data[:n]
	}
	return data
}
