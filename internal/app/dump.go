package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tturner/evoprobe/internal/config"
	evoErrors "github.com/tturner/evoprobe/internal/errors"
	"github.com/tturner/evoprobe/internal/evo"
	"github.com/tturner/evoprobe/internal/metrics"
	"github.com/tturner/evoprobe/internal/paradox/client"
	"github.com/tturner/evoprobe/internal/progress"
	"github.com/tturner/evoprobe/internal/ui"
)

type DumpOptions struct {
	ConnectOptions
	Copy     bool // copy the plain report to the clipboard
	Progress bool // show a progress bar for label scans
}

// RunDump logs in, reads the configured RAM block, the panel clock, the
// configured EEPROM ranges and labels, waits for the settle time, logs out
// and prints a report.
func RunDump(opts DumpOptions) error {
	r, err := newPanelRun("dump", opts.ConnectOptions)
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

	if err := r.dumpRAM(ctx, report); err != nil {
		return err
	}
	for _, rng := range r.cfg.Queries.EEPROM {
		block, err := r.readEEPROM(ctx, rng)
		if err != nil {
			return err
		}
		report.Memory = append(report.Memory, block)
	}
	for _, kind := range evo.Kinds() {
		rng, ok := r.cfg.Queries.Labels()[kind]
		if !ok {
			continue
		}
		labels, err := r.scanLabels(ctx, kind, rng.First, rng.Last, opts.Progress)
		report.Labels = append(report.Labels, labels...)
		if err != nil {
			return err
		}
	}

	if err := r.settleAndLogout(ctx); err != nil {
		r.logger.Error("logout: %v", err)
	}
	report.Summary = r.sink.GetSummary()
	return r.emit(report, opts.Copy)
}

// dumpRAM reads the configured RAM block and decodes the panel clock.
func (r *panelRun) dumpRAM(ctx context.Context, report *ui.Report) error {
	block := r.cfg.Queries.RAMBlock
	if block == 0 {
		return nil
	}

	data, err := r.readRAM(ctx, uint32(block))
	if err != nil && !client.IsMiss(err) {
		return evoErrors.WrapProtocolError(err, "read RAM")
	}
	report.Memory = append(report.Memory, ui.MemoryBlock{
		Space:   "ram",
		Address: uint32(block),
		Length:  client.MaxReadLength,
		Data:    data,
		Missing: err != nil,
	})

	if block != evo.ClockBlock {
		data, err = r.readRAM(ctx, evo.ClockBlock)
		if err != nil && !client.IsMiss(err) {
			return evoErrors.WrapProtocolError(err, "read panel clock")
		}
	}
	if err != nil {
		report.ClockNote = "no answer"
		return nil
	}
	clock, err := evo.DecodePanelTime(data)
	if err != nil {
		r.logger.Info("%v", err)
		report.ClockNote = "invalid date in RAM"
		return nil
	}
	report.Clock = clock
	r.logger.Info("Panel date: %s", clock.Format("2006-01-02 15:04:05"))
	return nil
}

func (r *panelRun) readRAM(ctx context.Context, block uint32) ([]byte, error) {
	start := time.Now()
	data, err := r.session.ReadRAM(ctx, block, client.MaxReadLength)
	r.observe(metrics.OperationReadRAM, fmt.Sprintf("ram block %d", block), start, len(data), err)
	return data, err
}

// readEEPROM reads one configured range. A soft miss becomes a Missing block.
func (r *panelRun) readEEPROM(ctx context.Context, rng config.EEPROMRange) (ui.MemoryBlock, error) {
	start := time.Now()
	data, err := r.session.ReadEEPROM(ctx, rng.Address, 0, rng.Length)
	r.observe(metrics.OperationReadEEPROM, fmt.Sprintf("eeprom 0x%05X", rng.Address), start, len(data), err)
	if err != nil && !client.IsMiss(err) {
		return ui.MemoryBlock{}, evoErrors.WrapProtocolError(err, "read EEPROM")
	}
	return ui.MemoryBlock{
		Space:   "eeprom",
		Address: rng.Address,
		Length:  rng.Length,
		Data:    data,
		Missing: err != nil,
	}, nil
}

// scanLabels reads labels first..last of kind, timing every record.
func (r *panelRun) scanLabels(ctx context.Context, kind evo.Kind, first, last int, showProgress bool) ([]evo.Label, error) {
	bar := progress.NewProgressBar(int64(last-first+1), kind.String()+"s")
	if !showProgress {
		bar.Disable()
	}

	start := time.Now()
	labels, err := evo.ReadLabels(ctx, r.session, kind, first, last, func(l evo.Label) {
		var readErr error
		n := evo.LabelLength
		if l.Missing {
			readErr = client.ErrNoResponse
			n = 0
		}
		target := fmt.Sprintf("%s %d", l.Kind, l.Number)
		r.observe(metrics.OperationReadLabel, target, start, n, readErr)
		if !l.Missing {
			target += ": " + l.Text
		}
		bar.Step(target, l.Missing)
		start = time.Now()
	})
	bar.Finish()
	if err != nil {
		return labels, evoErrors.WrapProtocolError(err, "read "+kind.String()+" labels")
	}
	if bar.Misses() > 0 {
		r.logger.Info("%d of %d %s labels did not answer", bar.Misses(), len(labels), kind)
	}
	return labels, nil
}

// emit prints the report and optionally copies it to the clipboard.
func (r *panelRun) emit(report *ui.Report, copyReport bool) error {
	fmt.Fprint(r.out, ui.RenderReport(r.out, report))
	if copyReport {
		if err := ui.CopyToClipboard(ui.PlainReport(report)); err != nil {
			r.logger.Error("copy to clipboard: %v", err)
		} else {
			r.logger.Info("Report copied to clipboard")
		}
	}
	return nil
}
