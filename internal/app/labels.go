package app

import (
	"context"

	"github.com/tturner/evoprobe/internal/evo"
	"github.com/tturner/evoprobe/internal/ui"
)

type LabelsOptions struct {
	ConnectOptions
	Kind     string // zone, partition, user, door or module
	First    int
	Last     int // 0 reads up to the table's last record
	Copy     bool
	Progress bool
}

// RunLabels reads one label table and prints it.
func RunLabels(opts LabelsOptions) error {
	kind, err := evo.ParseKind(opts.Kind)
	if err != nil {
		return err
	}
	if opts.First == 0 {
		opts.First = 1
	}
	if opts.Last == 0 {
		opts.Last = evo.EVO192[kind].Max
	}
	if _, err := evo.LabelAddress(kind, opts.First); err != nil {
		return err
	}
	if _, err := evo.LabelAddress(kind, opts.Last); err != nil {
		return err
	}

	r, err := newPanelRun("labels", opts.ConnectOptions)
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
	labels, err := r.scanLabels(ctx, kind, opts.First, opts.Last, opts.Progress)
	report.Labels = labels
	if err != nil {
		return err
	}

	if err := r.settleAndLogout(ctx); err != nil {
		r.logger.Error("logout: %v", err)
	}
	report.Summary = r.sink.GetSummary()
	return r.emit(report, opts.Copy)
}
