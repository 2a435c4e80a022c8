package app

import (
	"fmt"
	"io"
	"os"

	"github.com/tturner/evoprobe/internal/pcap"
)

type InspectOptions struct {
	Path      string // pcap file or a directory of recordings
	PanelPort uint16 // 0 infers the client from the first payload
	Out       io.Writer
}

// RunInspect summarizes recorded sessions.
func RunInspect(opts InspectOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	info, err := os.Stat(opts.Path)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	if !info.IsDir() {
		summary, err := pcap.SummarizeFile(opts.Path, opts.PanelPort)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n%s", opts.Path, pcap.FormatSessionSummary(summary))
		return nil
	}

	entries, err := pcap.BuildSummaryEntries(opts.Path, opts.PanelPort)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("no pcap files found under %s", opts.Path)
	}
	for i, entry := range entries {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if entry.Err != nil {
			fmt.Fprintf(out, "%s\n  error: %v\n", entry.Name, entry.Err)
			continue
		}
		fmt.Fprintf(out, "%s\n%s", entry.Name, pcap.FormatSessionSummary(entry.Summary))
	}
	return nil
}
