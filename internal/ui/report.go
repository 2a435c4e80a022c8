package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/evoprobe/internal/evo"
	"github.com/tturner/evoprobe/internal/metrics"
	"github.com/tturner/evoprobe/internal/pcap"
)

// MemoryBlock is one memory read shown in a report.
type MemoryBlock struct {
	Space   string // "ram" or "eeprom"
	Address uint32 // block number for RAM
	Length  int
	Data    []byte
	Missing bool
}

// Report is what a dump collected from the panel.
type Report struct {
	Target    string
	PanelType string
	LoggedIn  bool
	Clock     time.Time // zero when not read
	ClockNote string    // why the clock is missing
	Memory    []MemoryBlock
	Labels    []evo.Label
	Summary   *metrics.Summary
}

// RenderReport renders r with styles bound to w's colour profile.
func RenderReport(w io.Writer, r *Report) string {
	return renderReport(NewStyles(lipgloss.NewRenderer(w)), r)
}

// PlainReport renders r without colours, e.g. for the clipboard.
func PlainReport(r *Report) string {
	return renderReport(NewStyles(lipgloss.NewRenderer(io.Discard)), r)
}

func renderReport(st Styles, r *Report) string {
	var sb strings.Builder

	header := []string{
		st.Title.Render("Paradox panel " + r.Target),
		field(st, "Panel", valueOr(r.PanelType, "unknown")),
	}
	if r.LoggedIn {
		header = append(header, field(st, "Session", st.Success.Render("logged in")))
	} else {
		header = append(header, field(st, "Session", st.Error.Render("not logged in")))
	}
	switch {
	case !r.Clock.IsZero():
		header = append(header, field(st, "Clock", r.Clock.Format("2006-01-02 15:04:05")))
	case r.ClockNote != "":
		header = append(header, field(st, "Clock", st.Warning.Render(r.ClockNote)))
	}
	sb.WriteString(st.Box.Render(lipgloss.JoinVertical(lipgloss.Left, header...)))
	sb.WriteString("\n")

	if len(r.Memory) > 0 {
		sb.WriteString(st.Section.Render("Memory"))
		sb.WriteString("\n")
		for _, m := range r.Memory {
			sb.WriteString(renderMemory(st, m))
		}
	}

	if len(r.Labels) > 0 {
		sb.WriteString(st.Section.Render("Labels"))
		sb.WriteString("\n")
		sb.WriteString(renderLabels(st, r.Labels))
	}

	if r.Summary != nil && r.Summary.TotalOperations > 0 {
		sb.WriteString(st.Section.Render("Statistics"))
		sb.WriteString("\n")
		sb.WriteString(st.Dim.Render(strings.TrimRight(metrics.FormatSummary(r.Summary), "\n")))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderMemory(st Styles, m MemoryBlock) string {
	var title string
	if m.Space == "ram" {
		title = fmt.Sprintf("RAM block %d (%d bytes)", m.Address, m.Length)
	} else {
		title = fmt.Sprintf("EEPROM 0x%05X (%d bytes)", m.Address, m.Length)
	}
	if m.Missing {
		return st.Value.Render(title) + "  " + st.Warning.Render("no answer") + "\n"
	}
	base := m.Address
	if m.Space == "ram" {
		base = 0
	}
	return st.Value.Render(title) + "\n" + st.Dim.Render(strings.TrimRight(pcap.HexDumpAt(m.Data, base, 16), "\n")) + "\n"
}

func renderLabels(st Styles, labels []evo.Label) string {
	var sb strings.Builder
	for _, l := range labels {
		name := fmt.Sprintf("%s %d", l.Kind, l.Number)
		addr := st.Dim.Render(fmt.Sprintf("0x%05X", l.Address))
		var text string
		switch {
		case l.Missing:
			text = st.Warning.Render("(no answer)")
		case l.Text == "":
			text = st.Dim.Render("(blank)")
		default:
			text = st.Value.Render(l.Text)
		}
		fmt.Fprintf(&sb, "%s %s  %s\n", st.Key.Render(name), addr, text)
	}
	return sb.String()
}

func field(st Styles, key, value string) string {
	return st.Key.Render(key) + st.Value.Render(value)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
