package ui

import "github.com/charmbracelet/lipgloss"

// Palette is the report colour scheme (Tokyo Night).
var Palette = struct {
	Accent  lipgloss.Color
	Dim     lipgloss.Color
	Text    lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Border  lipgloss.Color
}{
	Accent:  lipgloss.Color("#7aa2f7"),
	Dim:     lipgloss.Color("#565f89"),
	Text:    lipgloss.Color("#c0caf5"),
	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Border:  lipgloss.Color("#414868"),
}

// Styles are the report styles bound to one renderer. A renderer writing to
// something other than a terminal drops the colours.
type Styles struct {
	Title   lipgloss.Style
	Section lipgloss.Style
	Key     lipgloss.Style
	Value   lipgloss.Style
	Dim     lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles builds the report styles for r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:   r.NewStyle().Bold(true).Foreground(Palette.Accent),
		Section: r.NewStyle().Bold(true).Foreground(Palette.Accent).MarginTop(1),
		Key:     r.NewStyle().Foreground(Palette.Dim).Width(12),
		Value:   r.NewStyle().Foreground(Palette.Text),
		Dim:     r.NewStyle().Foreground(Palette.Dim),
		Success: r.NewStyle().Foreground(Palette.Success),
		Warning: r.NewStyle().Foreground(Palette.Warning),
		Error:   r.NewStyle().Foreground(Palette.Error),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Palette.Border).
			Padding(0, 1),
	}
}
