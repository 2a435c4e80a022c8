package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// barWidth is the number of cells in the bar.
const barWidth = 30

// ProgressBar tracks a fixed number of panel reads on one terminal line.
type ProgressBar struct {
	total       int64
	current     int64
	misses      int64
	item        string
	startTime   time.Time
	lastUpdate  time.Time
	throttle    time.Duration
	output      io.Writer
	enabled     bool
	description string
}

// NewProgressBar creates a progress bar on stderr so it doesn't interfere
// with the report on stdout.
func NewProgressBar(total int64, description string) *ProgressBar {
	return NewWriterProgressBar(os.Stderr, total, description)
}

// NewWriterProgressBar creates a progress bar that renders to w.
func NewWriterProgressBar(w io.Writer, total int64, description string) *ProgressBar {
	return &ProgressBar{
		total:       total,
		startTime:   time.Now(),
		throttle:    100 * time.Millisecond,
		output:      w,
		enabled:     true,
		description: description,
	}
}

// Disable disables the progress bar
func (p *ProgressBar) Disable() {
	p.enabled = false
}

// Enable enables the progress bar
func (p *ProgressBar) Enable() {
	p.enabled = true
}

// Step records one completed read. item names it on the status line and
// miss counts it as unanswered.
func (p *ProgressBar) Step(item string, miss bool) {
	p.current++
	p.item = item
	if miss {
		p.misses++
	}
	p.render()
}

// Misses returns the number of unanswered reads so far.
func (p *ProgressBar) Misses() int64 {
	return p.misses
}

func (p *ProgressBar) render() {
	if !p.enabled {
		return
	}

	now := time.Now()
	if now.Sub(p.lastUpdate) < p.throttle && p.current < p.total {
		return
	}
	p.lastUpdate = now

	var percent float64
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total) * 100
	}
	filled := int(float64(barWidth) * percent / 100)
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("=", filled)
	if filled < barWidth {
		bar += ">" + strings.Repeat("-", barWidth-filled-1)
	}

	var sb strings.Builder
	sb.WriteString("\r")
	if p.description != "" {
		sb.WriteString(p.description + " ")
	}
	fmt.Fprintf(&sb, "[%s] %d/%d", bar, p.current, p.total)
	if p.misses > 0 {
		fmt.Fprintf(&sb, " | %d missed", p.misses)
	}
	fmt.Fprintf(&sb, " | %s", formatDuration(time.Since(p.startTime)))
	if p.item != "" {
		fmt.Fprintf(&sb, " | %s", p.item)
	}
	// Clear what a longer previous line left behind.
	sb.WriteString("\x1b[K")

	fmt.Fprint(p.output, sb.String())
}

// Finish renders the final state and ends the line.
func (p *ProgressBar) Finish() {
	if !p.enabled {
		return
	}
	p.lastUpdate = time.Time{}
	p.item = ""
	p.render()
	fmt.Fprint(p.output, "\n")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", minutes, seconds)
}
