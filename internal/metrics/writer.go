package metrics

// CSV/JSON metric files and the human-readable summary

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{"timestamp", "operation", "target", "outcome", "rtt_ms", "bytes", "error"}

type output interface {
	write(m Metric) error
	close() error
}

// Writer streams metrics to a CSV file, a JSON array file, or both.
type Writer struct {
	outputs []output
}

// NewWriter opens the requested files. An empty path disables that format.
func NewWriter(csvPath, jsonPath string) (*Writer, error) {
	w := &Writer{}
	if csvPath != "" {
		out, err := openCSV(csvPath)
		if err != nil {
			return nil, err
		}
		w.outputs = append(w.outputs, out)
	}
	if jsonPath != "" {
		out, err := openJSON(jsonPath)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.outputs = append(w.outputs, out)
	}
	return w, nil
}

// WriteMetric appends m to every open file.
func (w *Writer) WriteMetric(m Metric) error {
	for _, out := range w.outputs {
		if err := out.write(m); err != nil {
			return err
		}
	}
	return nil
}

// Close finishes and closes every file.
func (w *Writer) Close() error {
	var errs []error
	for _, out := range w.outputs {
		errs = append(errs, out.close())
	}
	w.outputs = nil
	return errors.Join(errs...)
}

type csvOutput struct {
	f *os.File
	w *csv.Writer
}

func openCSV(path string) (*csvOutput, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create CSV file: %w", err)
	}
	out := &csvOutput{f: f, w: csv.NewWriter(f)}
	if err := out.flushRow(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write CSV header: %w", err)
	}
	return out, nil
}

func (o *csvOutput) flushRow(row []string) error {
	if err := o.w.Write(row); err != nil {
		return err
	}
	o.w.Flush()
	return o.w.Error()
}

func (o *csvOutput) write(m Metric) error {
	rtt := ""
	if m.RTTMs > 0 {
		rtt = strconv.FormatFloat(m.RTTMs, 'f', 3, 64)
	}
	row := []string{
		m.Timestamp.Format(time.RFC3339Nano),
		string(m.Operation),
		m.Target,
		string(m.Outcome),
		rtt,
		strconv.Itoa(m.Bytes),
		m.Error,
	}
	if err := o.flushRow(row); err != nil {
		return fmt.Errorf("write CSV record: %w", err)
	}
	return nil
}

func (o *csvOutput) close() error {
	o.w.Flush()
	return errors.Join(o.w.Error(), o.f.Close())
}

// jsonOutput keeps the file a valid JSON array after every close.
type jsonOutput struct {
	f *os.File
	n int
}

func openJSON(path string) (*jsonOutput, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create JSON file: %w", err)
	}
	if _, err := f.WriteString("["); err != nil {
		f.Close()
		return nil, fmt.Errorf("write JSON start: %w", err)
	}
	return &jsonOutput{f: f}, nil
}

func (o *jsonOutput) write(m Metric) error {
	data, err := json.MarshalIndent(m, "  ", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	sep := ",\n  "
	if o.n == 0 {
		sep = "\n  "
	}
	if _, err := o.f.WriteString(sep + string(data)); err != nil {
		return fmt.Errorf("write JSON: %w", err)
	}
	o.n++
	return nil
}

func (o *jsonOutput) close() error {
	_, err := o.f.WriteString("\n]\n")
	return errors.Join(err, o.f.Close())
}

// FormatSummary renders s for the end-of-run report.
func FormatSummary(s *Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total Operations: %d\n", s.TotalOperations)
	if s.TotalOperations == 0 {
		return b.String()
	}

	fmt.Fprintf(&b, "Outcomes: %s\n", formatOutcomes(s.Outcomes, s.TotalOperations))
	fmt.Fprintf(&b, "Bytes Read: %d\n", s.BytesRead)

	if l := s.Latency; l.Samples > 0 {
		b.WriteString("\nRound Trip (answered commands):\n")
		fmt.Fprintf(&b, "  min %.3f ms, mean %.3f ms, max %.3f ms\n", l.Min, l.Mean, l.Max)
		fmt.Fprintf(&b, "  p50 %.3f ms, p90 %.3f ms, p99 %.3f ms\n", l.P50, l.P90, l.P99)
		parts := make([]string, 0, len(latencyBuckets))
		for i, bucket := range latencyBuckets {
			parts = append(parts, fmt.Sprintf("%s=%d", bucket.label, l.Buckets[i]))
		}
		fmt.Fprintf(&b, "  %s\n", strings.Join(parts, " "))
	}

	ops := make([]OperationType, 0, len(s.ByOperation))
	for op := range s.ByOperation {
		ops = append(ops, op)
	}
	slices.Sort(ops)

	b.WriteString("\nPer-Operation Statistics:\n")
	for _, op := range ops {
		st := s.ByOperation[op]
		fmt.Fprintf(&b, "  %s: %d ops (%s)", op, st.Count, formatOutcomes(st.Outcomes, 0))
		if st.Latency.Samples > 0 {
			fmt.Fprintf(&b, ", mean %.3f ms", st.Latency.Mean)
		}
		if st.Bytes > 0 {
			fmt.Fprintf(&b, ", %d bytes", st.Bytes)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// formatOutcomes lists the non-zero outcomes, with percentages when total > 0.
func formatOutcomes(counts map[Outcome]int, total int) string {
	var parts []string
	for _, o := range outcomeOrder {
		n := counts[o]
		if n == 0 {
			continue
		}
		if total > 0 {
			parts = append(parts, fmt.Sprintf("%s %d (%.1f%%)", o, n, float64(n)/float64(total)*100))
		} else {
			parts = append(parts, fmt.Sprintf("%s %d", o, n))
		}
	}
	return strings.Join(parts, ", ")
}
