package metrics

// Per-operation timing and outcome accounting for a panel run

import (
	"context"
	"errors"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/tturner/evoprobe/internal/paradox/client"
)

// OperationType names one kind of panel command.
type OperationType string

const (
	OperationLogin      OperationType = "LOGIN"
	OperationReadRAM    OperationType = "READ_RAM"
	OperationReadEEPROM OperationType = "READ_EEPROM"
	OperationReadLabel  OperationType = "READ_LABEL"
	OperationLogout     OperationType = "LOGOUT"
)

// Outcome is how a panel command ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeMiss    Outcome = "miss"    // no answer or a short read; the run carries on
	OutcomeTimeout Outcome = "timeout" // the socket or context deadline expired
	OutcomeFailed  Outcome = "failed"
)

var outcomeOrder = []Outcome{OutcomeOK, OutcomeMiss, OutcomeTimeout, OutcomeFailed}

// Classify maps an operation error to its Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if client.IsMiss(err) {
		return OutcomeMiss
	}
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeFailed
}

// Metric is one timed panel command.
type Metric struct {
	Timestamp time.Time     `json:"timestamp"`
	Operation OperationType `json:"operation"`
	Target    string        `json:"target"`
	Outcome   Outcome       `json:"outcome"`
	RTTMs     float64       `json:"rtt_ms"`
	Bytes     int           `json:"bytes"`
	Error     string        `json:"error,omitempty"`
}

// OK reports whether the command was answered.
func (m Metric) OK() bool { return m.Outcome == OutcomeOK }

// Latency describes the round trip times of answered commands, in ms.
type Latency struct {
	Samples int
	Min     float64
	Max     float64
	Mean    float64
	P50     float64
	P90     float64
	P99     float64
	// Buckets counts samples per latencyBuckets entry.
	Buckets []int
}

var latencyBuckets = []struct {
	label string
	below float64
}{
	{"<1ms", 1},
	{"1-10ms", 10},
	{"10-100ms", 100},
	{"100-500ms", 500},
	{">500ms", 0},
}

// OperationStats aggregates one OperationType.
type OperationStats struct {
	Count    int
	Outcomes map[Outcome]int
	Bytes    int
	Latency  Latency
}

// Summary aggregates a whole run.
type Summary struct {
	TotalOperations int
	Outcomes        map[Outcome]int
	BytesRead       int
	Latency         Latency
	ByOperation     map[OperationType]*OperationStats
}

// Answered is the number of commands with OutcomeOK.
func (s *Summary) Answered() int { return s.Outcomes[OutcomeOK] }

// Sink collects the metrics of one run. It is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	metrics []Metric
}

func NewSink() *Sink {
	return &Sink{}
}

// Record appends m.
func (s *Sink) Record(m Metric) {
	s.mu.Lock()
	s.metrics = append(s.metrics, m)
	s.mu.Unlock()
}

// Observe records a command that started at start, moved n payload bytes
// and ended with err.
func (s *Sink) Observe(op OperationType, target string, start time.Time, n int, err error) Metric {
	m := Metric{
		Timestamp: start,
		Operation: op,
		Target:    target,
		Outcome:   Classify(err),
		RTTMs:     float64(time.Since(start).Microseconds()) / 1000,
		Bytes:     n,
	}
	if err != nil {
		m.Error = err.Error()
	}
	s.Record(m)
	return m
}

// GetMetrics returns a copy of everything recorded so far.
func (s *Sink) GetMetrics() []Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.metrics)
}

// GetSummary aggregates the recorded metrics. The result is not shared with
// the sink.
func (s *Sink) GetSummary() *Summary {
	metrics := s.GetMetrics()

	sum := &Summary{
		TotalOperations: len(metrics),
		Outcomes:        make(map[Outcome]int),
		ByOperation:     make(map[OperationType]*OperationStats),
	}
	var all []float64
	perOp := make(map[OperationType][]float64)
	for _, m := range metrics {
		sum.Outcomes[m.Outcome]++
		sum.BytesRead += m.Bytes

		st := sum.ByOperation[m.Operation]
		if st == nil {
			st = &OperationStats{Outcomes: make(map[Outcome]int)}
			sum.ByOperation[m.Operation] = st
		}
		st.Count++
		st.Outcomes[m.Outcome]++
		st.Bytes += m.Bytes

		if m.OK() && m.RTTMs > 0 {
			all = append(all, m.RTTMs)
			perOp[m.Operation] = append(perOp[m.Operation], m.RTTMs)
		}
	}

	sum.Latency = newLatency(all)
	for op, samples := range perOp {
		sum.ByOperation[op].Latency = newLatency(samples)
	}
	return sum
}

func newLatency(samples []float64) Latency {
	l := Latency{Samples: len(samples), Buckets: make([]int, len(latencyBuckets))}
	if len(samples) == 0 {
		return l
	}
	slices.Sort(samples)

	var total float64
	for _, v := range samples {
		total += v
		l.Buckets[bucketIndex(v)]++
	}
	l.Min = samples[0]
	l.Max = samples[len(samples)-1]
	l.Mean = total / float64(len(samples))
	l.P50 = nearestRank(samples, 50)
	l.P90 = nearestRank(samples, 90)
	l.P99 = nearestRank(samples, 99)
	return l
}

func bucketIndex(v float64) int {
	for i, b := range latencyBuckets {
		if b.below > 0 && v < b.below {
			return i
		}
	}
	return len(latencyBuckets) - 1
}

// nearestRank returns the pct-th percentile of sorted.
func nearestRank(sorted []float64, pct int) float64 {
	rank := (pct*len(sorted) + 99) / 100
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}
