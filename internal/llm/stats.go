package llm

import (
	"context"
	"slices"
	"sync"
	"time"
)

type outcome uint8

const (
	outcomeOK outcome = iota
	outcomeTransient
	outcomeMalformed
	outcomeFailed
)

type sample struct {
	at         time.Time
	durationMs int64
	outcome    outcome
}

// StatsSnapshot aggregates the completion calls inside the rolling window.
type StatsSnapshot struct {
	Count     int     `json:"count"`
	Transient int     `json:"transient_errors"`
	Malformed int     `json:"malformed_responses"`
	Failed    int     `json:"other_errors"`
	MinMs     int64   `json:"min_ms"`
	MaxMs     int64   `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

// LLMStats keeps completion latencies and outcomes for a rolling window.
type LLMStats struct {
	mu      sync.Mutex
	samples []sample
	window  time.Duration
	now     func() time.Time
}

func NewLLMStats(window time.Duration) *LLMStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LLMStats{
		samples: make([]sample, 0, 256),
		window:  window,
		now:     time.Now,
	}
}

// Record adds a successful call.
func (s *LLMStats) Record(durationMs int64) {
	s.add(durationMs, outcomeOK)
}

// RecordResult adds a call and classifies its error, if any.
func (s *LLMStats) RecordResult(d time.Duration, err error) {
	o := outcomeOK
	switch {
	case err == nil:
	case IsTransient(err):
		o = outcomeTransient
	case IsMalformed(err):
		o = outcomeMalformed
	default:
		o = outcomeFailed
	}
	s.add(d.Milliseconds(), o)
}

func (s *LLMStats) add(durationMs int64, o outcome) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, durationMs: durationMs, outcome: o})
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	snap := StatsSnapshot{Count: len(s.samples)}
	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		switch sm.outcome {
		case outcomeTransient:
			snap.Transient++
		case outcomeMalformed:
			snap.Malformed++
		case outcomeFailed:
			snap.Failed++
		}
	}
	slices.Sort(values)

	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

func (s *LLMStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.samples = slices.DeleteFunc(s.samples, func(sm sample) bool {
		return sm.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the two closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[n-1])
	}
	rank := float64(n-1) * pct / 100.0
	lower := int(rank)
	if lower+1 >= n {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(rank-float64(lower))
}

// Metered records the latency and outcome of every call to the wrapped
// Completer.
type Metered struct {
	next  Completer
	model string
	Stats *LLMStats
}

func NewMetered(next Completer, model string, stats *LLMStats) *Metered {
	return &Metered{next: next, model: model, Stats: stats}
}

func (m *Metered) Complete(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	text, err := m.next.Complete(ctx, req)
	m.Stats.RecordResult(time.Since(start), err)
	return text, err
}

// Model returns the configured model name.
func (m *Metered) Model() string { return m.model }
