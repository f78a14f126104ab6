package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLLMStatsSnapshotPercentiles(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record(100)
	stats.Record(200)
	stats.Record(300)
	stats.Record(400)
	stats.Record(500)

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 {
		t.Fatalf("expected min=100, got %d", snap.MinMs)
	}
	if snap.MaxMs != 500 {
		t.Fatalf("expected max=500, got %d", snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLLMStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewLLMStats(10 * time.Millisecond)
	stats.Record(100)
	time.Sleep(25 * time.Millisecond)

	snap := stats.Snapshot()
	if snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record(200)
	snap = stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestLLMStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.Record(-10)
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1, got %d", snap.Count)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestLLMStatsClassifiesOutcomes(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	stats.RecordResult(10*time.Millisecond, nil)
	stats.RecordResult(20*time.Millisecond, &TransientError{StatusCode: 503})
	stats.RecordResult(30*time.Millisecond, &MalformedError{Message: "empty"})
	stats.RecordResult(40*time.Millisecond, errors.New("bad request"))

	snap := stats.Snapshot()
	if snap.Count != 4 {
		t.Fatalf("expected count=4, got %d", snap.Count)
	}
	if snap.Transient != 1 || snap.Malformed != 1 || snap.Failed != 1 {
		t.Fatalf("unexpected outcome counts: %+v", snap)
	}
	if snap.MaxMs != 40 {
		t.Fatalf("expected max=40, got %d", snap.MaxMs)
	}
}

func TestMeteredRecordsEveryCall(t *testing.T) {
	stats := NewLLMStats(time.Hour)
	calls := 0
	m := NewMetered(CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		calls++
		if calls == 2 {
			return "", &TransientError{Message: "timeout"}
		}
		return "ok", nil
	}), "test-model", stats)

	for range 3 {
		m.Complete(context.Background(), Request{})
	}
	snap := stats.Snapshot()
	if snap.Count != 3 || snap.Transient != 1 {
		t.Fatalf("expected 3 samples with 1 transient, got %+v", snap)
	}
	if m.Model() != "test-model" {
		t.Fatalf("expected model name passthrough, got %q", m.Model())
	}
}
