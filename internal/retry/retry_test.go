package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgallion1/docforge/internal/llm"
)

func recordingPolicy(sleeps *[]time.Duration) Policy {
	p := Default()
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return p
}

func failing(k int, result string, err error) (func(context.Context) (string, error), *int) {
	calls := 0
	return func(context.Context) (string, error) {
		calls++
		if calls <= k {
			return "", err
		}
		return result, nil
	}, &calls
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	for k := range MaxRetries {
		var sleeps []time.Duration
		p := recordingPolicy(&sleeps)
		fn, calls := failing(k, "ok", &llm.TransientError{Message: "timeout"})

		got, err := p.Do(context.Background(), "raw", Empty, fn)
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if got != "ok" {
			t.Fatalf("k=%d: expected ok, got %q", k, got)
		}
		if *calls != k+1 {
			t.Errorf("k=%d: expected %d calls, got %d", k, k+1, *calls)
		}
		if len(sleeps) != k {
			t.Fatalf("k=%d: expected %d sleeps, got %d", k, k, len(sleeps))
		}
		for i := 1; i < len(sleeps); i++ {
			if sleeps[i] <= sleeps[i-1] {
				t.Errorf("k=%d: sleeps not strictly increasing: %v", k, sleeps)
			}
		}
	}
}

func TestDo_BackoffSchedule(t *testing.T) {
	p := Default()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestDo_ExhaustedReturnsFallback(t *testing.T) {
	tests := []struct {
		fb   Fallback
		want string
	}{
		{KeepInput, "original text"},
		{Empty, ""},
	}
	for _, tt := range tests {
		t.Run(tt.fb.String(), func(t *testing.T) {
			var sleeps []time.Duration
			p := recordingPolicy(&sleeps)
			var fellBack bool
			p.OnFallback = func(Fallback, error) { fellBack = true }
			fn, calls := failing(100, "", &llm.TransientError{StatusCode: 503})

			got, err := p.Do(context.Background(), "original text", tt.fb, fn)
			if err != nil {
				t.Fatalf("fallback should never raise, got %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if *calls != MaxRetries {
				t.Errorf("expected %d attempts, got %d", MaxRetries, *calls)
			}
			if len(sleeps) != MaxRetries-1 {
				t.Errorf("expected %d sleeps, got %d", MaxRetries-1, len(sleeps))
			}
			if !fellBack {
				t.Error("expected OnFallback to fire")
			}
		})
	}
}

func TestDo_NonTransientPropagatesImmediately(t *testing.T) {
	var sleeps []time.Duration
	p := recordingPolicy(&sleeps)
	malformed := &llm.MalformedError{Message: "empty"}
	fn, calls := failing(100, "", malformed)

	_, err := p.Do(context.Background(), "x", KeepInput, fn)
	if !errors.Is(err, malformed) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if *calls != 1 || len(sleeps) != 0 {
		t.Errorf("expected a single attempt without sleeping, got calls=%d sleeps=%d", *calls, len(sleeps))
	}
}

func TestDo_OnRetryReportsAttempts(t *testing.T) {
	var sleeps []time.Duration
	p := recordingPolicy(&sleeps)
	var attempts []int
	p.OnRetry = func(attempt int, wait time.Duration, err error) {
		attempts = append(attempts, attempt)
	}
	fn, _ := failing(2, "ok", &llm.TransientError{Message: "reset"})
	p.Do(context.Background(), "", Empty, fn)

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected retry notifications: %v", attempts)
	}
}

func TestDo_CanceledDuringWait(t *testing.T) {
	p := Default()
	p.InitialWait = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fn, _ := failing(100, "", &llm.TransientError{Message: "timeout"})

	_, err := p.Do(ctx, "x", KeepInput, fn)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
