// Package retry re-executes remote calls that fail for connectivity reasons
// and degrades to a fallback value once attempts run out.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgallion1/docforge/internal/llm"
)

const (
	MaxRetries    = 3
	BackoffFactor = 2.0
	InitialWait   = time.Second
)

// Fallback selects what Do returns when every attempt failed transiently.
type Fallback int

const (
	// Empty yields "". Used where no safe default exists, e.g. new content.
	Empty Fallback = iota
	// KeepInput yields the untouched input. Used for polishing calls.
	KeepInput
)

func (f Fallback) String() string {
	if f == KeepInput {
		return "keep_input"
	}
	return "empty"
}

// Policy configures attempts and the exponential wait between them.
type Policy struct {
	MaxRetries    int
	BackoffFactor float64
	InitialWait   time.Duration

	// Sleep waits for d or until ctx is done. Nil means a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is told about each transient failure that will be retried.
	OnRetry func(attempt int, wait time.Duration, err error)
	// OnFallback is told when attempts are exhausted.
	OnFallback func(fb Fallback, err error)

	Log *slog.Logger
}

// Default returns 3 attempts starting at a 1s wait that doubles each time.
func Default() Policy {
	return Policy{
		MaxRetries:    MaxRetries,
		BackoffFactor: BackoffFactor,
		InitialWait:   InitialWait,
	}
}

// Backoff returns the wait after failed attempt n (0-indexed).
func (p Policy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	wait := float64(p.InitialWait)
	for range attempt {
		wait *= p.BackoffFactor
	}
	return time.Duration(wait)
}

func (p Policy) normalized() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = MaxRetries
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = BackoffFactor
	}
	if p.InitialWait <= 0 {
		p.InitialWait = InitialWait
	}
	if p.Sleep == nil {
		p.Sleep = sleepCtx
	}
	if p.Log == nil {
		p.Log = slog.New(slog.DiscardHandler)
	}
	return p
}

// Do calls fn up to MaxRetries times. A transient failure (see
// llm.IsTransient) waits and retries; once attempts run out the fallback is
// returned with a nil error. Any other error is returned at once. Context
// cancellation during a wait is returned as ctx.Err().
func (p Policy) Do(ctx context.Context, input string, fb Fallback, fn func(ctx context.Context) (string, error)) (string, error) {
	p = p.normalized()

	var lastErr error
	for attempt := range p.MaxRetries {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !llm.IsTransient(err) {
			return "", err
		}
		lastErr = err
		if attempt == p.MaxRetries-1 {
			break
		}

		wait := p.Backoff(attempt)
		p.Log.Warn("transient completion error, retrying",
			"attempt", attempt+1,
			"max_attempts", p.MaxRetries,
			"wait", wait,
			"error", err,
		)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait, err)
		}
		if err := p.Sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	p.Log.Error("completion attempts exhausted, using fallback",
		"fallback", fb.String(),
		"error", lastErr,
	)
	if p.OnFallback != nil {
		p.OnFallback(fb, lastErr)
	}
	if fb == KeepInput {
		return input, nil
	}
	return "", nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
