package llm

import (
	"context"
	"testing"
)

func TestRateLimitedHonoursCanceledContext(t *testing.T) {
	called := false
	r := NewRateLimited(CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		called = true
		return "x", nil
	}), 1)

	// Drain the single burst token.
	if _, err := r.Complete(context.Background(), Request{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	called = false

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Complete(ctx, Request{}); err == nil {
		t.Fatal("expected error on canceled context")
	}
	if called {
		t.Error("wrapped completer should not run when the limiter wait fails")
	}
}

func TestRateLimitedDisabled(t *testing.T) {
	n := 0
	r := NewRateLimited(CompleterFunc(func(ctx context.Context, req Request) (string, error) {
		n++
		return "x", nil
	}), 0)
	for range 50 {
		r.Complete(context.Background(), Request{})
	}
	if n != 50 {
		t.Fatalf("expected 50 calls, got %d", n)
	}
}
