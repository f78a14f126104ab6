package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to the wrapped Completer so a parallel
// generation run does not trip the provider's own rate limiting.
type RateLimited struct {
	next    Completer
	limiter *rate.Limiter
}

// NewRateLimited allows perSec calls per second with an equal burst. A
// non-positive rate disables limiting.
func NewRateLimited(next Completer, perSec float64) *RateLimited {
	limit := rate.Inf
	burst := 1
	if perSec > 0 {
		limit = rate.Limit(perSec)
		burst = max(1, int(perSec))
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (r *RateLimited) Complete(ctx context.Context, req Request) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.Complete(ctx, req)
}
