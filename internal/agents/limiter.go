package agents

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited caps the call rate to the wrapped capability across all jobs in
// the process. Waiting honours ctx, so a cancelled job stops queueing.
type RateLimited struct {
	Next    Capability
	Limiter *rate.Limiter
}

// NewRateLimited allows perMinute calls per minute with the given burst.
func NewRateLimited(next Capability, perMinute, burst int) *RateLimited {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		Next:    next,
		Limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (r *RateLimited) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return Result{}, fmt.Errorf("%w: rate limit wait: %w", ErrTimeout, err)
	}
	return r.Next.Invoke(ctx, inv)
}

var _ Capability = (*RateLimited)(nil)
