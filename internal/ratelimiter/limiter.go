package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter is the token bucket guarding outbound sends to the push backend.
// Burst is set equal to the rate so no extra burst capacity is allowed
// beyond the configured per-second maximum.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing ratePerSec sends per second. A non-positive
// rate disables limiting.
func New(ratePerSec int) *Limiter {
	if ratePerSec <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)}
}

// Wait blocks until a send is allowed. Called immediately before delivery.
// Returns a non-nil error if ctx is cancelled, or its deadline would pass,
// while waiting.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
