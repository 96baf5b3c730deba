package infra

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter allows a burst of n requests and refills at n per window.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter allowing n requests per window.
func NewRateLimiter(n int, window time.Duration) *RateLimiter {
	if n <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(window/time.Duration(n)), n)}
}

// Wait blocks until a request may proceed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed now without waiting.
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}
