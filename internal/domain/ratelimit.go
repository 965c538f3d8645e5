package domain

import (
	"context"
	"errors"
	"time"
)

// DefaultActorKey buckets every caller that does not identify itself.
// All anonymous visitors share this one bucket.
const DefaultActorKey = "anonymous"

// ErrRateLimitCapacity is returned when a limiter cannot track another key.
var ErrRateLimitCapacity = errors.New("rate limiter capacity exceeded")

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long a rejected caller should wait, never negative.
func (d RateLimitDecision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || d.ResetAt.IsZero() || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
