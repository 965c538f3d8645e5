package usecase

import (
	"context"
	"errors"
	"time"

	"bizzshort/internal/domain"

	"go.uber.org/zap"
)

const (
	DefaultMaxInteractions   = 10
	DefaultInteractionWindow = 60 * time.Second
)

// InteractionLimiter caps how many ad interactions one actor may perform in
// a sliding window. The log behind it lives only as long as the limiter.
type InteractionLimiter struct {
	limiter domain.RateLimiter
	max     int
	window  time.Duration
	log     *zap.Logger
}

func NewInteractionLimiter(limiter domain.RateLimiter, max int, window time.Duration, logger *zap.Logger) *InteractionLimiter {
	if max <= 0 {
		max = DefaultMaxInteractions
	}
	if window <= 0 {
		window = DefaultInteractionWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InteractionLimiter{limiter: limiter, max: max, window: window, log: logger}
}

// CanInteract records an interaction for actorKey when it fits the window.
// A rejected attempt is not recorded. Backend faults let the interaction
// through. A full key table rejects it so no actor escapes the cap.
func (l *InteractionLimiter) CanInteract(ctx context.Context, actorKey string) bool {
	if actorKey == "" {
		actorKey = domain.DefaultActorKey
	}
	if l == nil || l.limiter == nil {
		return true
	}
	decision, err := l.limiter.Allow(ctx, actorKey, l.max, l.window)
	if errors.Is(err, domain.ErrRateLimitCapacity) {
		l.log.Warn("interaction limiter full", zap.String("actor", actorKey))
		return false
	}
	if err != nil {
		l.log.Warn("interaction limiter unavailable", zap.String("actor", actorKey), zap.Error(err))
		return true
	}
	return decision.Allowed
}
