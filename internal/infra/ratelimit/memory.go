package ratelimit

import (
	"context"
	"sync"
	"time"

	"bizzshort/internal/domain"
)

// memoryLimiter keeps a sliding log of hit timestamps per key. Entries older
// than the window are pruned lazily on every check, whatever the outcome.
type memoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	data    map[string]*memoryLog
	maxKeys int
}

type memoryLog struct {
	hits   []time.Time
	window time.Duration
}

type MemoryLimiterConfig struct {
	Now     func() time.Time
	MaxKeys int
}

func NewMemoryLimiter(cfg MemoryLimiterConfig) domain.RateLimiter {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	return &memoryLimiter{
		now:     cfg.Now,
		data:    make(map[string]*memoryLog),
		maxKeys: cfg.MaxKeys,
	}
}

func (m *memoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok {
		if len(m.data) >= m.maxKeys {
			m.gc(now)
		}
		if len(m.data) >= m.maxKeys {
			return domain.RateLimitDecision{}, domain.ErrRateLimitCapacity
		}
		entry = &memoryLog{}
		m.data[key] = entry
	}
	entry.window = window
	entry.hits = prune(entry.hits, now, window)

	if len(entry.hits) >= limit {
		return domain.RateLimitDecision{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   entry.hits[0].Add(window),
		}, nil
	}

	entry.hits = append(entry.hits, now)
	return domain.RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(entry.hits),
		ResetAt:   entry.hits[0].Add(window),
	}, nil
}

// Len reports how many timestamps are currently stored for key.
func (m *memoryLimiter) Len(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.data[key]; ok {
		return len(entry.hits)
	}
	return 0
}

func (m *memoryLimiter) gc(now time.Time) {
	for key, entry := range m.data {
		entry.hits = prune(entry.hits, now, entry.window)
		if len(entry.hits) == 0 {
			delete(m.data, key)
		}
	}
}

func prune(hits []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := hits[:0]
	for _, ts := range hits {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	return kept
}
