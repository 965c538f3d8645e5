package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bizzshort/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	client redis.Scripter
	now    func() time.Time
	prefix string
}

// The sorted set holds one member per accepted hit scored by its millisecond
// timestamp. Members at or beyond the window edge are dropped before counting.
var redisAllowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", now - window)
local count = redis.call("ZCARD", KEYS[1])
local allowed = 0
if count < limit then
  redis.call("ZADD", KEYS[1], now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call("PEXPIRE", KEYS[1], window)
local oldest = redis.call("ZRANGE", KEYS[1], 0, 0, "WITHSCORES")
local oldestScore = now
if oldest[2] then
  oldestScore = tonumber(oldest[2])
end
return {allowed, count, oldestScore}
`)

func NewRedisLimiter(addr, password string, db int, now func() time.Time) (domain.RateLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisLimiterWithClient(client, now), nil
}

func NewRedisLimiterWithClient(client redis.Scripter, now func() time.Time) domain.RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &redisLimiter{client: client, now: now, prefix: "ratelimit:"}
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	nowMillis := r.now().UnixMilli()
	member := strconv.FormatInt(nowMillis, 10) + "-" + uuid.NewString()
	result, err := redisAllowScript.Run(ctx, r.client, []string{r.prefix + key}, nowMillis, windowMillis, limit, member).Result()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	values, ok := result.([]any)
	if !ok || len(values) < 3 {
		return domain.RateLimitDecision{}, errors.New("unexpected redis rate limit response")
	}
	allowed, ok1 := values[0].(int64)
	count, ok2 := values[1].(int64)
	oldest, ok3 := values[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return domain.RateLimitDecision{}, errors.New("invalid redis rate limit response")
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   allowed == 1,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   time.UnixMilli(oldest + windowMillis),
	}, nil
}
