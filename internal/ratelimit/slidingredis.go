package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter is a sliding window rate limiter backed by a Redis sorted set per key.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Window time.Duration
	Max    int
}

// Decision reports the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Allow records an event under key and reports whether it fits in the window.
// A nil client or non-positive limit disables the limiter entirely.
func (l Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now()
	if l.Client == nil || l.Max <= 0 || l.Window <= 0 {
		return Decision{Allowed: true, Remaining: l.Max, ResetAt: now.Add(l.Window)}, nil
	}

	resetAt := now.Add(l.Window)
	cutoff := float64(now.Add(-l.Window).UnixNano())
	redisKey := l.Prefix + key

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", fmt.Sprintf("%f", cutoff))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{ResetAt: resetAt}, err
	}

	current := int(countCmd.Val())
	remaining := l.Max - current
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: current <= l.Max, Remaining: remaining, ResetAt: resetAt}, nil
}
