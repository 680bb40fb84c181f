// Package lock provides a Redis-backed guard against concurrent checkout
// submissions for the same shopper across gateway instances. The in-process
// session guard only covers one instance.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "glowcart:submit:"

// Guard is a fail-fast distributed lock. There is no acquisition retry: a
// second submit while one is running is a duplicate, not a queue candidate.
type Guard struct {
	R   *redis.Client
	TTL time.Duration
}

// Acquire attempts to take the submit lock for key. It returns a release
// function and whether the lock was obtained. With no Redis configured the
// guard degrades to a no-op and the per-process session guard still applies.
func (g Guard) Acquire(ctx context.Context, key string) (release func(), ok bool, err error) {
	if g.R == nil {
		return func() {}, true, nil
	}
	ttl := g.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	token := uuid.NewString()
	redisKey := keyPrefix + key
	ok, err = g.R.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, ok, err
	}
	return func() { g.release(redisKey, token) }, true, nil
}

func (g Guard) release(key, token string) {
	const script = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = g.R.Eval(ctx, script, []string{key}, token).Err()
}
