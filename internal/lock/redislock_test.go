package lock

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newGuard(t *testing.T) Guard {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return Guard{R: client, TTL: time.Minute}
}

func TestGuardAcquireAndRelease(t *testing.T) {
	guard := newGuard(t)
	ctx := context.Background()

	release, ok, err := guard.Acquire(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = guard.Acquire(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, ok, "second acquire must fail fast, not wait")

	release()

	release2, ok, err := guard.Acquire(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok, "lock must be free after release")
	release2()
}

func TestGuardIndependentKeys(t *testing.T) {
	guard := newGuard(t)
	ctx := context.Background()

	r1, ok, err := guard.Acquire(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	defer r1()

	r2, ok, err := guard.Acquire(ctx, "user-2")
	require.NoError(t, err)
	require.True(t, ok, "locks are per shopper")
	defer r2()
}

func TestGuardNoRedisDegrades(t *testing.T) {
	release, ok, err := Guard{}.Acquire(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, ok)
	release()
}
