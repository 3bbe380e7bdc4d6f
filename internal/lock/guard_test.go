package lock_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-resto/internal/lock"
)

func newGuard(t *testing.T) (lock.Guard, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.Guard{R: client, TTL: time.Minute}, mr
}

func TestGuardRejectsSecondClaim(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, "sess-1", "quote"))

	err := g.Acquire(ctx, "sess-1", "submit")
	require.ErrorIs(t, err, lock.ErrHeld)
	require.Contains(t, err.Error(), "quote")

	// Different keys are independent.
	require.NoError(t, g.Acquire(ctx, "sess-2", "quote"))
}

func TestGuardReleaseFreesKey(t *testing.T) {
	g, _ := newGuard(t)
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, "sess-1", "quote"))
	g.Release(ctx, "sess-1")
	require.NoError(t, g.Acquire(ctx, "sess-1", "submit"))
}

func TestGuardHeldTracksClaimLifecycle(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	held, err := g.Held(ctx, "sess-1")
	require.NoError(t, err)
	require.False(t, held)

	require.NoError(t, g.Acquire(ctx, "sess-1", "submit"))
	held, err = g.Held(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, held)

	mr.FastForward(2 * time.Minute)
	held, err = g.Held(ctx, "sess-1")
	require.NoError(t, err)
	require.False(t, held)
}

func TestGuardClaimExpires(t *testing.T) {
	g, mr := newGuard(t)
	ctx := context.Background()

	require.NoError(t, g.Acquire(ctx, "sess-1", "submit"))
	mr.FastForward(2 * time.Minute)
	require.NoError(t, g.Acquire(ctx, "sess-1", "quote"))
}
