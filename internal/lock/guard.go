package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when the key is already guarded by another operation.
var ErrHeld = errors.New("lock: operation already in flight")

// Guard serialises one logical operation per key across terminal processes.
// Unlike a blocking lock it rejects immediately: the second quote or submit
// for the same session must fail, not queue.
type Guard struct {
	R   *redis.Client
	TTL time.Duration
}

func (g Guard) ttl() time.Duration {
	if g.TTL <= 0 {
		return 30 * time.Second
	}
	return g.TTL
}

// Acquire claims the key for op. It fails with ErrHeld, carrying the name of
// the operation already holding the key, when the claim is taken. The TTL
// bounds how long a crashed process can wedge its sessions.
func (g Guard) Acquire(ctx context.Context, key, op string) error {
	if g.R == nil {
		return errors.New("lock: redis client not configured")
	}
	ok, err := g.R.SetNX(ctx, key, op, g.ttl()).Result()
	if err != nil {
		return fmt.Errorf("lock: acquire %s: %w", key, err)
	}
	if !ok {
		holder, err := g.R.Get(ctx, key).Result()
		if err != nil || holder == "" {
			holder = "operation"
		}
		return fmt.Errorf("%s: %w", holder, ErrHeld)
	}
	return nil
}

// Held reports whether a claim is currently live for the key.
func (g Guard) Held(ctx context.Context, key string) (bool, error) {
	if g.R == nil {
		return false, errors.New("lock: redis client not configured")
	}
	n, err := g.R.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("lock: inspect %s: %w", key, err)
	}
	return n > 0, nil
}

// Release drops the claim. Safe to call when the claim already expired.
func (g Guard) Release(ctx context.Context, key string) {
	if g.R == nil {
		return
	}
	_ = g.R.Del(ctx, key).Err()
}
