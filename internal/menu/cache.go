package menu

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "pos:menu:available"

type cachedSnapshot struct {
	Items     []Item    `json:"items"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// Cache stores the last fetched catalog snapshot in Redis so a restarted
// terminal process can price against a recent catalog before the first fetch.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a snapshot cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get loads the cached snapshot. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context) (*Snapshot, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var cached cachedSnapshot
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false, err
	}
	return NewSnapshot(cached.Items, cached.FetchedAt), true, nil
}

// Set serialises the snapshot and stores it with the configured TTL.
func (c *Cache) Set(ctx context.Context, snap *Snapshot) error {
	if c == nil || c.client == nil || snap == nil {
		return nil
	}
	data, err := json.Marshal(cachedSnapshot{Items: snap.Items(), FetchedAt: snap.FetchedAt()})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey, data, c.ttl).Err()
}
