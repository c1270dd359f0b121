package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReplayCache remembers processed webhook notifications.
type ReplayCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewReplayCache(addr string, ttl time.Duration) *ReplayCache {
	return &ReplayCache{
		client: goredis.NewClient(&goredis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func (c *ReplayCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *ReplayCache) key(k string) string {
	return "webhook:" + k
}

// Seen reports whether k was marked and not yet expired.
func (c *ReplayCache) Seen(ctx context.Context, k string) (bool, error) {
	err := c.client.Get(ctx, c.key(k)).Err()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get: %w", err)
	}
	return true, nil
}

func (c *ReplayCache) Mark(ctx context.Context, k string) error {
	if err := c.client.Set(ctx, c.key(k), "1", c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *ReplayCache) Close() error {
	return c.client.Close()
}
