package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReadCache implements ports.ReadCache using Redis.
type ReadCache struct {
	client *goredis.Client
	prefix string
}

// NewReadCache creates a Redis-backed read-model cache.
func NewReadCache(client *goredis.Client) *ReadCache {
	return &ReadCache{
		client: client,
		prefix: "cache:",
	}
}

// Get returns the cached value, or nil on a miss.
func (c *ReadCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis cache get: %w", err)
	}
	return val, nil
}

// Set stores value. A zero ttl keeps the key until it is deleted.
func (c *ReadCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return nil
}

// Delete removes keys. Missing keys are ignored.
func (c *ReadCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	if err := c.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis cache delete: %w", err)
	}
	return nil
}
