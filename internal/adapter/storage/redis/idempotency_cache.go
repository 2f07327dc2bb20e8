package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// defaultPurchaseReplayTTL applies when a caller passes no positive TTL, so
// replay entries never outlive the purchase log they shadow.
const defaultPurchaseReplayTTL = 24 * time.Hour

// IdempotencyCache implements ports.IdempotencyCache using Redis.
// It shadows the purchase idempotency log: entries are committed purchase
// responses keyed by asset, buyer and client key, and are never overwritten.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "sale:purchase:",
	}
}

// Get retrieves a committed purchase response.
// Returns nil, nil if the key does not exist.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis purchase replay get: %w", err)
	}
	return val, nil
}

// Set stores a committed purchase response. The first response stored for a
// key wins; later writes for the same key are dropped.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultPurchaseReplayTTL
	}
	if err := c.client.SetNX(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis purchase replay set: %w", err)
	}
	return nil
}
