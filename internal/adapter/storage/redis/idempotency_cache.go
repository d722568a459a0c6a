package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultIdempotencyPrefix = "vbank:idempotency"

	// pendingMarker occupies a key between Reserve and Set.
	pendingMarker = "\x00pending"
)

// IdempotencyCache implements ports.IdempotencyCache using Redis.
type IdempotencyCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewIdempotencyCache creates a Redis-backed idempotency cache.
func NewIdempotencyCache(client goredis.UniversalClient, prefix string) *IdempotencyCache {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultIdempotencyPrefix
	}
	return &IdempotencyCache{client: client, prefix: prefix}
}

func (c *IdempotencyCache) key(k string) string {
	return c.prefix + ":" + k
}

// Reserve claims key with a pending marker that lapses after ttl.
func (c *IdempotencyCache) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(key), pendingMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency reserve: %w", err)
	}
	return ok, nil
}

// Get returns the stored response for key. A missing key and a key that is
// still reserved both yield nil, nil.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency get: %w", err)
	}
	if string(val) == pendingMarker {
		return nil, nil
	}
	return val, nil
}

// Set stores value under key, replacing any reservation.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency set: %w", err)
	}
	return nil
}

// Release deletes key.
func (c *IdempotencyCache) Release(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}
