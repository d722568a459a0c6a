package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "vbank:ratelimit"

// hitScript increments the window counter, starts the window on the first hit
// and reports the remaining window length in milliseconds.
var hitScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`)

// RateLimitStore implements ports.RateLimitStore as a fixed-window counter in Redis.
type RateLimitStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewRateLimitStore creates a new Redis-backed rate limit store.
func NewRateLimitStore(client goredis.UniversalClient, prefix string) *RateLimitStore {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RateLimitStore{client: client, prefix: prefix}
}

// Hit counts one request against key and returns the count within the
// current window and the time until the window resets.
func (s *RateLimitStore) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	windowMs := window.Milliseconds()
	if windowMs < 1 {
		return 0, 0, fmt.Errorf("rate limit window must be positive, got %s", window)
	}

	raw, err := hitScript.Run(ctx, s.client, []string{s.prefix + ":" + key}, windowMs).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis rate limit hit: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit response: %T", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limit count type: %T", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected rate limit ttl type: %T", values[1])
	}

	return count, time.Duration(ttlMs) * time.Millisecond, nil
}
