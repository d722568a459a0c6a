package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/adapter/storage/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdempotencyCache(t *testing.T) (*redis.IdempotencyCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewIdempotencyCache(client, "test:idem"), mr
}

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	cache, mr := newIdempotencyCache(t)
	ctx := context.Background()

	got, err := cache.Get(ctx, "user-1:key-a")
	require.NoError(t, err)
	assert.Nil(t, got)

	value := []byte(`{"status":200,"body":"e30="}`)
	require.NoError(t, cache.Set(ctx, "user-1:key-a", value, time.Hour))

	got, err = cache.Get(ctx, "user-1:key-a")
	require.NoError(t, err)
	assert.Equal(t, value, got)
	assert.True(t, mr.Exists("test:idem:user-1:key-a"))
}

func TestIdempotencyCache_ReserveOnce(t *testing.T) {
	cache, _ := newIdempotencyCache(t)
	ctx := context.Background()

	ok, err := cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation must fail")

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, got, "pending marker is not a stored response")
}

func TestIdempotencyCache_SetAfterReserve(t *testing.T) {
	cache, _ := newIdempotencyCache(t)
	ctx := context.Background()

	_, err := cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "k", []byte("done"), time.Hour))

	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("done"), got)

	ok, err := cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotencyCache_ReleaseAllowsRetry(t *testing.T) {
	cache, _ := newIdempotencyCache(t)
	ctx := context.Background()

	_, err := cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, cache.Release(ctx, "k"))

	ok, err := cache.Reserve(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIdempotencyCache_Expiry(t *testing.T) {
	cache, mr := newIdempotencyCache(t)
	ctx := context.Background()

	_, err := cache.Reserve(ctx, "pending", 30*time.Second)
	require.NoError(t, err)
	require.NoError(t, cache.Set(ctx, "stored", []byte("x"), time.Second))

	mr.FastForward(time.Minute)

	got, err := cache.Get(ctx, "stored")
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err := cache.Reserve(ctx, "pending", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "lapsed reservation can be claimed again")
}

func TestIdempotencyCache_DefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := redis.NewIdempotencyCache(client, "  ")

	require.NoError(t, cache.Set(context.Background(), "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("vbank:idempotency:k"))
}

func TestIdempotencyCache_ConnectionError(t *testing.T) {
	cache, mr := newIdempotencyCache(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "k")
	assert.Error(t, err)
	_, err = cache.Reserve(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
