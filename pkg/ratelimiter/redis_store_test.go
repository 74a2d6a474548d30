package ratelimiter_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/promptcredits/pkg/ratelimiter"
	"github.com/dmitrymomot/promptcredits/pkg/redis"
)

// newRedisStore needs a disposable Redis in TEST_REDIS_URL.
func newRedisStore(t *testing.T) *ratelimiter.RedisStore {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL is not set")
	}

	client, err := redis.Connect(context.Background(), redis.Config{
		ConnectionURL:  url,
		RetryAttempts:  1,
		RetryInterval:  time.Second,
		ConnectTimeout: 5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ratelimiter.NewRedisStore(client, "rl:test:"+uuid.NewString()+":")
}

func TestRedisStore_ConsumeTokens(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	cfg := ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: 300 * time.Millisecond}

	remaining, resetAt, err := store.ConsumeTokens(ctx, "u1", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
	assert.WithinDuration(t, time.Now().Add(cfg.RefillInterval), resetAt, cfg.RefillInterval)

	remaining, _, err = store.ConsumeTokens(ctx, "u1", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	remaining, _, err = store.ConsumeTokens(ctx, "u1", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, -1, remaining, "denied requests report the shortfall")

	// a denied request must not drain the bucket further
	remaining, _, err = store.ConsumeTokens(ctx, "u1", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, -1, remaining)

	// buckets are per key
	remaining, _, err = store.ConsumeTokens(ctx, "u2", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestRedisStore_Refill(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	cfg := ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: 200 * time.Millisecond}

	remaining, _, err := store.ConsumeTokens(ctx, "u1", 2, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	remaining, _, err = store.ConsumeTokens(ctx, "u1", 1, cfg)
	require.NoError(t, err)
	assert.Negative(t, remaining)

	time.Sleep(cfg.RefillInterval + 50*time.Millisecond)

	remaining, _, err = store.ConsumeTokens(ctx, "u1", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining, "one interval refills one token")

	// refill never exceeds capacity
	time.Sleep(4 * cfg.RefillInterval)
	remaining, _, err = store.ConsumeTokens(ctx, "u1", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestRedisStore_Reset(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	cfg := ratelimiter.Config{Capacity: 3, RefillRate: 1, RefillInterval: time.Hour}

	remaining, _, err := store.ConsumeTokens(ctx, "u1", 3, cfg)
	require.NoError(t, err)
	require.Equal(t, 0, remaining)

	require.NoError(t, store.Reset(ctx, "u1"))
	require.NoError(t, store.Reset(ctx, "never-used"))

	remaining, _, err = store.ConsumeTokens(ctx, "u1", 1, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, remaining, "reset starts from a full bucket")
}

func TestRedisStore_WithBucket(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()

	b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	r, err := b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, r.Allowed())

	r, err = b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, r.Allowed())
	assert.Positive(t, r.RetryAfter())
}
