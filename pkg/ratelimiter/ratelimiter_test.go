package ratelimiter_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/promptcredits/pkg/ratelimiter"
)

func newBucket(t *testing.T, capacity int) *ratelimiter.Bucket {
	t.Helper()
	store := ratelimiter.NewMemoryStore()
	t.Cleanup(store.Close)

	b, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       capacity,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})
	require.NoError(t, err)
	return b
}

func TestNewBucket_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
}

func TestBucket_Allow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	b := newBucket(t, 2)

	r1, err := b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, r1.Allowed())
	assert.Equal(t, 1, r1.Remaining)

	r2, err := b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, r2.Allowed())

	r3, err := b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, r3.Allowed())
	assert.Positive(t, r3.RetryAfter())

	// a refused request must not drain the bucket further
	r4, err := b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, -1, r4.Remaining)

	other, err := b.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, other.Allowed())

	require.NoError(t, b.Reset(ctx, "u1"))
	r5, err := b.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, r5.Allowed())

	_, err = b.AllowN(ctx, "u1", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestBucket_ConcurrentAllow(t *testing.T) {
	t.Parallel()
	b := newBucket(t, 10)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := b.Allow(context.Background(), "hot")
			if err == nil && res.Allowed() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(10), allowed.Load())
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	b := newBucket(t, 1)

	var denied error
	h := ratelimiter.Middleware(b,
		func(r *http.Request) string { return r.Header.Get("X-User") },
		func(w http.ResponseWriter, r *http.Request, err error) {
			denied = err
			w.WriteHeader(http.StatusTooManyRequests)
		},
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/enhance", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := do("alice")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", first.Header().Get("X-RateLimit-Remaining"))

	second := do("alice")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.True(t, errors.Is(denied, ratelimiter.ErrLimitExceeded))
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	// requests without a key are not limited
	assert.Equal(t, http.StatusOK, do("").Code)
	assert.Equal(t, http.StatusOK, do("").Code)
}
