package cache

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisclient "github.com/zatekoja/claimrecon/internal/infrastructure/clients/redis"
)

func newTestRedisAdapter(t *testing.T) *RedisAdapter {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping Redis cache tests")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return NewRedisAdapter(redisclient.NewClientFromRedis(rdb)).(*RedisAdapter)
}

func TestRedisAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	adapter := newTestRedisAdapter(t)

	require.NoError(t, adapter.Set(ctx, "payer:p-1", []byte(`{"id":"p-1"}`), 60))
	value, err := adapter.Get(ctx, "payer:p-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"p-1"}`, string(value))

	_, err = adapter.Get(ctx, "payer:missing")
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestRedisAdapter_DeletePattern(t *testing.T) {
	ctx := context.Background()
	adapter := newTestRedisAdapter(t)

	require.NoError(t, adapter.Set(ctx, "count:episode:linked", []byte("3"), 60))
	require.NoError(t, adapter.Set(ctx, "count:episode:complete", []byte("1"), 60))
	require.NoError(t, adapter.Set(ctx, "episode:ep-9", []byte("{}"), 60))

	require.NoError(t, adapter.DeletePattern(ctx, "count:episode*"))

	exists, err := adapter.Exists(ctx, "count:episode:linked")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = adapter.Exists(ctx, "episode:ep-9")
	require.NoError(t, err)
	assert.True(t, exists)
}
