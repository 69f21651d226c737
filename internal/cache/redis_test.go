package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client, NewRedisCache(client, "test", zap.NewNop())
}

func TestRedisCache_SetGetUsesPrefix(t *testing.T) {
	mr, _, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("test:cache:k"))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisCache_MissAndExpiry(t *testing.T) {
	mr, _, c := setupTestRedis(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	_, _, c := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, c.Delete(ctx, "a", "b"))
	require.NoError(t, c.Delete(ctx))

	ok, err := c.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_GetOrSet(t *testing.T) {
	_, _, c := setupTestRedis(t)
	ctx := context.Background()

	calls := 0
	fn := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	v, err := c.GetOrSet(ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "computed", string(v))

	v, err = c.GetOrSet(ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "computed", string(v))
	assert.Equal(t, 1, calls)

	boom := errors.New("boom")
	_, err = c.GetOrSet(ctx, "other", time.Minute, func() ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	ok, _ := c.Exists(ctx, "other")
	assert.False(t, ok)
}
