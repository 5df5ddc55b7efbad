package bandsite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	require.NoError(t, client.Ping(context.Background()).Err())
	return client, mr
}

func countingLoad(calls *int, val []string, err error) func(context.Context) ([]string, error) {
	return func(context.Context) ([]string, error) {
		*calls++
		return val, err
	}
}

func testCacheBehaviour(t *testing.T, c ContentCache) {
	ctx := context.Background()
	calls := 0

	v, err := Cached(ctx, c, "songs", countingLoad(&calls, []string{"Grace"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Grace"}, v)

	v, err = Cached(ctx, c, "songs", countingLoad(&calls, []string{"other"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Grace"}, v, "second read is served from cache")
	assert.Equal(t, 1, calls)

	c.Invalidate(ctx)
	v, err = Cached(ctx, c, "songs", countingLoad(&calls, []string{"Shout"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Shout"}, v)
	assert.Equal(t, 2, calls)

	boom := errors.New("offline")
	_, err = Cached(ctx, c, "events", countingLoad(&calls, nil, boom))
	assert.ErrorIs(t, err, boom)
	v, err = Cached(ctx, c, "events", countingLoad(&calls, []string{"Tour"}, nil))
	require.NoError(t, err, "errors are never cached")
	assert.Equal(t, []string{"Tour"}, v)
}

func TestMemoryCache(t *testing.T) {
	testCacheBehaviour(t, NewMemoryCache(time.Minute))
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set(context.Background(), "k", []byte("1"))
	_, ok := c.Get(context.Background(), "k")
	assert.True(t, ok)
	now = now.Add(time.Minute)
	_, ok = c.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestRedisCache(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	testCacheBehaviour(t, NewRedisCache(client, time.Minute, nil))
}

func TestRedisCacheTTLAndGeneration(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	c := NewRedisCache(client, time.Minute, nil)
	c.Set(ctx, "songs", []byte(`["Grace"]`))
	assert.True(t, mr.Exists("bandsite:content:0:songs"))

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get(ctx, "songs")
	assert.False(t, ok, "entry expires after the TTL")

	c.Set(ctx, "songs", []byte(`["Grace"]`))
	c.Invalidate(ctx)
	_, ok = c.Get(ctx, "songs")
	assert.False(t, ok, "invalidate hides older generations")
}

func TestRedisCacheFailureIsAMiss(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	var ops []string
	c := NewRedisCache(client, time.Minute, func(op string, err error) { ops = append(ops, op) })
	mr.Close()

	calls := 0
	v, err := Cached(context.Background(), c, "songs", countingLoad(&calls, []string{"Grace"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"Grace"}, v)
	assert.Equal(t, 1, calls)
	assert.NotEmpty(t, ops)
}
