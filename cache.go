package bandsite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ContentCache holds rendered-page data between dashboard writes. Entries
// expire after the TTL; Invalidate drops everything at once.
type ContentCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	Invalidate(ctx context.Context)
}

// Cached returns the cached value for key, calling load on a miss. Load
// errors are returned as is and never cached.
func Cached[T any](ctx context.Context, c ContentCache, key string, load func(context.Context) (T, error)) (T, error) {
	if raw, ok := c.Get(ctx, key); ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if raw, err := json.Marshal(v); err == nil {
		c.Set(ctx, key, raw)
	}
	return v, nil
}

// MemoryCache is an in-process ContentCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	val     []byte
	fetched time.Time
}

// NewMemoryCache creates a MemoryCache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.fetched) >= c.ttl {
		return nil, false
	}
	return e.val, true
}

func (c *MemoryCache) Set(_ context.Context, key string, val []byte) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{val: val, fetched: c.now()}
	c.mu.Unlock()
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *MemoryCache) Invalidate(context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

const (
	cacheKeyPrefix = "bandsite:content:" // bandsite:content:{generation}:{key}
	cacheGenKey    = "bandsite:content:gen"
)

// RedisCache shares the content cache between server instances. Keys are
// namespaced by a generation counter; Invalidate bumps the counter so old
// entries are never read again and expire on their own.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	onErr  func(op string, err error)
}

// NewRedisCache returns a cache on client. onErr, if set, is told about
// Redis failures; the cache then behaves as a miss.
func NewRedisCache(client *redis.Client, ttl time.Duration, onErr func(op string, err error)) *RedisCache {
	if onErr == nil {
		onErr = func(string, error) {}
	}
	return &RedisCache{client: client, ttl: ttl, onErr: onErr}
}

// OpenRedisCache parses a redis:// URL and pings the server.
func OpenRedisCache(ctx context.Context, url string, ttl time.Duration, onErr func(op string, err error)) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisCache(client, ttl, onErr), nil
}

func (c *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, cacheGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *RedisCache) key(gen int64, key string) string {
	return cacheKeyPrefix + strconv.FormatInt(gen, 10) + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.onErr("get", err)
		return nil, false
	}
	val, err := c.client.Get(ctx, c.key(gen, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.onErr("get", err)
		}
		return nil, false
	}
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte) {
	gen, err := c.generation(ctx)
	if err != nil {
		c.onErr("set", err)
		return
	}
	if err := c.client.Set(ctx, c.key(gen, key), val, c.ttl).Err(); err != nil {
		c.onErr("set", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	if err := c.client.Incr(ctx, cacheGenKey).Err(); err != nil {
		c.onErr("invalidate", err)
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
