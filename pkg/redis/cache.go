package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plankit/plankit/pkg/subscription"
)

// Cache adapts a Redis client to the subscription engine's cache port.
// Because entries live in Redis, an invalidation issued by one application
// instance is observed by all of them, which the engine's cache contract
// relies on in multi-instance deployments.
type Cache struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ subscription.Cache = (*Cache)(nil)

// CacheOption configures the Cache adapter.
type CacheOption func(*Cache)

// WithKeyPrefix namespaces every key, for shared Redis instances.
func WithKeyPrefix(prefix string) CacheOption {
	return func(c *Cache) { c.keyPrefix = prefix }
}

// NewCache creates a cache adapter over an established Redis client.
// Panics if client is nil to fail fast during initialization.
func NewCache(client redis.UniversalClient, opts ...CacheOption) *Cache {
	if client == nil {
		panic("redis: cache client is required")
	}
	c := &Cache{client: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key. Any Redis error is reported as a
// miss: the engine falls back to the store, which is always authoritative.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return raw, true
}

// Set stores value under key with the given TTL. A non-positive TTL stores
// the entry without expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err()
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
