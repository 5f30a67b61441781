package cache

import (
	"context"
	"time"

	"github.com/plankit/plankit/pkg/subscription"
)

const defaultMemoryCapacity = 4096

// Memory adapts TTLCache to the subscription engine's cache port. Suitable
// for single-process deployments; multi-instance setups should use the Redis
// adapter so invalidation reaches every instance.
type Memory struct {
	cache *TTLCache[string, []byte]
}

var _ subscription.Cache = (*Memory)(nil)

// NewMemory creates an in-process cache. Capacity <= 0 uses the default.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &Memory{cache: NewTTL[string, []byte](capacity)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool) {
	return m.cache.Get(key)
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.Put(key, value, ttl)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.cache.Remove(key)
	return nil
}
