// Package cache provides an in-memory TTL cache with LRU eviction and an
// adapter implementing the subscription engine's cache port.
//
// TTLCache is the generic building block: bounded capacity, per-entry TTL,
// lazy expiry on access. Memory wraps it with the string-key/byte-value
// interface the subscription service expects:
//
//	svc := subscription.NewService(catalog, store,
//		subscription.WithCache(cache.NewMemory(0)),
//	)
//
// The cache is process-local. Deployments running multiple instances should
// prefer the Redis-backed adapter, since a mutation on one instance cannot
// invalidate entries held by another.
package cache
