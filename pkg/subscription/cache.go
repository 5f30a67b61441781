package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Cache is the memoization port for hot read paths. It is purely a
// performance layer and never a source of truth: the engine invalidates the
// relevant keys synchronously on every mutation, and cache write failures
// must never fail the surrounding operation (implementations should make
// Set cheap; the engine logs and swallows Set/Delete errors).
type Cache interface {
	// Get returns the cached value for key, or false when absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete drops the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}

// NopCache is a Cache that stores nothing. It is the default for the
// service, keeping tests free of hidden cross-test state.
type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (NopCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (NopCache) Delete(ctx context.Context, key string) error { return nil }

// Cache keys are namespaced by subscriber kind so that different owner
// types with colliding UUIDs cannot cross-contaminate.

func activeSubscriptionKey(sub Subscriber) string {
	return fmt.Sprintf("subscription:active:%s:%s", sub.SubscriberKind(), sub.SubscriberID())
}

func historyKey(sub Subscriber) string {
	return fmt.Sprintf("subscription:history:%s:%s", sub.SubscriberKind(), sub.SubscriberID())
}

func usageKey(subscriptionID uuid.UUID, metric Metric) string {
	return fmt.Sprintf("subscription:usage:%s:%s", subscriptionID, metric)
}
