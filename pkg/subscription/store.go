package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract for subscriptions and usage counters.
//
// Implementations must enforce two invariants at the storage boundary:
// at most one subscription per (subscriber kind, subscriber id) with an open
// status (active/trialing) may exist, a violation surfacing as
// ErrSubscriptionConflict, and (subscription id, metric) is unique for
// usage rows. IncrementUsage and DecrementUsage must be atomic against
// concurrent callers for the same counter (row lock or compare-and-swap);
// lost updates are a correctness violation, not a tolerable race.
type Store interface {
	// ActiveSubscription returns the authoritative subscription for the
	// subscriber at the given instant: status active or trialing, end date
	// after at, newest first. Returns ErrSubscriptionNotFound when none.
	ActiveSubscription(ctx context.Context, sub Subscriber, at time.Time) (*Subscription, error)

	// History returns the subscriber's full subscription lineage ordered by
	// recency, soft-deleted rows excluded.
	History(ctx context.Context, sub Subscriber) ([]Subscription, error)

	// GetSubscription returns a subscription by id.
	GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// CreateSubscription persists a new subscription row.
	CreateSubscription(ctx context.Context, s *Subscription) error

	// UpdateSubscription persists changes to an existing row.
	UpdateSubscription(ctx context.Context, s *Subscription) error

	// UsageRecord returns the counter row for the metric.
	// Returns ErrUsageNotFound when no row exists yet.
	UsageRecord(ctx context.Context, subscriptionID uuid.UUID, metric Metric) (*UsageRecord, error)

	// IncrementUsage atomically adds amount to the counter, creating the row
	// when absent. A non-negative limit is enforced inside the same atomic
	// statement: when the new total would exceed it, nothing is applied and
	// ErrUsageLimitExceeded is returned. Pass Unlimited to skip the ceiling.
	// Returns the new total on success.
	IncrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric Metric, amount, limit int64) (int64, error)

	// DecrementUsage atomically subtracts amount from the counter. When no
	// row exists or the result would go below zero, nothing is applied and
	// ErrCannotDecreaseUsage is returned. Returns the new total on success.
	DecrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric Metric, amount int64) (int64, error)

	// ResetUsage zeroes the counter for one metric, or for every metric of
	// the subscription when metric is nil, stamping ResetAt.
	ResetUsage(ctx context.Context, subscriptionID uuid.UUID, metric *Metric, at time.Time) error

	// InTransaction runs fn against a store view bound to a single atomic
	// transaction. Either every write inside fn commits, or none do.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}
