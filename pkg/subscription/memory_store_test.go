package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankit/plankit/pkg/subscription"
)

func openSubscription(sub subscription.SubscriberRef, status subscription.Status, createdAt time.Time) *subscription.Subscription {
	return &subscription.Subscription{
		ID:             uuid.New(),
		SubscriberID:   sub.ID,
		SubscriberKind: sub.Kind,
		PlanSlug:       "basic",
		PeriodMonths:   1,
		Status:         status,
		StartDate:      createdAt,
		EndDate:        createdAt.AddDate(0, 1, 0),
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestMemoryStore_OpenSubscriptionUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	jan1 := date(2025, 1, 1)

	t.Run("second open row conflicts", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		sub := newSubscriber()

		require.NoError(t, store.CreateSubscription(ctx, openSubscription(sub, subscription.StatusActive, jan1)))

		err := store.CreateSubscription(ctx, openSubscription(sub, subscription.StatusTrialing, jan1))
		assert.ErrorIs(t, err, subscription.ErrSubscriptionConflict)
	})

	t.Run("canceled rows do not block", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		sub := newSubscriber()

		require.NoError(t, store.CreateSubscription(ctx, openSubscription(sub, subscription.StatusCanceled, jan1)))
		require.NoError(t, store.CreateSubscription(ctx, openSubscription(sub, subscription.StatusActive, jan1)))
	})

	t.Run("other subscribers unaffected", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()

		require.NoError(t, store.CreateSubscription(ctx, openSubscription(newSubscriber(), subscription.StatusActive, jan1)))
		require.NoError(t, store.CreateSubscription(ctx, openSubscription(newSubscriber(), subscription.StatusActive, jan1)))
	})
}

func TestMemoryStore_ActiveSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sub := newSubscriber()

	t.Run("ignores rows past their end date", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		row := openSubscription(sub, subscription.StatusActive, date(2025, 1, 1))
		require.NoError(t, store.CreateSubscription(ctx, row))

		got, err := store.ActiveSubscription(ctx, sub, date(2025, 1, 15))
		require.NoError(t, err)
		assert.Equal(t, row.ID, got.ID)

		_, err = store.ActiveSubscription(ctx, sub, date(2025, 3, 1))
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("ignores soft-deleted rows", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		row := openSubscription(sub, subscription.StatusActive, date(2025, 1, 1))
		row.DeletedAt = timePtr(date(2025, 1, 2))
		require.NoError(t, store.CreateSubscription(ctx, row))

		_, err := store.ActiveSubscription(ctx, sub, date(2025, 1, 15))
		assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
	})

	t.Run("returned row is isolated from the store", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		row := openSubscription(sub, subscription.StatusActive, date(2025, 1, 1))
		row.PlanLimits = map[subscription.Metric]int64{subscription.MetricUsers: 5}
		require.NoError(t, store.CreateSubscription(ctx, row))

		got, err := store.ActiveSubscription(ctx, sub, date(2025, 1, 15))
		require.NoError(t, err)
		got.PlanLimits[subscription.MetricUsers] = 999

		again, err := store.ActiveSubscription(ctx, sub, date(2025, 1, 15))
		require.NoError(t, err)
		assert.Equal(t, int64(5), again.PlanLimits[subscription.MetricUsers])
	})
}

func TestMemoryStore_TransactionRollback(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryStore()
	sub := newSubscriber()

	row := openSubscription(sub, subscription.StatusActive, date(2025, 1, 1))
	require.NoError(t, store.CreateSubscription(ctx, row))

	boom := errors.New("boom")
	err := store.InTransaction(ctx, func(ctx context.Context, tx subscription.Store) error {
		canceled := *row
		canceled.Status = subscription.StatusCanceled
		if err := tx.UpdateSubscription(ctx, &canceled); err != nil {
			return err
		}
		if err := tx.CreateSubscription(ctx, openSubscription(sub, subscription.StatusActive, date(2025, 1, 2))); err != nil {
			return err
		}
		if _, err := tx.IncrementUsage(ctx, row.ID, subscription.MetricUsers, 3, subscription.Unlimited); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Every write inside the failed transaction is gone.
	stored, err := store.GetSubscription(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusActive, stored.Status)

	history, err := store.History(ctx, sub)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = store.UsageRecord(ctx, row.ID, subscription.MetricUsers)
	assert.ErrorIs(t, err, subscription.ErrUsageNotFound)
}

func TestMemoryStore_NestedTransactionJoins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryStore()
	sub := newSubscriber()

	err := store.InTransaction(ctx, func(ctx context.Context, tx subscription.Store) error {
		return tx.InTransaction(ctx, func(ctx context.Context, inner subscription.Store) error {
			return inner.CreateSubscription(ctx, openSubscription(sub, subscription.StatusActive, date(2025, 1, 1)))
		})
	})
	require.NoError(t, err)

	history, err := store.History(ctx, sub)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestMemoryStore_GuardedCounters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("increment enforces the ceiling atomically", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := uuid.New()

		used, err := store.IncrementUsage(ctx, id, subscription.MetricUsers, 4, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(4), used)

		used, err = store.IncrementUsage(ctx, id, subscription.MetricUsers, 2, 5)
		assert.ErrorIs(t, err, subscription.ErrUsageLimitExceeded)
		assert.Equal(t, int64(4), used, "rejected increment returns the unchanged counter")

		used, err = store.IncrementUsage(ctx, id, subscription.MetricUsers, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), used)
	})

	t.Run("negative limit means unguarded", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := uuid.New()

		used, err := store.IncrementUsage(ctx, id, subscription.MetricStorage, 1<<40, subscription.Unlimited)
		require.NoError(t, err)
		assert.Equal(t, int64(1<<40), used)
	})

	t.Run("decrement refuses to cross zero", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		id := uuid.New()

		_, err := store.DecrementUsage(ctx, id, subscription.MetricUsers, 1)
		assert.ErrorIs(t, err, subscription.ErrCannotDecreaseUsage)

		_, err = store.IncrementUsage(ctx, id, subscription.MetricUsers, 2, subscription.Unlimited)
		require.NoError(t, err)

		_, err = store.DecrementUsage(ctx, id, subscription.MetricUsers, 3)
		assert.ErrorIs(t, err, subscription.ErrCannotDecreaseUsage)

		used, err := store.DecrementUsage(ctx, id, subscription.MetricUsers, 2)
		require.NoError(t, err)
		assert.Zero(t, used)
	})
}

func TestMemoryStore_ResetUsage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryStore()
	id := uuid.New()
	resetTime := date(2025, 2, 1)

	_, err := store.IncrementUsage(ctx, id, subscription.MetricUsers, 3, subscription.Unlimited)
	require.NoError(t, err)
	_, err = store.IncrementUsage(ctx, id, subscription.MetricProducts, 7, subscription.Unlimited)
	require.NoError(t, err)

	metric := subscription.MetricUsers
	require.NoError(t, store.ResetUsage(ctx, id, &metric, resetTime))

	users, err := store.UsageRecord(ctx, id, subscription.MetricUsers)
	require.NoError(t, err)
	assert.Zero(t, users.Used)
	require.NotNil(t, users.ResetAt)
	assert.Equal(t, resetTime, *users.ResetAt)

	products, err := store.UsageRecord(ctx, id, subscription.MetricProducts)
	require.NoError(t, err)
	assert.Equal(t, int64(7), products.Used)

	require.NoError(t, store.ResetUsage(ctx, id, nil, resetTime))
	products, err = store.UsageRecord(ctx, id, subscription.MetricProducts)
	require.NoError(t, err)
	assert.Zero(t, products.Used)
}
