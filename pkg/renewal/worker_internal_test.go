package renewal

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankit/plankit/pkg/subscription"
)

func TestWorker_PruneWarned(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	w := &Worker{
		warnDays: 7,
		warned: map[uuid.UUID]time.Time{
			uuid.New(): now.AddDate(0, 0, -30), // expired un-renewed weeks ago
			uuid.New(): now.AddDate(0, 0, -8),  // just past the warn window
		},
	}
	recent := uuid.New()
	w.warned[recent] = now.AddDate(0, 0, -3)

	w.pruneWarned(now)

	require.Len(t, w.warned, 1)
	assert.Contains(t, w.warned, recent)
}

func TestWorker_SweepPrunesStaleWarnings(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryStore()
	svc := subscription.NewService(stubCatalogInternal{}, store,
		subscription.WithClock(subscription.ClockFunc(func() time.Time { return now })),
	)

	w, err := New(svc,
		SourceFunc(func(ctx context.Context, at time.Time) ([]subscription.Subscription, error) {
			return nil, nil
		}),
		WithClock(subscription.ClockFunc(func() time.Time { return now })),
	)
	require.NoError(t, err)

	stale := uuid.New()
	w.warned[stale] = now.AddDate(0, 0, -30)

	w.Sweep(context.Background())

	assert.NotContains(t, w.warned, stale)
}

type stubCatalogInternal struct{}

func (stubCatalogInternal) FindActiveBySlug(ctx context.Context, slug string) (*subscription.Plan, error) {
	return nil, subscription.ErrPlanNotFound
}
