package mongostore

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankit/plankit/pkg/subscription"
)

func TestSubscriptionDoc_Mapping(t *testing.T) {
	t.Parallel()

	prev := uuid.New()
	canceledAt := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	subn := &subscription.Subscription{
		ID:             uuid.New(),
		SubscriberID:   uuid.New(),
		SubscriberKind: "tenant",
		PlanSlug:       "basic",
		PlanLimits: map[subscription.Metric]int64{
			subscription.MetricProducts: 100,
			subscription.MetricStorage:  subscription.Unlimited,
		},
		PlanModules:    []subscription.Module{subscription.ModulePayroll},
		PeriodMonths:   12,
		Price:          891000,
		OriginalPrice:  1188000,
		PeriodDiscount: 25,
		Status:         subscription.StatusCanceled,
		StartDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CanceledAt:     &canceledAt,
		GraceDays:      7,
		PreviousID:     &prev,
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
	}

	doc := newSubscriptionDoc(subn)
	got, err := doc.toModel()
	require.NoError(t, err)
	assert.Equal(t, subn, got)
}

func TestSubscriptionDoc_OpenFlag(t *testing.T) {
	t.Parallel()

	subn := &subscription.Subscription{ID: uuid.New(), SubscriberID: uuid.New(), Status: subscription.StatusActive}
	assert.True(t, newSubscriptionDoc(subn).Open)

	subn.Status = subscription.StatusTrialing
	assert.True(t, newSubscriptionDoc(subn).Open)

	subn.Status = subscription.StatusCanceled
	assert.False(t, newSubscriptionDoc(subn).Open)

	subn.Status = subscription.StatusActive
	deleted := time.Now()
	subn.DeletedAt = &deleted
	assert.False(t, newSubscriptionDoc(subn).Open, "soft-deleted rows leave the authoritative set")
}
