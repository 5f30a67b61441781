package mongostore

import (
	"time"

	"github.com/google/uuid"

	"github.com/plankit/plankit/pkg/subscription"
)

// subscriptionDoc is the persisted shape of a subscription. UUIDs are stored
// as strings for queryability, and the open flag is denormalized from status
// and deleted_at to back the partial unique index.
type subscriptionDoc struct {
	ID             string           `bson:"_id"`
	SubscriberID   string           `bson:"subscriber_id"`
	SubscriberKind string           `bson:"subscriber_kind"`
	PlanSlug       string           `bson:"plan_slug"`
	PlanLimits     map[string]int64 `bson:"plan_limits"`
	PlanModules    []string         `bson:"plan_modules"`
	PeriodMonths   int              `bson:"period_months"`
	Price          float64          `bson:"price"`
	OriginalPrice  float64          `bson:"original_price"`
	PeriodDiscount float64          `bson:"period_discount"`
	Status         string           `bson:"status"`
	Open           bool             `bson:"open"`
	StartDate      time.Time        `bson:"start_date"`
	EndDate        time.Time        `bson:"end_date"`
	TrialEndsAt    *time.Time       `bson:"trial_ends_at"`
	CanceledAt     *time.Time       `bson:"canceled_at"`
	GraceDays      int              `bson:"grace_days"`
	GraceEndsAt    *time.Time       `bson:"grace_ends_at"`
	PreviousID     *string          `bson:"previous_id"`
	ProratedCredit float64          `bson:"prorated_credit"`
	CreatedAt      time.Time        `bson:"created_at"`
	UpdatedAt      time.Time        `bson:"updated_at"`
	DeletedAt      *time.Time       `bson:"deleted_at"`
}

type usageDoc struct {
	SubscriptionID string     `bson:"subscription_id"`
	Metric         string     `bson:"metric"`
	Used           int64      `bson:"used"`
	ResetAt        *time.Time `bson:"reset_at"`
	CreatedAt      time.Time  `bson:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at"`
}

func newSubscriptionDoc(subn *subscription.Subscription) subscriptionDoc {
	limits := make(map[string]int64, len(subn.PlanLimits))
	for metric, limit := range subn.PlanLimits {
		limits[string(metric)] = limit
	}
	modules := make([]string, len(subn.PlanModules))
	for i, module := range subn.PlanModules {
		modules[i] = string(module)
	}

	doc := subscriptionDoc{
		ID:             subn.ID.String(),
		SubscriberID:   subn.SubscriberID.String(),
		SubscriberKind: subn.SubscriberKind,
		PlanSlug:       subn.PlanSlug,
		PlanLimits:     limits,
		PlanModules:    modules,
		PeriodMonths:   subn.PeriodMonths,
		Price:          subn.Price,
		OriginalPrice:  subn.OriginalPrice,
		PeriodDiscount: subn.PeriodDiscount,
		Status:         string(subn.Status),
		Open:           isOpen(subn),
		StartDate:      subn.StartDate,
		EndDate:        subn.EndDate,
		TrialEndsAt:    subn.TrialEndsAt,
		CanceledAt:     subn.CanceledAt,
		GraceDays:      subn.GraceDays,
		GraceEndsAt:    subn.GraceEndsAt,
		ProratedCredit: subn.ProratedCredit,
		CreatedAt:      subn.CreatedAt,
		UpdatedAt:      subn.UpdatedAt,
		DeletedAt:      subn.DeletedAt,
	}
	if subn.PreviousID != nil {
		prev := subn.PreviousID.String()
		doc.PreviousID = &prev
	}
	return doc
}

func (d subscriptionDoc) toModel() (*subscription.Subscription, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	subscriberID, err := uuid.Parse(d.SubscriberID)
	if err != nil {
		return nil, err
	}

	limits := make(map[subscription.Metric]int64, len(d.PlanLimits))
	for metric, limit := range d.PlanLimits {
		limits[subscription.Metric(metric)] = limit
	}
	modules := make([]subscription.Module, len(d.PlanModules))
	for i, module := range d.PlanModules {
		modules[i] = subscription.Module(module)
	}

	subn := &subscription.Subscription{
		ID:             id,
		SubscriberID:   subscriberID,
		SubscriberKind: d.SubscriberKind,
		PlanSlug:       d.PlanSlug,
		PlanLimits:     limits,
		PlanModules:    modules,
		PeriodMonths:   d.PeriodMonths,
		Price:          d.Price,
		OriginalPrice:  d.OriginalPrice,
		PeriodDiscount: d.PeriodDiscount,
		Status:         subscription.Status(d.Status),
		StartDate:      d.StartDate,
		EndDate:        d.EndDate,
		TrialEndsAt:    d.TrialEndsAt,
		CanceledAt:     d.CanceledAt,
		GraceDays:      d.GraceDays,
		GraceEndsAt:    d.GraceEndsAt,
		ProratedCredit: d.ProratedCredit,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		DeletedAt:      d.DeletedAt,
	}
	if d.PreviousID != nil {
		prev, err := uuid.Parse(*d.PreviousID)
		if err != nil {
			return nil, err
		}
		subn.PreviousID = &prev
	}
	return subn, nil
}

func (d usageDoc) toModel() (*subscription.UsageRecord, error) {
	id, err := uuid.Parse(d.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return &subscription.UsageRecord{
		SubscriptionID: id,
		Metric:         subscription.Metric(d.Metric),
		Used:           d.Used,
		ResetAt:        d.ResetAt,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}, nil
}

func isOpen(subn *subscription.Subscription) bool {
	if subn.DeletedAt != nil {
		return false
	}
	return subn.Status == subscription.StatusActive || subn.Status == subscription.StatusTrialing
}
