package subscription

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// PlanPeriod holds the price and discount for one billing period length.
type PlanPeriod struct {
	Price    float64
	Discount float64 // percent, 0-100
}

// Plan is an immutable snapshot of a plan definition as served by the
// catalog. The engine never writes plans; it copies Limits and Modules onto
// new subscriptions so later plan edits cannot retroactively change
// entitlements.
type Plan struct {
	Slug        string
	Name        string
	Description string
	Limits      map[Metric]int64 // -1 represents unlimited
	Modules     []Module
	Periods     map[int]PlanPeriod // keyed by period length in months
	TrialDays   int
	GraceDays   int
	Popular     bool
	Active      bool
}

// Catalog resolves plan snapshots by slug. Plan data is read-only to the
// subscription engine; catalog CRUD lives with the upstream provider.
type Catalog interface {
	// FindActiveBySlug returns the plan for the slug.
	// Returns ErrPlanNotFound if no such plan exists and ErrPlanNotActive
	// if the plan exists but has been retired.
	FindActiveBySlug(ctx context.Context, slug string) (*Plan, error)
}

// PriceForPeriod returns the base price for a period length.
// Returns ErrInvalidPeriod when the plan does not offer the period.
func (p *Plan) PriceForPeriod(months int) (float64, error) {
	period, ok := p.Periods[months]
	if !ok {
		return 0, errors.Join(ErrInvalidPeriod, fmt.Errorf("plan %s has no %d-month period", p.Slug, months))
	}
	return period.Price, nil
}

// DiscountForPeriod returns the discount percentage for a period length,
// or zero when the plan does not offer the period.
func (p *Plan) DiscountForPeriod(months int) float64 {
	return p.Periods[months].Discount
}

// MetricLimit returns the limit for a metric.
// Returns ErrMetricNotFound when the plan does not govern the metric.
func (p *Plan) MetricLimit(metric Metric) (int64, error) {
	limit, ok := p.Limits[metric]
	if !ok {
		return 0, errors.Join(ErrMetricNotFound, fmt.Errorf("metric %q", metric))
	}
	return limit, nil
}

// HasMetric reports whether the plan governs the metric.
func (p *Plan) HasMetric(metric Metric) bool {
	_, ok := p.Limits[metric]
	return ok
}

// HasModule reports whether the module is enabled on the plan.
func (p *Plan) HasModule(module Module) bool {
	return slices.Contains(p.Modules, module)
}

// IsUnlimited reports whether a metric has no ceiling on this plan.
func (p *Plan) IsUnlimited(metric Metric) bool {
	return p.Limits[metric] == Unlimited
}
