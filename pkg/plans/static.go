package plans

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/plankit/plankit/pkg/subscription"
)

// Static is an immutable in-memory plan catalog. Plans are validated and
// deep-copied at construction time; lookups hand out fresh copies so callers
// can never mutate the catalog through a returned plan.
type Static struct {
	plans map[string]subscription.Plan
}

var _ subscription.Catalog = (*Static)(nil)

// NewStatic builds a catalog from the given plan definitions.
// Every plan must pass Validate, and slugs must be unique.
func NewStatic(defs ...subscription.Plan) (*Static, error) {
	bySlug := make(map[string]subscription.Plan, len(defs))
	for _, def := range defs {
		if err := Validate(def); err != nil {
			return nil, err
		}
		if _, exists := bySlug[def.Slug]; exists {
			return nil, errors.Join(ErrDuplicateSlug, fmt.Errorf("slug %q", def.Slug))
		}
		bySlug[def.Slug] = clonePlan(def)
	}
	return &Static{plans: bySlug}, nil
}

// MustStatic is NewStatic that panics on invalid definitions. Intended for
// hardcoded catalogs wired at startup.
func MustStatic(defs ...subscription.Plan) *Static {
	catalog, err := NewStatic(defs...)
	if err != nil {
		panic(fmt.Sprintf("plans: invalid static catalog: %v", err))
	}
	return catalog
}

// FindActiveBySlug returns a copy of the active plan with the given slug.
func (c *Static) FindActiveBySlug(ctx context.Context, slug string) (*subscription.Plan, error) {
	plan, ok := c.plans[slug]
	if !ok {
		return nil, errors.Join(subscription.ErrPlanNotFound, fmt.Errorf("slug %q", slug))
	}
	if !plan.Active {
		return nil, errors.Join(subscription.ErrPlanNotActive, fmt.Errorf("slug %q", slug))
	}
	clone := clonePlan(plan)
	return &clone, nil
}

// All returns every plan in the catalog, active or not, sorted by slug.
func (c *Static) All() []subscription.Plan {
	out := make([]subscription.Plan, 0, len(c.plans))
	for _, plan := range c.plans {
		out = append(out, clonePlan(plan))
	}
	slices.SortFunc(out, func(a, b subscription.Plan) int {
		switch {
		case a.Slug < b.Slug:
			return -1
		case a.Slug > b.Slug:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Validate checks a single plan definition against the catalog rules:
// slug present, positive period months with non-negative prices and sane
// discounts, limits that are non-negative or the unlimited sentinel, and
// non-negative trial/grace day counts.
func Validate(plan subscription.Plan) error {
	fail := func(cause error, format string, args ...any) error {
		return errors.Join(ErrInvalidPlan, cause, fmt.Errorf(format, args...))
	}

	if plan.Slug == "" {
		return errors.Join(ErrInvalidPlan, ErrMissingSlug)
	}
	for months, period := range plan.Periods {
		if months <= 0 {
			return fail(ErrInvalidPeriod, "plan %q period %d", plan.Slug, months)
		}
		if period.Price < 0 {
			return fail(ErrNegativePrice, "plan %q period %d", plan.Slug, months)
		}
		if period.Discount < 0 || period.Discount > 100 {
			return fail(ErrInvalidDiscount, "plan %q period %d discount %v", plan.Slug, months, period.Discount)
		}
	}
	for metric, limit := range plan.Limits {
		if limit < 0 && limit != subscription.Unlimited {
			return fail(ErrInvalidLimit, "plan %q metric %q limit %d", plan.Slug, metric, limit)
		}
	}
	if plan.TrialDays < 0 {
		return fail(ErrNegativeTrialDays, "plan %q", plan.Slug)
	}
	if plan.GraceDays < 0 {
		return fail(ErrNegativeGraceDays, "plan %q", plan.Slug)
	}
	return nil
}

func clonePlan(plan subscription.Plan) subscription.Plan {
	clone := plan
	clone.Limits = make(map[subscription.Metric]int64, len(plan.Limits))
	for metric, limit := range plan.Limits {
		clone.Limits[metric] = limit
	}
	clone.Modules = slices.Clone(plan.Modules)
	clone.Periods = make(map[int]subscription.PlanPeriod, len(plan.Periods))
	for months, period := range plan.Periods {
		clone.Periods[months] = period
	}
	return clone
}
