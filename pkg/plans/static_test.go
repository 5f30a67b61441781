package plans_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankit/plankit/pkg/plans"
	"github.com/plankit/plankit/pkg/subscription"
)

func basicPlan() subscription.Plan {
	return subscription.Plan{
		Slug:   "basic",
		Name:   "Basic",
		Active: true,
		Limits: map[subscription.Metric]int64{
			subscription.MetricProducts: 100,
			subscription.MetricStorage:  subscription.Unlimited,
		},
		Modules: []subscription.Module{subscription.ModuleAutoInvoice},
		Periods: map[int]subscription.PlanPeriod{
			1:  {Price: 99000},
			12: {Price: 1188000, Discount: 25},
		},
		TrialDays: 14,
		GraceDays: 7,
	}
}

func TestStatic_FindActiveBySlug(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("returns active plan", func(t *testing.T) {
		t.Parallel()
		catalog, err := plans.NewStatic(basicPlan())
		require.NoError(t, err)

		plan, err := catalog.FindActiveBySlug(ctx, "basic")
		require.NoError(t, err)
		assert.Equal(t, "basic", plan.Slug)
		assert.Equal(t, int64(100), plan.Limits[subscription.MetricProducts])
	})

	t.Run("unknown slug", func(t *testing.T) {
		t.Parallel()
		catalog, err := plans.NewStatic(basicPlan())
		require.NoError(t, err)

		_, err = catalog.FindActiveBySlug(ctx, "enterprise")
		assert.ErrorIs(t, err, subscription.ErrPlanNotFound)
	})

	t.Run("inactive plan", func(t *testing.T) {
		t.Parallel()
		retired := basicPlan()
		retired.Slug = "retired"
		retired.Active = false

		catalog, err := plans.NewStatic(retired)
		require.NoError(t, err)

		_, err = catalog.FindActiveBySlug(ctx, "retired")
		assert.ErrorIs(t, err, subscription.ErrPlanNotActive)
	})

	t.Run("returned plan is a copy", func(t *testing.T) {
		t.Parallel()
		catalog, err := plans.NewStatic(basicPlan())
		require.NoError(t, err)

		first, err := catalog.FindActiveBySlug(ctx, "basic")
		require.NoError(t, err)
		first.Limits[subscription.MetricProducts] = 1
		first.Periods[1] = subscription.PlanPeriod{Price: 1}

		second, err := catalog.FindActiveBySlug(ctx, "basic")
		require.NoError(t, err)
		assert.Equal(t, int64(100), second.Limits[subscription.MetricProducts])
		assert.Equal(t, float64(99000), second.Periods[1].Price)
	})
}

func TestNewStatic_Validation(t *testing.T) {
	t.Parallel()

	t.Run("duplicate slug", func(t *testing.T) {
		t.Parallel()
		_, err := plans.NewStatic(basicPlan(), basicPlan())
		assert.ErrorIs(t, err, plans.ErrDuplicateSlug)
	})

	t.Run("source definitions are copied", func(t *testing.T) {
		t.Parallel()
		def := basicPlan()
		catalog, err := plans.NewStatic(def)
		require.NoError(t, err)

		def.Limits[subscription.MetricProducts] = 1

		plan, err := catalog.FindActiveBySlug(context.Background(), "basic")
		require.NoError(t, err)
		assert.Equal(t, int64(100), plan.Limits[subscription.MetricProducts])
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*subscription.Plan)
		wantErr error
	}{
		{
			name:    "valid plan",
			mutate:  func(p *subscription.Plan) {},
			wantErr: nil,
		},
		{
			name:    "missing slug",
			mutate:  func(p *subscription.Plan) { p.Slug = "" },
			wantErr: plans.ErrMissingSlug,
		},
		{
			name: "zero period months",
			mutate: func(p *subscription.Plan) {
				p.Periods[0] = subscription.PlanPeriod{Price: 1000}
			},
			wantErr: plans.ErrInvalidPeriod,
		},
		{
			name: "negative price",
			mutate: func(p *subscription.Plan) {
				p.Periods[1] = subscription.PlanPeriod{Price: -1}
			},
			wantErr: plans.ErrNegativePrice,
		},
		{
			name: "discount over 100",
			mutate: func(p *subscription.Plan) {
				p.Periods[1] = subscription.PlanPeriod{Price: 1000, Discount: 101}
			},
			wantErr: plans.ErrInvalidDiscount,
		},
		{
			name: "negative limit that is not the unlimited sentinel",
			mutate: func(p *subscription.Plan) {
				p.Limits[subscription.MetricUsers] = -2
			},
			wantErr: plans.ErrInvalidLimit,
		},
		{
			name:    "negative trial days",
			mutate:  func(p *subscription.Plan) { p.TrialDays = -1 },
			wantErr: plans.ErrNegativeTrialDays,
		},
		{
			name:    "negative grace days",
			mutate:  func(p *subscription.Plan) { p.GraceDays = -1 },
			wantErr: plans.ErrNegativeGraceDays,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			plan := basicPlan()
			tc.mutate(&plan)

			err := plans.Validate(plan)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
			assert.ErrorIs(t, err, plans.ErrInvalidPlan)
		})
	}
}

func TestStatic_All(t *testing.T) {
	t.Parallel()

	pro := basicPlan()
	pro.Slug = "pro"
	retired := basicPlan()
	retired.Slug = "retired"
	retired.Active = false

	catalog, err := plans.NewStatic(pro, basicPlan(), retired)
	require.NoError(t, err)

	all := catalog.All()
	require.Len(t, all, 3)
	assert.Equal(t, "basic", all[0].Slug)
	assert.Equal(t, "pro", all[1].Slug)
	assert.Equal(t, "retired", all[2].Slug)
}
