package plans_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankit/plankit/pkg/plans"
	"github.com/plankit/plankit/pkg/subscription"
)

const catalogYAML = `
plans:
  - slug: basic
    name: Basic
    description: For small teams
    active: true
    trial_days: 14
    grace_days: 7
    limits:
      products: 100
      storage: -1
      users: 5
    modules: [auto_invoice]
    periods:
      - months: 1
        price: 99000
      - months: 12
        price: 1188000
        discount: 25
  - slug: legacy
    name: Legacy
    periods:
      - months: 1
        price: 50000
`

func TestParseYAML(t *testing.T) {
	t.Parallel()

	t.Run("full catalog", func(t *testing.T) {
		t.Parallel()
		defs, err := plans.ParseYAML(strings.NewReader(catalogYAML))
		require.NoError(t, err)
		require.Len(t, defs, 2)

		basic := defs[0]
		assert.Equal(t, "basic", basic.Slug)
		assert.True(t, basic.Active)
		assert.Equal(t, 14, basic.TrialDays)
		assert.Equal(t, 7, basic.GraceDays)
		assert.Equal(t, int64(100), basic.Limits[subscription.MetricProducts])
		assert.Equal(t, subscription.Unlimited, basic.Limits[subscription.MetricStorage])
		assert.Equal(t, []subscription.Module{subscription.ModuleAutoInvoice}, basic.Modules)
		assert.Equal(t, subscription.PlanPeriod{Price: 99000}, basic.Periods[1])
		assert.Equal(t, subscription.PlanPeriod{Price: 1188000, Discount: 25}, basic.Periods[12])

		// Omitted active flag means inactive.
		assert.False(t, defs[1].Active)
	})

	t.Run("duplicate period months", func(t *testing.T) {
		t.Parallel()
		_, err := plans.ParseYAML(strings.NewReader(`
plans:
  - slug: dup
    periods:
      - months: 1
        price: 100
      - months: 1
        price: 200
`))
		assert.ErrorIs(t, err, plans.ErrDuplicatePeriod)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		t.Parallel()
		_, err := plans.ParseYAML(strings.NewReader(`
plans:
  - slug: typo
    trail_days: 14
`))
		assert.ErrorIs(t, err, plans.ErrFailedToParseFile)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		_, err := plans.ParseYAML(strings.NewReader("plans: ["))
		assert.ErrorIs(t, err, plans.ErrFailedToParseFile)
	})
}

func TestNewFromFile(t *testing.T) {
	t.Parallel()

	t.Run("builds working catalog", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "plans.yml")
		require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))

		catalog, err := plans.NewFromFile(path)
		require.NoError(t, err)

		plan, err := catalog.FindActiveBySlug(context.Background(), "basic")
		require.NoError(t, err)

		price, err := plan.PriceForPeriod(12)
		require.NoError(t, err)
		assert.Equal(t, float64(1188000), price)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := plans.NewFromFile(filepath.Join(t.TempDir(), "nope.yml"))
		assert.ErrorIs(t, err, plans.ErrFailedToReadFile)
	})

	t.Run("invalid definitions fail validation", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "plans.yml")
		require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - slug: broken
    periods:
      - months: 1
        price: -5
`), 0o600))

		_, err := plans.NewFromFile(path)
		assert.ErrorIs(t, err, plans.ErrNegativePrice)
	})
}
