// Package plans provides plan catalog implementations for the subscription
// engine: a validated in-memory catalog and a YAML file source for defining
// the catalog in configuration.
//
// The catalog is deliberately read-only at runtime. Plan edits happen by
// rebuilding the catalog (redeploy or config reload); subscriptions created
// before an edit keep their frozen limits regardless.
//
// # Usage
//
//	catalog, err := plans.NewFromFile("config/plans.yml")
//	if err != nil {
//		return err
//	}
//	svc := subscription.NewService(catalog, store)
//
// Hardcoded catalogs can use MustStatic, which panics on invalid definitions
// so misconfiguration fails at startup:
//
//	catalog := plans.MustStatic(subscription.Plan{
//		Slug:   "basic",
//		Name:   "Basic",
//		Active: true,
//		Limits: map[subscription.Metric]int64{
//			subscription.MetricProducts: 100,
//			subscription.MetricStorage:  subscription.Unlimited,
//		},
//		Periods: map[int]subscription.PlanPeriod{
//			1:  {Price: 99000},
//			12: {Price: 1188000, Discount: 25},
//		},
//	})
package plans
