// Package subscription implements a plan-bound subscription lifecycle engine
// with trial periods, renewal, upgrade, cancellation with grace periods, and
// per-metric usage metering against plan-defined limits.
//
// The package owns the state machine that decides which subscription is
// authoritative for a subscriber at a given instant, how transitions between
// trialing, active, canceled, in-grace, and expired are computed, how renewal
// pricing and prorated credit are derived, and how usage counters are safely
// incremented and decremented against limits with cached read paths.
//
// # Architecture
//
//   - Service: lifecycle operations and the usage ledger
//   - Plan: immutable snapshot served by a Catalog collaborator
//   - Subscription: one entry in a subscriber's renewal/upgrade chain, with
//     limits and modules frozen at creation time
//   - Store: persistence port with atomic transactions and guarded counters
//   - Cache: memoization port for hot read paths (never a source of truth)
//   - Sink: fire-and-forget outbound channel for lifecycle/usage events
//   - Clock: injected time source for deterministic date-boundary behavior
//
// Grace and expired are virtual states derived from EndDate and GraceEndsAt
// against the injected clock; only trialing, active, and canceled are stored.
// A canceled subscription stays entitled until its end date, then passes
// through its grace window, then expires for good.
//
// # Quick Start
//
//	catalog := plans.NewStatic(planList)
//	store := subscription.NewMemoryStore()
//	svc := subscription.NewService(catalog, store,
//		subscription.WithCache(cache.NewTTL()),
//		subscription.WithSink(sink),
//	)
//
//	sub, err := svc.Subscribe(ctx, subscriber, "basic", 12)
//	if err != nil {
//		// handle ErrPlanNotFound, ErrInvalidPeriod, ErrAlreadySubscribed...
//	}
//
//	if err := svc.IncreaseUsage(ctx, sub, subscription.MetricProducts, 1); err != nil {
//		// ErrUsageLimitExceeded means the increment was rejected whole
//	}
//
// # Concurrency
//
// The engine itself holds no background goroutines; every operation runs
// synchronously in the caller's goroutine. Mutations execute inside a store
// transaction, and counter updates go through the store's atomic guarded
// increment/decrement, so concurrent callers cannot produce lost updates or
// partially applied writes. The single-authoritative-subscription invariant
// is enforced by the store (unique constraint over open subscriptions); a
// violation surfaces as ErrSubscriptionConflict and is safe to retry after
// re-fetching state.
//
// Events are accumulated during an operation and handed to the sink only
// after the transaction commits, so rolled-back operations emit nothing.
// Cache entries are invalidated synchronously before events flush; cache
// write failures are logged and never fail the operation.
package subscription
