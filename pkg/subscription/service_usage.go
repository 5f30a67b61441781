package subscription

import (
	"context"
	"encoding/json"
	"errors"
)

// CheckUsage returns the metric's consumption against the frozen limit,
// read through the cache with a short TTL. Stale reads inside the TTL are
// an accepted tradeoff for hot-path limit checks; every mutation
// invalidates the entry synchronously.
func (s *service) CheckUsage(ctx context.Context, subn *Subscription, metric Metric) (*UsageReport, error) {
	limit, err := subn.FeatureLimit(metric)
	if err != nil {
		return nil, err
	}

	key := usageKey(subn.ID, metric)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var cached UsageReport
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		s.cacheDelete(ctx, key)
	}

	used, err := s.currentUsage(ctx, subn, metric)
	if err != nil {
		return nil, err
	}

	report := buildUsageReport(limit, used)
	s.cacheSet(ctx, key, report, s.cfg.UsageTTL)
	return &report, nil
}

// IncreaseUsage adds amount to the metric's counter. When the frozen limit
// is finite and the new total would exceed it, the increment is rejected
// whole (never partially applied) with ErrUsageLimitExceeded, and a
// limit-reached event fires. Landing exactly on the limit succeeds but
// also fires the limit-reached event as a boundary notification.
func (s *service) IncreaseUsage(ctx context.Context, subn *Subscription, metric Metric, amount int64) error {
	if amount < 1 {
		return ErrInvalidAmount
	}

	limit, err := subn.FeatureLimit(metric)
	if err != nil {
		return err
	}

	if limit != Unlimited {
		used, err := s.currentUsage(ctx, subn, metric)
		if err != nil {
			return err
		}
		if used+amount > limit {
			// The event reports the untouched counter, not the rejected total.
			s.flush(ctx, Event{
				Name:         EventUsageLimitReached,
				Subscription: subn,
				Metric:       &metric,
				Used:         used,
				Limit:        limit,
			})
			return ErrUsageLimitExceeded
		}
	}

	// The store enforces the ceiling again inside the atomic increment, so
	// a concurrent writer between the read above and this call cannot push
	// the counter past the limit.
	newUsed, err := s.store.IncrementUsage(ctx, subn.ID, metric, amount, limit)
	if errors.Is(err, ErrUsageLimitExceeded) {
		// A concurrent increment consumed the headroom after the check
		// above; the store reports the counter it left untouched.
		s.flush(ctx, Event{
			Name:         EventUsageLimitReached,
			Subscription: subn,
			Metric:       &metric,
			Used:         newUsed,
			Limit:        limit,
		})
		return err
	}
	if err != nil {
		return err
	}

	s.cacheDelete(ctx, usageKey(subn.ID, metric))

	events := make([]Event, 0, 2)
	if limit != Unlimited && newUsed == limit {
		events = append(events, Event{
			Name:         EventUsageLimitReached,
			Subscription: subn,
			Metric:       &metric,
			Used:         newUsed,
			Limit:        limit,
		})
	}
	remaining := Unlimited
	if limit != Unlimited {
		remaining = max(0, limit-newUsed)
	}
	events = append(events, Event{
		Name:         EventUsageRecorded,
		Subscription: subn,
		Metric:       &metric,
		Used:         newUsed,
		Remaining:    remaining,
	})
	s.flush(ctx, events...)
	return nil
}

// DecreaseUsage subtracts amount from the metric's counter. The zero floor
// is hard: a decrement that would go below zero, or against a missing row,
// is rejected with ErrCannotDecreaseUsage rather than clamped.
func (s *service) DecreaseUsage(ctx context.Context, subn *Subscription, metric Metric, amount int64) error {
	if amount < 1 {
		return ErrInvalidAmount
	}

	if _, err := s.store.DecrementUsage(ctx, subn.ID, metric, amount); err != nil {
		return err
	}

	s.cacheDelete(ctx, usageKey(subn.ID, metric))
	return nil
}

// ResetUsage zeroes one metric's counter, or every counter of the
// subscription when metric is nil, invalidating the matching cache entries.
func (s *service) ResetUsage(ctx context.Context, subn *Subscription, metric *Metric) error {
	now := s.clock.Now()
	if err := s.store.ResetUsage(ctx, subn.ID, metric, now); err != nil {
		return err
	}

	if metric != nil {
		s.cacheDelete(ctx, usageKey(subn.ID, *metric))
	} else {
		for m := range subn.PlanLimits {
			s.cacheDelete(ctx, usageKey(subn.ID, m))
		}
	}

	s.flush(ctx, Event{Name: EventUsageReset, Subscription: subn, Metric: metric})
	return nil
}

// HasMetricAccess reports whether the metric can still be consumed:
// unlimited metrics always can, finite ones while used < limit. Fails
// closed on any error.
func (s *service) HasMetricAccess(ctx context.Context, subn *Subscription, metric Metric) bool {
	limit, err := subn.FeatureLimit(metric)
	if err != nil {
		return false
	}
	if limit == Unlimited {
		return true
	}

	used, err := s.currentUsage(ctx, subn, metric)
	if err != nil {
		return false
	}
	return used < limit
}

// HasModuleAccess reports whether the module was enabled in the frozen
// snapshot.
func (s *service) HasModuleAccess(subn *Subscription, module Module) bool {
	return subn.HasModule(module)
}

// MetricLimit returns the frozen limit for a metric.
func (s *service) MetricLimit(subn *Subscription, metric Metric) (int64, error) {
	return subn.FeatureLimit(metric)
}

// currentUsage reads the counter straight from the store; a missing row
// counts as zero.
func (s *service) currentUsage(ctx context.Context, subn *Subscription, metric Metric) (int64, error) {
	record, err := s.store.UsageRecord(ctx, subn.ID, metric)
	if errors.Is(err, ErrUsageNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.Used, nil
}
