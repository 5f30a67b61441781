package subscription

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Subscription represents one entry in a subscriber's subscription lineage.
// PlanLimits and PlanModules are frozen copies taken at creation time so
// later plan edits never retroactively alter entitlements.
//
// Grace and expired states are virtual: they are derived from EndDate and
// GraceEndsAt against a caller-supplied instant, never persisted as Status.
type Subscription struct {
	ID             uuid.UUID
	SubscriberID   uuid.UUID
	SubscriberKind string
	PlanSlug       string
	PlanLimits     map[Metric]int64
	PlanModules    []Module
	PeriodMonths   int
	Price          float64
	OriginalPrice  float64
	PeriodDiscount float64
	Status         Status
	StartDate      time.Time
	EndDate        time.Time
	TrialEndsAt    *time.Time
	CanceledAt     *time.Time
	GraceDays      int
	GraceEndsAt    *time.Time
	PreviousID     *uuid.UUID // back-reference forming the renewal/upgrade chain
	ProratedCredit float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// Subscriber returns the owner reference used for cache-key namespacing.
func (s *Subscription) Subscriber() SubscriberRef {
	return SubscriberRef{ID: s.SubscriberID, Kind: s.SubscriberKind}
}

// IsActiveAt reports whether the subscription is active and not past its end.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.Status == StatusActive && s.EndDate.After(now)
}

// IsTrialingAt reports whether the subscription is in a running trial.
func (s *Subscription) IsTrialingAt(now time.Time) bool {
	return s.Status == StatusTrialing && s.TrialEndsAt != nil && s.TrialEndsAt.After(now)
}

// IsCanceled reports whether the subscription has been canceled. A canceled
// subscription remains entitled until EndDate ("canceled but active").
func (s *Subscription) IsCanceled() bool {
	return s.Status == StatusCanceled
}

// InGracePeriodAt reports whether the grace window is open.
func (s *Subscription) InGracePeriodAt(now time.Time) bool {
	return s.GraceEndsAt != nil && s.GraceEndsAt.After(now)
}

// GraceExpiredAt reports whether a grace window was set and has closed.
func (s *Subscription) GraceExpiredAt(now time.Time) bool {
	return s.GraceEndsAt != nil && !s.GraceEndsAt.After(now)
}

// HasExpiredAt reports whether the subscription is past its end date and
// outside any grace window. Expired is terminal: the only way forward is a
// fresh subscription.
func (s *Subscription) HasExpiredAt(now time.Time) bool {
	return !s.EndDate.After(now) && !s.InGracePeriodAt(now)
}

// ShouldAutoRenewAt reports whether the subscription is inside the 7-day
// auto-renewal window before its end date.
func (s *Subscription) ShouldAutoRenewAt(now time.Time) bool {
	return s.Status == StatusActive &&
		!s.EndDate.AddDate(0, 0, -autoRenewWindowDays).After(now) &&
		s.EndDate.After(now)
}

// CanRenewAt reports whether a renewal is permitted: the subscription must
// be active or canceled, and either not yet past its end date or still
// inside its grace window.
func (s *Subscription) CanRenewAt(now time.Time) bool {
	if s.Status != StatusActive && s.Status != StatusCanceled {
		return false
	}
	return s.EndDate.After(now) || s.InGracePeriodAt(now)
}

// RemainingDaysAt returns whole days until EndDate, floored at zero after
// the signed diff. Grace days are not counted; see GraceDaysLeftAt.
func (s *Subscription) RemainingDaysAt(now time.Time) int {
	return max(0, wholeDaysBetween(now, s.EndDate))
}

// GraceDaysLeftAt returns whole days left in the grace window, or zero when
// no window is set or it has closed.
func (s *Subscription) GraceDaysLeftAt(now time.Time) int {
	if s.GraceEndsAt == nil {
		return 0
	}
	return max(0, wholeDaysBetween(now, *s.GraceEndsAt))
}

// TrialDaysLeftAt returns whole days left in the trial, or zero.
func (s *Subscription) TrialDaysLeftAt(now time.Time) int {
	if s.TrialEndsAt == nil {
		return 0
	}
	return max(0, wholeDaysBetween(now, *s.TrialEndsAt))
}

// FeatureLimit returns the frozen limit for a metric.
// Returns ErrMetricNotFound when the frozen snapshot does not govern it.
func (s *Subscription) FeatureLimit(metric Metric) (int64, error) {
	limit, ok := s.PlanLimits[metric]
	if !ok {
		return 0, errors.Join(ErrMetricNotFound, fmt.Errorf("metric %q", metric))
	}
	return limit, nil
}

// HasModule reports whether the module was enabled when the subscription
// was created.
func (s *Subscription) HasModule(module Module) bool {
	return slices.Contains(s.PlanModules, module)
}

const autoRenewWindowDays = 7

// wholeDaysBetween returns the signed count of complete 24h periods from a
// to b. Negative when b is before a.
func wholeDaysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// addMonthsNoOverflow advances t by the given number of calendar months,
// clamping to the last day of the target month instead of letting the day
// component spill over (Jan 31 + 1 month = Feb 28, never Mar 3).
func addMonthsNoOverflow(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	hour, minute, sec := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// freezeLimits copies a plan's limits for storage on a subscription.
func freezeLimits(limits map[Metric]int64) map[Metric]int64 {
	frozen := make(map[Metric]int64, len(limits))
	for metric, limit := range limits {
		frozen[metric] = limit
	}
	return frozen
}
