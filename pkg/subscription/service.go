package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Service defines the public interface of the subscription lifecycle engine
// and usage ledger.
type Service interface {
	// Lifecycle
	StartTrial(ctx context.Context, sub Subscriber, trialPlanSlug string) (*Subscription, error)
	Subscribe(ctx context.Context, sub Subscriber, planSlug string, periodMonths int) (*Subscription, error)
	Cancel(ctx context.Context, s *Subscription) error
	Upgrade(ctx context.Context, s *Subscription, newPlanSlug string) (*Subscription, error)

	// Renew creates a back-to-back successor starting at the old end date.
	// Pass newPeriod 0 to keep the current period length.
	Renew(ctx context.Context, s *Subscription, newPeriod int) (*Subscription, error)

	// AutoRenew is the unattended variant of Renew: it returns nil outside
	// the renewal window and swallows every failure, reporting it only via
	// the event sink. It never returns an error.
	AutoRenew(ctx context.Context, s *Subscription) *Subscription

	// RenewalQuote computes renewal pricing without side effects.
	RenewalQuote(ctx context.Context, s *Subscription, newPeriod int) (*RenewalQuote, error)

	// EnterGracePeriod stamps the grace window on a subscription that is
	// past its end date and has none yet. No-op otherwise.
	EnterGracePeriod(ctx context.Context, s *Subscription) error

	// Reads (cached)
	ActiveSubscription(ctx context.Context, sub Subscriber) (*Subscription, error)
	History(ctx context.Context, sub Subscriber) ([]Subscription, error)

	// Usage ledger
	CheckUsage(ctx context.Context, s *Subscription, metric Metric) (*UsageReport, error)
	IncreaseUsage(ctx context.Context, s *Subscription, metric Metric, amount int64) error
	DecreaseUsage(ctx context.Context, s *Subscription, metric Metric, amount int64) error
	ResetUsage(ctx context.Context, s *Subscription, metric *Metric) error

	// Entitlement checks (fail closed: false on any error)
	HasMetricAccess(ctx context.Context, s *Subscription, metric Metric) bool
	HasModuleAccess(s *Subscription, module Module) bool
	MetricLimit(s *Subscription, metric Metric) (int64, error)
}

type service struct {
	catalog Catalog
	store   Store
	cache   Cache
	sink    Sink
	clock   Clock
	log     *slog.Logger
	cfg     Config
}

// NewService creates the subscription engine. Panics if catalog or store is
// nil to fail fast during initialization. Cache, sink, clock, and logger
// default to no-op/system implementations; override them via options.
func NewService(catalog Catalog, store Store, opts ...ServiceOption) Service {
	if catalog == nil {
		panic("subscription: Catalog is required")
	}
	if store == nil {
		panic("subscription: Store is required")
	}

	s := &service{
		catalog: catalog,
		store:   store,
		cache:   NopCache{},
		sink:    NopSink{},
		clock:   systemClock{},
		log:     slog.Default(),
		cfg:     Config{}.withDefaults(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StartTrial creates a trialing subscription with zero price and no grace
// period. Fails with ErrAlreadySubscribed when the subscriber already holds
// an authoritative subscription.
func (s *service) StartTrial(ctx context.Context, sub Subscriber, trialPlanSlug string) (*Subscription, error) {
	plan, err := s.catalog.FindActiveBySlug(ctx, trialPlanSlug)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	trialDays := plan.TrialDays
	if trialDays <= 0 {
		trialDays = s.cfg.DefaultTrialDays
	}

	var created *Subscription
	var events []Event
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx Store) error {
		events = events[:0]

		if _, err := tx.ActiveSubscription(ctx, sub, now); err == nil {
			return ErrAlreadySubscribed
		} else if !errors.Is(err, ErrSubscriptionNotFound) {
			return err
		}

		lapsed, err := closeLapsedTx(ctx, tx, sub, now, &events)
		if err != nil {
			return err
		}

		trialEnd := now.AddDate(0, 0, trialDays)
		created = &Subscription{
			ID:             uuid.New(),
			SubscriberID:   sub.SubscriberID(),
			SubscriberKind: sub.SubscriberKind(),
			PlanSlug:       plan.Slug,
			PlanLimits:     freezeLimits(plan.Limits),
			PlanModules:    slices.Clone(plan.Modules),
			PeriodMonths:   0, // trials have no billing period
			Status:         StatusTrialing,
			StartDate:      now,
			EndDate:        trialEnd,
			TrialEndsAt:    &trialEnd,
			GraceDays:      0, // trials get no grace period
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if lapsed != nil {
			created.PreviousID = &lapsed.ID
		}
		events = append(events, Event{Name: EventSubscriptionCreated, Subscription: created})
		return tx.CreateSubscription(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSubscriber(ctx, sub)
	s.flush(ctx, events...)
	return created, nil
}

// Subscribe creates an active subscription for the plan and period. A
// running trial is canceled atomically in the same transaction and linked
// as the new subscription's predecessor. A non-trial authoritative
// subscription blocks with ErrAlreadySubscribed.
func (s *service) Subscribe(ctx context.Context, sub Subscriber, planSlug string, periodMonths int) (*Subscription, error) {
	plan, err := s.catalog.FindActiveBySlug(ctx, planSlug)
	if err != nil {
		return nil, err
	}

	originalPrice, err := plan.PriceForPeriod(periodMonths)
	if err != nil {
		return nil, err
	}
	discount := plan.DiscountForPeriod(periodMonths)
	finalPrice := originalPrice * (1 - discount/100)

	now := s.clock.Now()

	var created *Subscription
	var events []Event
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx Store) error {
		events = events[:0]

		current, err := tx.ActiveSubscription(ctx, sub, now)
		switch {
		case err == nil && current.Status == StatusTrialing:
			// Trial-to-paid transition: the trial row is canceled in the
			// same transaction so a failed subscribe leaves it untouched.
			if err := cancelTx(ctx, tx, current, now); err != nil {
				return err
			}
			events = append(events, Event{Name: EventSubscriptionCanceled, Subscription: current})
		case err == nil:
			return ErrAlreadySubscribed
		case !errors.Is(err, ErrSubscriptionNotFound):
			return err
		default:
			// No authoritative subscription, but a lapsed open-status row
			// (an expired trial, or a paid subscription past its grace
			// window) may still hold the uniqueness slot.
			current, err = closeLapsedTx(ctx, tx, sub, now, &events)
			if err != nil {
				return err
			}
		}

		created = s.buildSubscription(sub, plan, periodMonths, originalPrice, discount, finalPrice, now)
		if current != nil {
			created.PreviousID = &current.ID
		}

		if err := tx.CreateSubscription(ctx, created); err != nil {
			return err
		}
		events = append(events, Event{Name: EventSubscriptionCreated, Subscription: created})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSubscriber(ctx, sub)
	s.flush(ctx, events...)
	return created, nil
}

// Cancel marks the subscription canceled without shortening its end date:
// entitlements survive until EndDate, then the grace window, then expiry.
func (s *service) Cancel(ctx context.Context, subn *Subscription) error {
	if subn.IsCanceled() {
		return ErrAlreadyCanceled
	}

	now := s.clock.Now()
	err := s.store.InTransaction(ctx, func(ctx context.Context, tx Store) error {
		return cancelTx(ctx, tx, subn, now)
	})
	if err != nil {
		return err
	}

	s.invalidateSubscriber(ctx, subn.Subscriber())
	s.flush(ctx, Event{Name: EventSubscriptionCanceled, Subscription: subn})
	return nil
}

// Upgrade cancels the subscription and creates a successor on the new plan
// with the same period length, carrying a prorated credit computed from the
// unused remainder of the old subscription. The credit is advisory output
// for billing; it is not subtracted from the new price here.
func (s *service) Upgrade(ctx context.Context, old *Subscription, newPlanSlug string) (*Subscription, error) {
	plan, err := s.catalog.FindActiveBySlug(ctx, newPlanSlug)
	if err != nil {
		return nil, err
	}
	if plan.Slug == old.PlanSlug {
		return nil, ErrInvalidUpgrade
	}

	originalPrice, err := plan.PriceForPeriod(old.PeriodMonths)
	if err != nil {
		return nil, err
	}
	discount := plan.DiscountForPeriod(old.PeriodMonths)
	finalPrice := originalPrice * (1 - discount/100)

	now := s.clock.Now()
	credit := proratedCredit(old, now)

	var created *Subscription
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx Store) error {
		if err := cancelTx(ctx, tx, old, now); err != nil {
			return err
		}

		created = s.buildSubscription(old.Subscriber(), plan, old.PeriodMonths, originalPrice, discount, finalPrice, now)
		created.PreviousID = &old.ID
		created.ProratedCredit = credit
		return tx.CreateSubscription(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSubscriber(ctx, old.Subscriber())
	s.flush(ctx,
		Event{Name: EventSubscriptionCanceled, Subscription: old},
		Event{Name: EventSubscriptionUpgraded, Subscription: created, Previous: old},
	)
	return created, nil
}

// Renew creates a back-to-back successor: the new subscription starts at
// the old end date, not at the renewal call time, so renewing early never
// shortens the total entitlement. Frozen limits and modules carry over from
// the old subscription; pricing is resolved fresh from the plan catalog.
func (s *service) Renew(ctx context.Context, old *Subscription, newPeriod int) (*Subscription, error) {
	now := s.clock.Now()
	if !old.CanRenewAt(now) {
		return nil, ErrCannotRenew
	}

	period := newPeriod
	if period <= 0 {
		period = old.PeriodMonths
	}

	quote, err := s.RenewalQuote(ctx, old, period)
	if err != nil {
		return nil, err
	}

	var created *Subscription
	err = s.store.InTransaction(ctx, func(ctx context.Context, tx Store) error {
		start := old.EndDate
		end := addMonthsNoOverflow(start, period)
		graceEnds := end.AddDate(0, 0, old.GraceDays)

		created = &Subscription{
			ID:             uuid.New(),
			SubscriberID:   old.SubscriberID,
			SubscriberKind: old.SubscriberKind,
			PlanSlug:       old.PlanSlug,
			PlanLimits:     freezeLimits(old.PlanLimits),
			PlanModules:    slices.Clone(old.PlanModules),
			PeriodMonths:   period,
			Price:          quote.FinalPrice,
			OriginalPrice:  quote.OriginalPrice,
			PeriodDiscount: quote.DiscountPercentage,
			Status:         StatusActive,
			StartDate:      start,
			EndDate:        end,
			GraceDays:      old.GraceDays,
			GraceEndsAt:    &graceEnds,
			PreviousID:     &old.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		// The old row must leave the authoritative set before the new one
		// enters it, or the storage uniqueness constraint rejects the pair.
		if !old.IsCanceled() {
			if err := cancelTx(ctx, tx, old, now); err != nil {
				return err
			}
		}
		return tx.CreateSubscription(ctx, created)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSubscriber(ctx, old.Subscriber())
	s.flush(ctx, Event{Name: EventSubscriptionRenewed, Subscription: created, Previous: old})
	return created, nil
}

// AutoRenew runs Renew when the subscription is inside its renewal window.
// It is built to run unattended on a schedule: outside the window it
// returns nil, and any renewal failure is reported only through the event
// sink. Callers running it concurrently must single-flight per
// subscription; a success is not idempotent.
func (s *service) AutoRenew(ctx context.Context, old *Subscription) *Subscription {
	if !old.ShouldAutoRenewAt(s.clock.Now()) {
		return nil
	}

	renewed, err := s.Renew(ctx, old, 0)
	if err != nil {
		s.flush(ctx, Event{Name: EventAutoRenewalFailed, Subscription: old, Reason: err.Error()})
		return nil
	}
	return renewed
}

// RenewalQuote resolves the renewal price for a period without touching any
// state. Pass newPeriod 0 to price the current period length.
func (s *service) RenewalQuote(ctx context.Context, subn *Subscription, newPeriod int) (*RenewalQuote, error) {
	period := newPeriod
	if period <= 0 {
		period = subn.PeriodMonths
	}

	plan, err := s.catalog.FindActiveBySlug(ctx, subn.PlanSlug)
	if err != nil {
		return nil, err
	}

	originalPrice, err := plan.PriceForPeriod(period)
	if err != nil {
		return nil, err
	}
	discount := plan.DiscountForPeriod(period)

	return &RenewalQuote{
		OriginalPrice:      originalPrice,
		DiscountPercentage: discount,
		FinalPrice:         originalPrice * (1 - discount/100),
	}, nil
}

// EnterGracePeriod stamps grace_ends_at = end_date + grace_days on a
// subscription that is past its end date and has no window yet. Rows
// created by Subscribe and Renew carry the stamp from birth; this exists
// for trial rows and legacy data.
func (s *service) EnterGracePeriod(ctx context.Context, subn *Subscription) error {
	now := s.clock.Now()
	if subn.GraceEndsAt != nil || subn.GraceDays <= 0 || subn.EndDate.After(now) {
		return nil
	}

	graceEnds := subn.EndDate.AddDate(0, 0, subn.GraceDays)
	subn.GraceEndsAt = &graceEnds
	subn.UpdatedAt = now
	if err := s.store.UpdateSubscription(ctx, subn); err != nil {
		return err
	}

	s.invalidateSubscriber(ctx, subn.Subscriber())
	s.flush(ctx, Event{Name: EventSubscriptionEnteredGrace, Subscription: subn})
	return nil
}

// ActiveSubscription returns the authoritative subscription for the
// subscriber through the cache, falling back to the store. Returns
// ErrSubscriptionNotFound when the subscriber holds none.
func (s *service) ActiveSubscription(ctx context.Context, sub Subscriber) (*Subscription, error) {
	key := activeSubscriptionKey(sub)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var cached Subscription
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, nil
		}
		// Undecodable entries are dropped and re-fetched.
		s.cacheDelete(ctx, key)
	}

	current, err := s.store.ActiveSubscription(ctx, sub, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, current, s.cfg.ActiveTTL)
	return current, nil
}

// History returns the subscriber's full lineage, newest first, through the
// cache (longer TTL: history only changes on mutation, which invalidates).
func (s *service) History(ctx context.Context, sub Subscriber) ([]Subscription, error) {
	key := historyKey(sub)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var cached []Subscription
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.cacheDelete(ctx, key)
	}

	history, err := s.store.History(ctx, sub)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, key, history, s.cfg.HistoryTTL)
	return history, nil
}

// buildSubscription assembles a new active subscription row. Grace days
// come from the plan, falling back to the engine default when unset.
func (s *service) buildSubscription(sub Subscriber, plan *Plan, periodMonths int, originalPrice, discount, finalPrice float64, now time.Time) *Subscription {
	graceDays := plan.GraceDays
	if graceDays < 0 {
		graceDays = s.cfg.DefaultGraceDays
	}

	end := addMonthsNoOverflow(now, periodMonths)
	graceEnds := end.AddDate(0, 0, graceDays)

	return &Subscription{
		ID:             uuid.New(),
		SubscriberID:   sub.SubscriberID(),
		SubscriberKind: sub.SubscriberKind(),
		PlanSlug:       plan.Slug,
		PlanLimits:     freezeLimits(plan.Limits),
		PlanModules:    slices.Clone(plan.Modules),
		PeriodMonths:   periodMonths,
		Price:          finalPrice,
		OriginalPrice:  originalPrice,
		PeriodDiscount: discount,
		Status:         StatusActive,
		StartDate:      now,
		EndDate:        end,
		GraceDays:      graceDays,
		GraceEndsAt:    &graceEnds,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// cancelTx flips a subscription to canceled inside an open transaction.
// The write goes through a copy; the caller's struct only changes once the
// store accepted the update, so a failed write leaves it untouched.
func cancelTx(ctx context.Context, tx Store, subn *Subscription, now time.Time) error {
	if subn.IsCanceled() {
		return ErrAlreadyCanceled
	}
	canceled := *subn
	canceled.Status = StatusCanceled
	canceledAt := now
	canceled.CanceledAt = &canceledAt
	canceled.UpdatedAt = now
	if err := tx.UpdateSubscription(ctx, &canceled); err != nil {
		return err
	}
	*subn = canceled
	return nil
}

// closeLapsedTx cancels open-status rows whose end date has passed, so the
// storage uniqueness constraint only ever guards genuinely concurrent
// creations. Without this, an expired trial or an un-canceled expired
// subscription would hold the slot forever and block the subscriber from
// ever subscribing again. Rows still inside their grace window are closed
// too: the subscriber is explicitly replacing them. Returns the newest
// closed row for lineage linking.
func closeLapsedTx(ctx context.Context, tx Store, sub Subscriber, now time.Time, events *[]Event) (*Subscription, error) {
	history, err := tx.History(ctx, sub)
	if err != nil {
		return nil, err
	}

	var newest *Subscription
	for i := range history {
		row := &history[i]
		if row.IsCanceled() || row.EndDate.After(now) {
			continue
		}
		if err := cancelTx(ctx, tx, row, now); err != nil {
			return nil, err
		}
		*events = append(*events, Event{Name: EventSubscriptionCanceled, Subscription: row})
		if newest == nil {
			newest = row
		}
	}
	return newest, nil
}

// proratedCredit values the unused remainder of a subscription:
// price / totalDays * remainingDays, with remaining floored at zero before
// use. Day counts are whole 24h periods.
func proratedCredit(subn *Subscription, now time.Time) float64 {
	totalDays := wholeDaysBetween(subn.StartDate, subn.EndDate)
	if totalDays <= 0 {
		return 0
	}
	remainingDays := max(0, wholeDaysBetween(now, subn.EndDate))
	return subn.Price / float64(totalDays) * float64(remainingDays)
}

// invalidateSubscriber drops both subscriber-scoped cache entries. Runs
// synchronously before events flush so readers never observe entries older
// than the mutation.
func (s *service) invalidateSubscriber(ctx context.Context, sub Subscriber) {
	s.cacheDelete(ctx, activeSubscriptionKey(sub))
	s.cacheDelete(ctx, historyKey(sub))
}

func (s *service) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.WarnContext(ctx, "subscription cache encode failed", slog.String("key", key), slog.Any("error", err))
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		s.log.WarnContext(ctx, "subscription cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *service) cacheDelete(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.WarnContext(ctx, "subscription cache invalidation failed", slog.String("key", key), slog.Any("error", err))
	}
}

// flush hands events to the sink after the surrounding transaction has
// committed; rolled-back operations emit nothing.
func (s *service) flush(ctx context.Context, events ...Event) {
	for _, event := range events {
		s.sink.Emit(ctx, event)
	}
}
