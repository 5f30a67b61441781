package renewal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/plankit/plankit/pkg/subscription"
)

// Source supplies subscriptions that may need attention: anything open or
// recently past its end date. The worker classifies each candidate itself,
// so the query can stay coarse (for example "end_date > now - 30d").
type Source interface {
	Candidates(ctx context.Context, at time.Time) ([]subscription.Subscription, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, at time.Time) ([]subscription.Subscription, error)

func (f SourceFunc) Candidates(ctx context.Context, at time.Time) ([]subscription.Subscription, error) {
	return f(ctx, at)
}

// Worker periodically sweeps candidate subscriptions and drives the
// unattended parts of the lifecycle: auto-renewal inside the renewal window,
// stamping grace periods on rows past their end date, and will-expire
// notifications ahead of the end date.
//
// Candidates are processed sequentially within a sweep and sweeps never
// overlap, which satisfies AutoRenew's single-flight requirement without
// extra locking.
type Worker struct {
	svc      subscription.Service
	source   Source
	sink     subscription.Sink
	clock    subscription.Clock
	log      *slog.Logger
	interval time.Duration
	warnDays int

	warned map[uuid.UUID]time.Time // last will-expire notification per subscription
}

// New creates a renewal worker over the subscription service and a
// candidate source.
func New(svc subscription.Service, source Source, opts ...Option) (*Worker, error) {
	if svc == nil {
		return nil, ErrNilService
	}
	if source == nil {
		return nil, ErrNilSource
	}

	o := &options{
		interval: time.Hour,
		warnDays: 7,
		clock:    subscription.ClockFunc(func() time.Time { return time.Now().UTC() }),
		sink:     subscription.NopSink{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Worker{
		svc:      svc,
		source:   source,
		sink:     o.sink,
		clock:    o.clock,
		log:      o.logger,
		interval: o.interval,
		warnDays: o.warnDays,
		warned:   make(map[uuid.UUID]time.Time),
	}, nil
}

// Run sweeps immediately, then on every tick until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.InfoContext(ctx, "renewal worker shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of candidates. Exported so deployments driven by
// an external scheduler (cron, queue) can invoke single passes directly.
func (w *Worker) Sweep(ctx context.Context) {
	now := w.clock.Now()

	candidates, err := w.source.Candidates(ctx, now)
	if err != nil {
		w.log.ErrorContext(ctx, "failed to load renewal candidates", slog.Any("error", err))
		return
	}

	for i := range candidates {
		w.process(ctx, &candidates[i], now)
	}
	w.pruneWarned(now)
}

// pruneWarned drops dedup entries older than the warning window. Entries for
// subscriptions that expired un-renewed would otherwise accumulate for the
// lifetime of the worker.
func (w *Worker) pruneWarned(now time.Time) {
	horizon := time.Duration(w.warnDays) * 24 * time.Hour
	for id, last := range w.warned {
		if now.Sub(last) > horizon {
			delete(w.warned, id)
		}
	}
}

func (w *Worker) process(ctx context.Context, subn *subscription.Subscription, now time.Time) {
	switch {
	case subn.ShouldAutoRenewAt(now):
		if renewed := w.svc.AutoRenew(ctx, subn); renewed != nil {
			w.log.InfoContext(ctx, "subscription auto-renewed",
				slog.String("subscription_id", subn.ID.String()),
				slog.String("successor_id", renewed.ID.String()),
				slog.Time("new_end_date", renewed.EndDate))
			delete(w.warned, subn.ID)
		}

	case subn.GraceEndsAt == nil && subn.GraceDays > 0 && !subn.EndDate.After(now):
		if err := w.svc.EnterGracePeriod(ctx, subn); err != nil {
			w.log.ErrorContext(ctx, "failed to enter grace period",
				slog.String("subscription_id", subn.ID.String()),
				slog.Any("error", err))
		}

	default:
		w.maybeWarnExpiring(ctx, subn, now)
	}
}

// maybeWarnExpiring emits a will-expire notification at most once per day
// per subscription while it is inside the warning window. Auto-renewing
// subscriptions are handled by the renewal branch and never reach here in
// their final week.
func (w *Worker) maybeWarnExpiring(ctx context.Context, subn *subscription.Subscription, now time.Time) {
	if w.warnDays == 0 {
		return
	}
	if !subn.EndDate.After(now) {
		return
	}

	daysLeft := subn.RemainingDaysAt(now)
	if daysLeft > w.warnDays {
		return
	}
	if last, ok := w.warned[subn.ID]; ok && now.Sub(last) < 24*time.Hour {
		return
	}

	w.warned[subn.ID] = now
	w.sink.Emit(ctx, subscription.Event{
		Name:         subscription.EventSubscriptionWillExpire,
		Subscription: subn,
		DaysLeft:     daysLeft,
	})
}
