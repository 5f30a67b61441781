package renewal

import (
	"log/slog"
	"time"

	"github.com/plankit/plankit/pkg/subscription"
)

// Option is a functional option for configuring the worker.
type Option func(*options)

type options struct {
	interval time.Duration
	warnDays int
	clock    subscription.Clock
	sink     subscription.Sink
	logger   *slog.Logger
}

// WithInterval sets how often the worker sweeps for candidates.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithWarnDays sets how many days before the end date the will-expire
// notification fires. Zero disables the notification.
func WithWarnDays(days int) Option {
	return func(o *options) {
		if days >= 0 {
			o.warnDays = days
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(clock subscription.Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithSink sets the event sink for will-expire notifications.
func WithSink(sink subscription.Sink) Option {
	return func(o *options) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithLogger sets the logger for the worker.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
