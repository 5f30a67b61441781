package subscription

import "log/slog"

// ServiceOption configures a Service instance.
type ServiceOption func(*service)

// WithClock replaces the system clock. Use this in tests to pin the current
// time and exercise date-boundary behavior deterministically.
func WithClock(clock Clock) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithCache supplies the memoization layer for hot read paths.
// Default is NopCache, which caches nothing.
func WithCache(cache Cache) ServiceOption {
	return func(s *service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithSink supplies the event sink for lifecycle and usage notifications.
// Default is NopSink.
func WithSink(sink Sink) ServiceOption {
	return func(s *service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithConfig overrides the engine defaults (cache TTLs, trial/grace days).
func WithConfig(cfg Config) ServiceOption {
	return func(s *service) {
		s.cfg = cfg.withDefaults()
	}
}

// WithLogger sets the logger used for cache write failures and other
// non-fatal conditions the engine swallows by design.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *service) {
		if log != nil {
			s.log = log
		}
	}
}
