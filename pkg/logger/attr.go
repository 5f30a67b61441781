package logger

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Group creates a nested attribute group.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return slog.Group(name, args...)
}

// Error creates an attribute for a single error, tolerating nil.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}

// Errors creates an attribute for multiple errors, skipping nils.
func Errors(errs ...error) slog.Attr {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	if len(msgs) == 0 {
		return slog.Attr{}
	}
	return slog.Any("errors", msgs)
}

// SubscriberID tags a record with the subscriber the operation acts on.
func SubscriberID(id uuid.UUID) slog.Attr {
	return slog.String("subscriber_id", id.String())
}

// SubscriptionID tags a record with a specific subscription.
func SubscriptionID(id uuid.UUID) slog.Attr {
	return slog.String("subscription_id", id.String())
}

// PlanSlug tags a record with the plan involved in the operation.
func PlanSlug(slug string) slog.Attr {
	return slog.String("plan", slug)
}

// Metric tags a record with a usage metric name.
func Metric(name string) slog.Attr {
	return slog.String("metric", name)
}

// Event tags a record with a lifecycle event name.
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Component identifies the subsystem emitting the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Duration records elapsed time in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64("duration_ms", d.Milliseconds())
}

// RetryCount records how many attempts an operation has made.
func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}
