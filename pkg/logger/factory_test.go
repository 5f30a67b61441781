package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankit/plankit/pkg/logger"
)

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))

	log.Info("renewal sweep complete")
	record := decodeRecord(t, &buf)

	assert.Equal(t, "renewal sweep complete", record["msg"])
	assert.Equal(t, "INFO", record["level"])
}

func TestNew_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithLevel(slog.LevelWarn),
	)

	log.Info("filtered out")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithFormat(logger.FormatText),
	)

	log.Info("usage recorded")
	assert.True(t, strings.Contains(buf.String(), "msg=\"usage recorded\""))
}

func TestWithFormat_InvalidPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		logger.New(logger.WithFormat(logger.Format("xml")))
	})
}

func TestNew_StaticAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("service", "billing")),
	)

	log.Info("started")
	record := decodeRecord(t, &buf)
	assert.Equal(t, "billing", record["service"])
}

func TestNew_ContextValue(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextValue("request_id", ctxKey{}),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "req-42")
	log.InfoContext(ctx, "handled")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "req-42", record["request_id"])
}

func TestNew_ContextValueAbsent(t *testing.T) {
	t.Parallel()

	type ctxKey struct{}

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextValue("request_id", ctxKey{}),
	)

	log.InfoContext(context.Background(), "handled")

	record := decodeRecord(t, &buf)
	_, present := record["request_id"]
	assert.False(t, present)
}

func TestNew_ContextExtractors(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithContextExtractors(
			func(ctx context.Context) (slog.Attr, bool) {
				return slog.String("tenant", "acme"), true
			},
			nil, // nil extractors are ignored
		),
	)

	log.InfoContext(context.Background(), "handled")

	record := decodeRecord(t, &buf)
	assert.Equal(t, "acme", record["tenant"])
}

func TestWithEnvironment(t *testing.T) {
	t.Parallel()

	t.Run("production selects json and info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithEnvironment("production", "billing"),
		)

		log.Debug("suppressed")
		assert.Zero(t, buf.Len())

		log.Info("visible")
		record := decodeRecord(t, &buf)
		assert.Equal(t, "billing", record["service"])
		assert.Equal(t, "production", record["env"])
	})

	t.Run("development enables debug", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(
			logger.WithOutput(&buf),
			logger.WithEnvironment("development", "billing"),
		)

		log.Debug("visible in dev")
		assert.Contains(t, buf.String(), "visible in dev")
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))

	subID := uuid.New()
	subscriberID := uuid.New()

	log.Info("subscription renewed",
		logger.SubscriptionID(subID),
		logger.SubscriberID(subscriberID),
		logger.PlanSlug("pro"),
		logger.Metric("products"),
		logger.Event("subscription.renewed"),
		logger.Component("renewal"),
		logger.Duration(1500*time.Millisecond),
		logger.RetryCount(2),
	)

	record := decodeRecord(t, &buf)
	assert.Equal(t, subID.String(), record["subscription_id"])
	assert.Equal(t, subscriberID.String(), record["subscriber_id"])
	assert.Equal(t, "pro", record["plan"])
	assert.Equal(t, "products", record["metric"])
	assert.Equal(t, "subscription.renewed", record["event"])
	assert.Equal(t, "renewal", record["component"])
	assert.Equal(t, float64(1500), record["duration_ms"])
	assert.Equal(t, float64(2), record["retry_count"])
}

func TestErrorAttrs(t *testing.T) {
	t.Parallel()

	t.Run("single error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf))

		log.Error("renew failed", logger.Error(errors.New("card declined")))
		record := decodeRecord(t, &buf)
		assert.Equal(t, "card declined", record["error"])
	})

	t.Run("nil error is empty attr", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf))

		log.Info("ok", logger.Error(nil))
		record := decodeRecord(t, &buf)
		_, present := record["error"]
		assert.False(t, present)
	})

	t.Run("multiple errors skip nils", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf))

		log.Error("sweep finished with failures",
			logger.Errors(errors.New("first"), nil, errors.New("second")),
		)
		record := decodeRecord(t, &buf)
		assert.Equal(t, []any{"first", "second"}, record["errors"])
	})
}

func TestGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf))

	log.Info("quote",
		logger.Group("renewal",
			slog.String("plan", "pro"),
			slog.Int("period_months", 12),
		),
	)

	record := decodeRecord(t, &buf)
	group, ok := record["renewal"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "pro", group["plan"])
	assert.Equal(t, float64(12), group["period_months"])
}
