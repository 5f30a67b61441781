// Package logger builds configured slog.Logger instances with environment
// presets, static attributes, and context-driven attribute injection.
//
// # Usage
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.Env, "billing"),
//		logger.WithContextValue("request_id", requestIDKey),
//	)
//	log.InfoContext(ctx, "subscription renewed",
//		logger.SubscriptionID(sub.ID),
//		logger.PlanSlug(sub.PlanSlug),
//	)
//
// Context extractors run at Handle time, so request-scoped values such as
// request IDs appear on every record logged with that context without the
// call sites passing them explicitly.
//
// The attribute constructors (SubscriberID, PlanSlug, Metric, ...) keep key
// names consistent across packages so records can be correlated in log
// aggregation systems.
package logger
