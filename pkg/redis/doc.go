// Package redis provides helpers for connecting to a Redis server and a
// Redis-backed cache adapter for the subscription engine.
//
// The package wraps the go-redis client and adds:
//
//   - A robust Connect that retries the connection using the supplied
//     configuration.
//   - A Cache adapter satisfying the subscription engine's cache port, so
//     active-subscription and usage lookups are shared (and invalidated)
//     across every instance of the application.
//   - A health-check helper for liveness and readiness probes.
//
// Configuration is described by the Config struct whose fields are populated
// from environment variables via github.com/caarlos0/env.
//
// # Usage
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//
//	svc := subscription.NewService(catalog, store,
//		subscription.WithCache(redis.NewCache(client)),
//	)
package redis
