// Package pg provides utilities for interacting with PostgreSQL using the
// pgx/v5 driver: connection pooling with retries, embedded goose migrations,
// health checks, and common error helpers.
//
// The API surface is deliberately small; pgx and goose stay fully exposed so
// callers are never locked in.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, postgres.Migrations, "migrations", cfg, log); err != nil {
//		return err
//	}
//
// Error helpers translate driver errors into questions the persistence layer
// actually asks: IsNotFoundError, IsDuplicateKeyError,
// IsForeignKeyViolationError, IsTxClosedError.
package pg
