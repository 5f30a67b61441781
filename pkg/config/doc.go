// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Every package that needs configuration declares its own struct with `env`
// tags (see pg.Config, redis.Config, mongo.Config, subscription.Config) and
// loads it through this package. Parsing happens once per type per process;
// repeated loads are served from an in-memory cache.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
// MustLoad panics instead of returning the error, for configuration the
// process cannot run without. LoadEnv loads additional .env files before
// parsing; the process environment always takes precedence.
package config
