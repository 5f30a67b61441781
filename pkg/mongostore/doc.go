// Package mongostore implements the subscription engine's store port on
// MongoDB using the official driver.
//
// The document layout mirrors the PostgreSQL schema: one collection for
// subscriptions (with frozen limits and modules embedded) and one for usage
// counters. The single-open-subscription invariant is enforced by a partial
// unique index over a denormalized "open" flag, and counter updates run as
// guarded findAndModify operations so limits hold under concurrency.
//
// # Usage
//
//	db, err := mongo.NewWithDatabase(ctx, cfg, "billing")
//	if err != nil {
//		return err
//	}
//
//	store := mongostore.New(db)
//	if err := store.EnsureIndexes(ctx); err != nil {
//		return err
//	}
//
//	svc := subscription.NewService(catalog, store)
//
// Multi-document transactions require a replica set; on a standalone server
// InTransaction fails when the session starts.
package mongostore
