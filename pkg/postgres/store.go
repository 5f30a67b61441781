package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plankit/plankit/pkg/pg"
	"github.com/plankit/plankit/pkg/subscription"
)

// querier is the query subset shared by *pgxpool.Pool and pgx.Tx, letting
// every store method run against either.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL-backed subscription store. The
// one-open-subscription-per-subscriber invariant is carried by a partial
// unique index, and usage counters are updated through single guarded
// statements, so correctness does not depend on application-level locking.
type Store struct {
	pool *pgxpool.Pool
	db   querier
}

var _ subscription.Store = (*Store)(nil)

// New creates a Store over an established connection pool.
// Panics if pool is nil to fail fast during initialization.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("postgres: connection pool is required")
	}
	return &Store{pool: pool, db: pool}
}

const subscriptionColumns = `id, subscriber_id, subscriber_kind, plan_slug, plan_limits, plan_modules,
	period_months, price, original_price, period_discount, status, start_date, end_date,
	trial_ends_at, canceled_at, grace_days, grace_ends_at, previous_id, prorated_credit,
	created_at, updated_at, deleted_at`

func (s *Store) ActiveSubscription(ctx context.Context, sub subscription.Subscriber, at time.Time) (*subscription.Subscription, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE subscriber_kind = $1 AND subscriber_id = $2
		  AND deleted_at IS NULL
		  AND status IN ('active', 'trialing')
		  AND end_date > $3
		ORDER BY created_at DESC
		LIMIT 1`,
		sub.SubscriberKind(), sub.SubscriberID(), at)

	subn, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return subn, nil
}

func (s *Store) History(ctx context.Context, sub subscription.Subscriber) ([]subscription.Subscription, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE subscriber_kind = $1 AND subscriber_id = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC`,
		sub.SubscriberKind(), sub.SubscriberID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []subscription.Subscription
	for rows.Next() {
		subn, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *subn)
	}
	return history, rows.Err()
}

func (s *Store) GetSubscription(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE id = $1 AND deleted_at IS NULL`,
		id)

	subn, err := scanSubscription(row)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return subn, nil
}

func (s *Store) CreateSubscription(ctx context.Context, subn *subscription.Subscription) error {
	limits, modules, err := encodeFrozen(subn)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)`,
		subn.ID, subn.SubscriberID, subn.SubscriberKind, subn.PlanSlug, limits, modules,
		subn.PeriodMonths, subn.Price, subn.OriginalPrice, subn.PeriodDiscount, subn.Status,
		subn.StartDate, subn.EndDate, subn.TrialEndsAt, subn.CanceledAt, subn.GraceDays,
		subn.GraceEndsAt, subn.PreviousID, subn.ProratedCredit, subn.CreatedAt, subn.UpdatedAt, subn.DeletedAt)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(subscription.ErrSubscriptionConflict, err)
	}
	return err
}

func (s *Store) UpdateSubscription(ctx context.Context, subn *subscription.Subscription) error {
	limits, modules, err := encodeFrozen(subn)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE subscriptions
		SET plan_slug = $2, plan_limits = $3, plan_modules = $4, period_months = $5,
		    price = $6, original_price = $7, period_discount = $8, status = $9,
		    start_date = $10, end_date = $11, trial_ends_at = $12, canceled_at = $13,
		    grace_days = $14, grace_ends_at = $15, previous_id = $16,
		    prorated_credit = $17, updated_at = $18, deleted_at = $19
		WHERE id = $1`,
		subn.ID, subn.PlanSlug, limits, modules, subn.PeriodMonths,
		subn.Price, subn.OriginalPrice, subn.PeriodDiscount, subn.Status,
		subn.StartDate, subn.EndDate, subn.TrialEndsAt, subn.CanceledAt,
		subn.GraceDays, subn.GraceEndsAt, subn.PreviousID,
		subn.ProratedCredit, subn.UpdatedAt, subn.DeletedAt)
	if pg.IsDuplicateKeyError(err) {
		return errors.Join(subscription.ErrSubscriptionConflict, err)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) UsageRecord(ctx context.Context, subscriptionID uuid.UUID, metric subscription.Metric) (*subscription.UsageRecord, error) {
	var record subscription.UsageRecord
	err := s.db.QueryRow(ctx, `
		SELECT subscription_id, metric, used, reset_at, created_at, updated_at
		FROM subscription_usage
		WHERE subscription_id = $1 AND metric = $2`,
		subscriptionID, string(metric)).
		Scan(&record.SubscriptionID, &record.Metric, &record.Used, &record.ResetAt, &record.CreatedAt, &record.UpdatedAt)
	if pg.IsNotFoundError(err) {
		return nil, subscription.ErrUsageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// IncrementUsage adds amount to the counter in a single guarded upsert: the
// WHERE clauses keep the row (or its creation) from crossing a non-negative
// limit, so concurrent increments serialize on the row and the ceiling holds
// without a prior read.
func (s *Store) IncrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric subscription.Metric, amount, limit int64) (int64, error) {
	var used int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO subscription_usage (subscription_id, metric, used)
		SELECT $1, $2, $3::bigint
		WHERE $4::bigint < 0 OR $3::bigint <= $4::bigint
		ON CONFLICT (subscription_id, metric) DO UPDATE
		SET used = subscription_usage.used + EXCLUDED.used,
		    updated_at = now()
		WHERE $4::bigint < 0 OR subscription_usage.used + EXCLUDED.used <= $4::bigint
		RETURNING used`,
		subscriptionID, string(metric), amount, limit).Scan(&used)
	if pg.IsNotFoundError(err) {
		// Guard rejected the write; report the untouched counter.
		current, readErr := s.currentUsed(ctx, subscriptionID, metric)
		if readErr != nil {
			return 0, errors.Join(subscription.ErrUsageLimitExceeded, readErr)
		}
		return current, subscription.ErrUsageLimitExceeded
	}
	if err != nil {
		return 0, err
	}
	return used, nil
}

// DecrementUsage subtracts amount, refusing to cross zero: the WHERE clause
// only matches a row with enough headroom, and no match means the decrement
// is rejected whole.
func (s *Store) DecrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric subscription.Metric, amount int64) (int64, error) {
	var used int64
	err := s.db.QueryRow(ctx, `
		UPDATE subscription_usage
		SET used = used - $3, updated_at = now()
		WHERE subscription_id = $1 AND metric = $2 AND used >= $3
		RETURNING used`,
		subscriptionID, string(metric), amount).Scan(&used)
	if pg.IsNotFoundError(err) {
		return 0, subscription.ErrCannotDecreaseUsage
	}
	if err != nil {
		return 0, err
	}
	return used, nil
}

func (s *Store) ResetUsage(ctx context.Context, subscriptionID uuid.UUID, metric *subscription.Metric, at time.Time) error {
	var metricFilter *string
	if metric != nil {
		m := string(*metric)
		metricFilter = &m
	}

	_, err := s.db.Exec(ctx, `
		UPDATE subscription_usage
		SET used = 0, reset_at = $3, updated_at = now()
		WHERE subscription_id = $1 AND ($2::text IS NULL OR metric = $2)`,
		subscriptionID, metricFilter, at)
	return err
}

// InTransaction runs fn inside a database transaction. Nested calls join the
// surrounding transaction instead of opening a savepoint.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx subscription.Store) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	if err := fn(ctx, &Store{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) currentUsed(ctx context.Context, subscriptionID uuid.UUID, metric subscription.Metric) (int64, error) {
	var used int64
	err := s.db.QueryRow(ctx, `
		SELECT used FROM subscription_usage
		WHERE subscription_id = $1 AND metric = $2`,
		subscriptionID, string(metric)).Scan(&used)
	if pg.IsNotFoundError(err) {
		return 0, nil
	}
	return used, err
}

func encodeFrozen(subn *subscription.Subscription) ([]byte, []byte, error) {
	limits, err := json.Marshal(subn.PlanLimits)
	if err != nil {
		return nil, nil, err
	}
	modules, err := json.Marshal(subn.PlanModules)
	if err != nil {
		return nil, nil, err
	}
	return limits, modules, nil
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		subn    subscription.Subscription
		limits  []byte
		modules []byte
	)
	err := row.Scan(
		&subn.ID, &subn.SubscriberID, &subn.SubscriberKind, &subn.PlanSlug, &limits, &modules,
		&subn.PeriodMonths, &subn.Price, &subn.OriginalPrice, &subn.PeriodDiscount, &subn.Status,
		&subn.StartDate, &subn.EndDate, &subn.TrialEndsAt, &subn.CanceledAt, &subn.GraceDays,
		&subn.GraceEndsAt, &subn.PreviousID, &subn.ProratedCredit,
		&subn.CreatedAt, &subn.UpdatedAt, &subn.DeletedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(limits, &subn.PlanLimits); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(modules, &subn.PlanModules); err != nil {
		return nil, err
	}
	return &subn, nil
}
