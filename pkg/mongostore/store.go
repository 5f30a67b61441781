package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/plankit/plankit/pkg/subscription"
)

const (
	subscriptionsCollection = "subscriptions"
	usageCollection         = "subscription_usage"
)

// Store is the MongoDB-backed subscription store. The
// one-open-subscription-per-subscriber invariant rides on a partial unique
// index over a maintained "open" flag, and usage counters are updated with
// guarded findAndModify filters, mirroring the PostgreSQL implementation.
//
// Transactions require a replica set or sharded deployment; standalone
// servers reject them.
type Store struct {
	client *mongo.Client
	subs   *mongo.Collection
	usage  *mongo.Collection
}

var _ subscription.Store = (*Store)(nil)

// New creates a Store over an established database handle.
// Panics if db is nil to fail fast during initialization.
func New(db *mongo.Database) *Store {
	if db == nil {
		panic("mongostore: database handle is required")
	}
	return &Store{
		client: db.Client(),
		subs:   db.Collection(subscriptionsCollection),
		usage:  db.Collection(usageCollection),
	}
}

// EnsureIndexes creates the indexes the store depends on. Safe to call on
// every startup; existing indexes are left untouched.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.subs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "subscriber_kind", Value: 1}, {Key: "subscriber_id", Value: 1}},
			Options: options.Index().
				SetName("one_open_per_subscriber").
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "open", Value: true}}),
		},
		{
			Keys: bson.D{
				{Key: "subscriber_kind", Value: 1},
				{Key: "subscriber_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("subscriber_history"),
		},
	})
	if err != nil {
		return err
	}

	_, err = s.usage.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "subscription_id", Value: 1}, {Key: "metric", Value: 1}},
		Options: options.Index().
			SetName("one_counter_per_metric").
			SetUnique(true),
	})
	return err
}

func (s *Store) ActiveSubscription(ctx context.Context, sub subscription.Subscriber, at time.Time) (*subscription.Subscription, error) {
	filter := bson.D{
		{Key: "subscriber_kind", Value: sub.SubscriberKind()},
		{Key: "subscriber_id", Value: sub.SubscriberID().String()},
		{Key: "deleted_at", Value: nil},
		{Key: "status", Value: bson.D{{Key: "$in", Value: bson.A{string(subscription.StatusActive), string(subscription.StatusTrialing)}}}},
		{Key: "end_date", Value: bson.D{{Key: "$gt", Value: at}}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc subscriptionDoc
	if err := s.subs.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return doc.toModel()
}

func (s *Store) History(ctx context.Context, sub subscription.Subscriber) ([]subscription.Subscription, error) {
	filter := bson.D{
		{Key: "subscriber_kind", Value: sub.SubscriberKind()},
		{Key: "subscriber_id", Value: sub.SubscriberID().String()},
		{Key: "deleted_at", Value: nil},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.subs.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var history []subscription.Subscription
	for cursor.Next(ctx) {
		var doc subscriptionDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		subn, err := doc.toModel()
		if err != nil {
			return nil, err
		}
		history = append(history, *subn)
	}
	return history, cursor.Err()
}

func (s *Store) GetSubscription(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	filter := bson.D{{Key: "_id", Value: id.String()}, {Key: "deleted_at", Value: nil}}

	var doc subscriptionDoc
	if err := s.subs.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return doc.toModel()
}

func (s *Store) CreateSubscription(ctx context.Context, subn *subscription.Subscription) error {
	_, err := s.subs.InsertOne(ctx, newSubscriptionDoc(subn))
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(subscription.ErrSubscriptionConflict, err)
	}
	return err
}

func (s *Store) UpdateSubscription(ctx context.Context, subn *subscription.Subscription) error {
	filter := bson.D{{Key: "_id", Value: subn.ID.String()}}
	res, err := s.subs.ReplaceOne(ctx, filter, newSubscriptionDoc(subn))
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(subscription.ErrSubscriptionConflict, err)
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) UsageRecord(ctx context.Context, subscriptionID uuid.UUID, metric subscription.Metric) (*subscription.UsageRecord, error) {
	filter := usageFilter(subscriptionID, metric)

	var doc usageDoc
	if err := s.usage.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, subscription.ErrUsageNotFound
		}
		return nil, err
	}
	return doc.toModel()
}

// IncrementUsage adds amount through a guarded findAndModify: the filter
// only matches a counter with enough headroom under a non-negative limit, so
// a concurrent increment can never push the value past the ceiling. A
// missing counter is created when the first increment itself fits.
func (s *Store) IncrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric subscription.Metric, amount, limit int64) (int64, error) {
	now := time.Now().UTC()
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "used", Value: amount}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	// Two passes cover the row appearing between the guarded update and the
	// insert; a second guard failure means the limit genuinely has no room.
	for attempt := 0; attempt < 2; attempt++ {
		filter := usageFilter(subscriptionID, metric)
		if limit >= 0 {
			filter = append(filter, bson.E{Key: "used", Value: bson.D{{Key: "$lte", Value: limit - amount}}})
		}

		var doc usageDoc
		err := s.usage.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if err == nil {
			return doc.Used, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return 0, err
		}

		// Either the counter does not exist yet or the guard rejected it.
		if limit >= 0 && amount > limit {
			break
		}
		_, err = s.usage.InsertOne(ctx, usageDoc{
			SubscriptionID: subscriptionID.String(),
			Metric:         string(metric),
			Used:           amount,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err == nil {
			return amount, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return 0, err
		}
	}

	current, err := s.currentUsed(ctx, subscriptionID, metric)
	if err != nil {
		return 0, errors.Join(subscription.ErrUsageLimitExceeded, err)
	}
	return current, subscription.ErrUsageLimitExceeded
}

// DecrementUsage subtracts amount, refusing to cross zero: the filter only
// matches a counter with used >= amount.
func (s *Store) DecrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric subscription.Metric, amount int64) (int64, error) {
	filter := append(usageFilter(subscriptionID, metric),
		bson.E{Key: "used", Value: bson.D{{Key: "$gte", Value: amount}}})
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "used", Value: -amount}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now().UTC()}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc usageDoc
	if err := s.usage.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, subscription.ErrCannotDecreaseUsage
		}
		return 0, err
	}
	return doc.Used, nil
}

func (s *Store) ResetUsage(ctx context.Context, subscriptionID uuid.UUID, metric *subscription.Metric, at time.Time) error {
	filter := bson.D{{Key: "subscription_id", Value: subscriptionID.String()}}
	if metric != nil {
		filter = append(filter, bson.E{Key: "metric", Value: string(*metric)})
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "used", Value: int64(0)},
		{Key: "reset_at", Value: at},
		{Key: "updated_at", Value: at},
	}}}

	_, err := s.usage.UpdateMany(ctx, filter, update)
	return err
}

// InTransaction runs fn inside a causally consistent multi-document
// transaction. Nested calls join the surrounding session.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context, tx subscription.Store) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx, s)
	}

	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx, s)
	})
	return err
}

func (s *Store) currentUsed(ctx context.Context, subscriptionID uuid.UUID, metric subscription.Metric) (int64, error) {
	var doc usageDoc
	err := s.usage.FindOne(ctx, usageFilter(subscriptionID, metric)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.Used, nil
}

func usageFilter(subscriptionID uuid.UUID, metric subscription.Metric) bson.D {
	return bson.D{
		{Key: "subscription_id", Value: subscriptionID.String()},
		{Key: "metric", Value: string(metric)},
	}
}
