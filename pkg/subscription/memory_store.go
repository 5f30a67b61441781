package subscription

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and prototyping. It enforces
// the same storage-boundary invariants as the real backends: at most one
// open (active/trialing) subscription per subscriber, unique usage rows per
// (subscription, metric), atomic guarded increments, and all-or-nothing
// transactions (implemented by snapshotting state and restoring on error).
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

type usageRowKey struct {
	subscriptionID uuid.UUID
	metric         Metric
}

type memoryState struct {
	subscriptions map[uuid.UUID]*Subscription
	usage         map[usageRowKey]*UsageRecord
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			subscriptions: make(map[uuid.UUID]*Subscription),
			usage:         make(map[usageRowKey]*UsageRecord),
		},
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) ActiveSubscription(ctx context.Context, sub Subscriber, at time.Time) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.activeSubscription(sub, at)
}

func (m *MemoryStore) History(ctx context.Context, sub Subscriber) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.history(sub)
}

func (m *MemoryStore) GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.getSubscription(id)
}

func (m *MemoryStore) CreateSubscription(ctx context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createSubscription(s)
}

func (m *MemoryStore) UpdateSubscription(ctx context.Context, s *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateSubscription(s)
}

func (m *MemoryStore) UsageRecord(ctx context.Context, subscriptionID uuid.UUID, metric Metric) (*UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.usageRecord(subscriptionID, metric)
}

func (m *MemoryStore) IncrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric Metric, amount, limit int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.incrementUsage(subscriptionID, metric, amount, limit)
}

func (m *MemoryStore) DecrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric Metric, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.decrementUsage(subscriptionID, metric, amount)
}

func (m *MemoryStore) ResetUsage(ctx context.Context, subscriptionID uuid.UUID, metric *Metric, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.resetUsage(subscriptionID, metric, at)
}

// InTransaction holds the store lock for the duration of fn, so concurrent
// callers serialize exactly like row locks would. On error the pre-tx
// snapshot is restored, leaving no partial writes behind.
func (m *MemoryStore) InTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(ctx, &memoryTx{state: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// memoryTx exposes the shared state without re-locking; the transaction
// already holds the store lock.
type memoryTx struct {
	state *memoryState
}

var _ Store = (*memoryTx)(nil)

func (t *memoryTx) ActiveSubscription(ctx context.Context, sub Subscriber, at time.Time) (*Subscription, error) {
	return t.state.activeSubscription(sub, at)
}

func (t *memoryTx) History(ctx context.Context, sub Subscriber) ([]Subscription, error) {
	return t.state.history(sub)
}

func (t *memoryTx) GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return t.state.getSubscription(id)
}

func (t *memoryTx) CreateSubscription(ctx context.Context, s *Subscription) error {
	return t.state.createSubscription(s)
}

func (t *memoryTx) UpdateSubscription(ctx context.Context, s *Subscription) error {
	return t.state.updateSubscription(s)
}

func (t *memoryTx) UsageRecord(ctx context.Context, subscriptionID uuid.UUID, metric Metric) (*UsageRecord, error) {
	return t.state.usageRecord(subscriptionID, metric)
}

func (t *memoryTx) IncrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric Metric, amount, limit int64) (int64, error) {
	return t.state.incrementUsage(subscriptionID, metric, amount, limit)
}

func (t *memoryTx) DecrementUsage(ctx context.Context, subscriptionID uuid.UUID, metric Metric, amount int64) (int64, error) {
	return t.state.decrementUsage(subscriptionID, metric, amount)
}

func (t *memoryTx) ResetUsage(ctx context.Context, subscriptionID uuid.UUID, metric *Metric, at time.Time) error {
	return t.state.resetUsage(subscriptionID, metric, at)
}

func (t *memoryTx) InTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	// Nested scopes join the outer transaction.
	return fn(ctx, t)
}

func (st *memoryState) activeSubscription(sub Subscriber, at time.Time) (*Subscription, error) {
	var newest *Subscription
	for _, row := range st.subscriptions {
		if row.DeletedAt != nil ||
			row.SubscriberID != sub.SubscriberID() ||
			row.SubscriberKind != sub.SubscriberKind() {
			continue
		}
		if row.Status != StatusActive && row.Status != StatusTrialing {
			continue
		}
		if !row.EndDate.After(at) {
			continue
		}
		if newest == nil || row.CreatedAt.After(newest.CreatedAt) {
			newest = row
		}
	}
	if newest == nil {
		return nil, ErrSubscriptionNotFound
	}
	return cloneSubscription(newest), nil
}

func (st *memoryState) history(sub Subscriber) ([]Subscription, error) {
	var rows []Subscription
	for _, row := range st.subscriptions {
		if row.DeletedAt != nil ||
			row.SubscriberID != sub.SubscriberID() ||
			row.SubscriberKind != sub.SubscriberKind() {
			continue
		}
		rows = append(rows, *cloneSubscription(row))
	}
	slices.SortFunc(rows, func(a, b Subscription) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return rows, nil
}

func (st *memoryState) getSubscription(id uuid.UUID) (*Subscription, error) {
	row, ok := st.subscriptions[id]
	if !ok || row.DeletedAt != nil {
		return nil, ErrSubscriptionNotFound
	}
	return cloneSubscription(row), nil
}

func (st *memoryState) createSubscription(s *Subscription) error {
	if _, exists := st.subscriptions[s.ID]; exists {
		return ErrSubscriptionConflict
	}
	if s.Status == StatusActive || s.Status == StatusTrialing {
		for _, row := range st.subscriptions {
			if row.DeletedAt == nil &&
				row.SubscriberID == s.SubscriberID &&
				row.SubscriberKind == s.SubscriberKind &&
				(row.Status == StatusActive || row.Status == StatusTrialing) {
				return ErrSubscriptionConflict
			}
		}
	}
	st.subscriptions[s.ID] = cloneSubscription(s)
	return nil
}

func (st *memoryState) updateSubscription(s *Subscription) error {
	if _, ok := st.subscriptions[s.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	st.subscriptions[s.ID] = cloneSubscription(s)
	return nil
}

func (st *memoryState) usageRecord(subscriptionID uuid.UUID, metric Metric) (*UsageRecord, error) {
	row, ok := st.usage[usageRowKey{subscriptionID, metric}]
	if !ok {
		return nil, ErrUsageNotFound
	}
	clone := *row
	return &clone, nil
}

func (st *memoryState) incrementUsage(subscriptionID uuid.UUID, metric Metric, amount, limit int64) (int64, error) {
	key := usageRowKey{subscriptionID, metric}
	row, ok := st.usage[key]
	if !ok {
		row = &UsageRecord{SubscriptionID: subscriptionID, Metric: metric}
	}
	newUsed := row.Used + amount
	if limit >= 0 && newUsed > limit {
		return row.Used, ErrUsageLimitExceeded
	}
	updated := *row
	updated.Used = newUsed
	st.usage[key] = &updated
	return newUsed, nil
}

func (st *memoryState) decrementUsage(subscriptionID uuid.UUID, metric Metric, amount int64) (int64, error) {
	key := usageRowKey{subscriptionID, metric}
	row, ok := st.usage[key]
	if !ok || row.Used < amount {
		return 0, ErrCannotDecreaseUsage
	}
	updated := *row
	updated.Used -= amount
	st.usage[key] = &updated
	return updated.Used, nil
}

func (st *memoryState) resetUsage(subscriptionID uuid.UUID, metric *Metric, at time.Time) error {
	for key, row := range st.usage {
		if key.subscriptionID != subscriptionID {
			continue
		}
		if metric != nil && key.metric != *metric {
			continue
		}
		updated := *row
		updated.Used = 0
		resetAt := at
		updated.ResetAt = &resetAt
		st.usage[key] = &updated
	}
	return nil
}

func (st *memoryState) clone() *memoryState {
	out := &memoryState{
		subscriptions: make(map[uuid.UUID]*Subscription, len(st.subscriptions)),
		usage:         make(map[usageRowKey]*UsageRecord, len(st.usage)),
	}
	for id, row := range st.subscriptions {
		out.subscriptions[id] = cloneSubscription(row)
	}
	for key, row := range st.usage {
		clone := *row
		out.usage[key] = &clone
	}
	return out
}

func cloneSubscription(s *Subscription) *Subscription {
	clone := *s
	clone.PlanLimits = freezeLimits(s.PlanLimits)
	clone.PlanModules = slices.Clone(s.PlanModules)
	clone.TrialEndsAt = cloneTime(s.TrialEndsAt)
	clone.CanceledAt = cloneTime(s.CanceledAt)
	clone.GraceEndsAt = cloneTime(s.GraceEndsAt)
	clone.DeletedAt = cloneTime(s.DeletedAt)
	if s.PreviousID != nil {
		id := *s.PreviousID
		clone.PreviousID = &id
	}
	return &clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
