package subscription

import "context"

// EventName identifies a lifecycle or usage notification.
type EventName string

const (
	EventSubscriptionCreated      EventName = "subscription.created"
	EventSubscriptionCanceled     EventName = "subscription.canceled"
	EventSubscriptionUpgraded     EventName = "subscription.upgraded"
	EventSubscriptionRenewed      EventName = "subscription.renewed"
	EventAutoRenewalFailed        EventName = "subscription.auto_renewal_failed"
	EventSubscriptionEnteredGrace EventName = "subscription.entered_grace_period"
	EventSubscriptionWillExpire   EventName = "subscription.will_expire"
	EventUsageRecorded            EventName = "usage.recorded"
	EventUsageReset               EventName = "usage.reset"
	EventUsageLimitReached        EventName = "usage.limit_reached"
)

// Event is a one-way notification handed to the sink after the operation's
// transaction commits. Fields are populated per event name:
//
//	created/canceled/entered_grace: Subscription
//	upgraded/renewed:               Subscription (new), Previous (old)
//	auto_renewal_failed:            Subscription, Reason
//	will_expire:                    Subscription, DaysLeft
//	usage.*:                        Subscription, Metric, Used, Remaining/Limit
type Event struct {
	Name         EventName
	Subscription *Subscription
	Previous     *Subscription
	Metric       *Metric
	Used         int64
	Remaining    int64
	Limit        int64
	DaysLeft     int
	Reason       string
}

// Sink receives events fire-and-forget. Implementations must not block the
// calling goroutine for longer than a channel send or local append; slow
// delivery belongs behind the sink, not in the engine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, event Event) {}

// ChanSink forwards events to a channel, dropping them when the channel is
// full. Useful for tests and for bridging to an external bus.
type ChanSink struct {
	C chan Event
}

// NewChanSink creates a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{C: make(chan Event, buffer)}
}

func (s *ChanSink) Emit(ctx context.Context, event Event) {
	select {
	case s.C <- event:
	default:
	}
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }
