package subscription

import "github.com/google/uuid"

// Metric represents a countable resource governed by a per-plan limit.
type Metric string

const (
	MetricProducts  Metric = "products"
	MetricStorage   Metric = "storage" // Measured in GB
	MetricEmployees Metric = "employees"
	MetricUsers     Metric = "users"
	MetricMaterials Metric = "materials"
)

const (
	// Unlimited indicates no limit for a metric (-1 chosen for SQL compatibility)
	Unlimited int64 = -1
)

// Module represents a plan-specific capability that can be enabled/disabled.
type Module string

const (
	ModulePayroll     Module = "payroll"
	ModuleAutoInvoice Module = "auto_invoice"
)

// Status represents the stored state of a subscription. Grace and expired
// states are derived from dates, never stored.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

// Subscriber is the capability a subscription owner must provide. The engine
// only needs an opaque identity plus a kind discriminator for cache-key
// namespacing; it never inspects the owner beyond these two values.
type Subscriber interface {
	SubscriberID() uuid.UUID
	SubscriberKind() string
}

// SubscriberRef is a plain value implementation of Subscriber for callers
// that don't want to implement the interface on their own domain types.
type SubscriberRef struct {
	ID   uuid.UUID
	Kind string
}

func (r SubscriberRef) SubscriberID() uuid.UUID { return r.ID }
func (r SubscriberRef) SubscriberKind() string  { return r.Kind }

// RenewalQuote is the pure pricing computation for a renewal period.
type RenewalQuote struct {
	OriginalPrice      float64
	DiscountPercentage float64
	FinalPrice         float64
}
