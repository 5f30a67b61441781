package subscription

import "errors"

var (
	// Validation errors: caller input is wrong, retrying without a fix is pointless.
	ErrPlanNotFound   = errors.New("subscription plan not found")
	ErrPlanNotActive  = errors.New("subscription plan is not active")
	ErrInvalidPeriod  = errors.New("invalid subscription period")
	ErrInvalidAmount  = errors.New("usage amount must be at least 1")
	ErrMetricNotFound = errors.New("metric not found in plan limits")

	// State-conflict errors: the subscription is not in a state that permits
	// the operation; callers must re-fetch current state before retrying.
	ErrAlreadySubscribed = errors.New("subscriber already has an authoritative subscription")
	ErrAlreadyCanceled   = errors.New("subscription is already canceled")
	ErrInvalidUpgrade    = errors.New("cannot upgrade to the same plan")
	ErrCannotRenew       = errors.New("subscription cannot be renewed")

	// Capacity errors.
	ErrUsageLimitExceeded  = errors.New("usage limit exceeded")
	ErrCannotDecreaseUsage = errors.New("cannot decrease usage below zero")

	// Integrity/transient errors: safe to retry with backoff after re-fetching.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUsageNotFound        = errors.New("usage record not found")
	ErrSubscriptionConflict = errors.New("concurrent subscription creation conflict")
)
