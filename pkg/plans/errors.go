package plans

import "errors"

var (
	ErrInvalidPlan       = errors.New("invalid plan definition")
	ErrMissingSlug       = errors.New("plan slug is required")
	ErrDuplicateSlug     = errors.New("duplicate plan slug")
	ErrDuplicatePeriod   = errors.New("duplicate billing period")
	ErrInvalidPeriod     = errors.New("billing period months must be positive")
	ErrNegativePrice     = errors.New("period price must not be negative")
	ErrInvalidDiscount   = errors.New("period discount must be between 0 and 100")
	ErrInvalidLimit      = errors.New("metric limit must be non-negative or -1 for unlimited")
	ErrNegativeTrialDays = errors.New("trial days must not be negative")
	ErrNegativeGraceDays = errors.New("grace days must not be negative")
	ErrFailedToReadFile  = errors.New("failed to read plans file")
	ErrFailedToParseFile = errors.New("failed to parse plans file")
)
