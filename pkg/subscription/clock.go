package subscription

import "time"

// Clock abstracts the current time so date-boundary behavior (trial expiry,
// grace windows, renewal windows) is deterministic under test.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// systemClock is the default Clock returning time.Now in UTC.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
