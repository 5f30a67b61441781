package renewal

import "errors"

var (
	ErrNilService = errors.New("subscription service is required")
	ErrNilSource  = errors.New("candidate source is required")
)
