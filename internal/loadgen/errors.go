package loadgen

import "errors"

// Sentinel errors reported by a load run.
var (
	ErrUnhealthy    = errors.New("service unhealthy")
	ErrMismatch     = errors.New("result count mismatch")
	ErrReviewOrder  = errors.New("review queue out of order")
	ErrInvalidInput = errors.New("invalid load configuration")
)
