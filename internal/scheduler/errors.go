package scheduler

import "errors"

var (
	// ErrInvalidRetention is returned when the retention window is not positive
	ErrInvalidRetention = errors.New("retention must be positive")
)
