package dispatcher

import "errors"

var (
	// ErrInvalidAlert is returned when an alert entry of a batch is not an object
	ErrInvalidAlert = errors.New("invalid alert entry")
)
