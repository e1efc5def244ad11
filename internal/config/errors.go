package config

import "errors"

var (
	// ErrInvalidConfig is returned when a required setting is missing or out of range
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDuplicateRemediation is returned when an alert is mapped more than once
	ErrDuplicateRemediation = errors.New("duplicate remediation for alert")
)
