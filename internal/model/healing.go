package model

import "time"

// Outcome represents the classification of one remediation attempt
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomeTimeout Outcome = "TIMEOUT"
	OutcomeError   Outcome = "ERROR"
	// OutcomeNotFound is never written to the healing-actions log
	OutcomeNotFound Outcome = "NOT_FOUND"
)

// Recorded reports whether the outcome produces a healing action record
func (o Outcome) Recorded() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailed, OutcomeTimeout, OutcomeError:
		return true
	default:
		return false
	}
}

// RemediationResult represents the outcome of one remediation invocation
type RemediationResult struct {
	AlertName string        `json:"alert_name"`
	Playbook  string        `json:"playbook"`
	Outcome   Outcome       `json:"outcome"`
	Detail    string        `json:"detail"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// Err is the underlying cause for every outcome except SUCCESS
	Err error `json:"-"`
}

// HealingAction is the audit entry persisted for every recorded remediation
type HealingAction struct {
	Timestamp string  `json:"timestamp"`
	AlertName string  `json:"alert_name"`
	Status    Outcome `json:"status"`
	Details   string  `json:"details"`
}

// TimestampFormat is the ISO-8601 layout used for audit records and health responses
const TimestampFormat = time.RFC3339Nano
