package executor

import "errors"

var (
	// ErrPlaybookNotFound is returned when the mapped playbook does not exist
	ErrPlaybookNotFound = errors.New("playbook not found")

	// ErrTimeout is returned when a playbook exceeds the execution timeout
	ErrTimeout = errors.New("playbook execution timed out")

	// ErrAborted is returned when a playbook is stopped during shutdown
	ErrAborted = errors.New("playbook execution aborted")
)
