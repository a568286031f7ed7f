package app

import (
	"errors"
	"fmt"
)

// TaskPhase is the point in a task's life at which it failed.
type TaskPhase string

const (
	// PhaseSubmit failures happen before the task is queued.
	PhaseSubmit TaskPhase = "submit"

	// PhaseSetup failures happen while installing the captured context.
	// The task body never ran.
	PhaseSetup TaskPhase = "setup"

	// PhaseRun failures come from the task body.
	PhaseRun TaskPhase = "run"
)

// TaskError wraps errors with the phase and task where they occurred.
type TaskError struct {
	Phase  TaskPhase
	TaskID string
	Cause  error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s %s failed: %v", e.TaskID, e.Phase, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// IsStartFailure reports whether err means the task was aborted before its
// body ran, either at submission or while installing its context.
func IsStartFailure(err error) bool {
	phase, ok := GetTaskPhase(err)
	return ok && (phase == PhaseSubmit || phase == PhaseSetup)
}

// GetTaskPhase extracts the phase from a task error.
func GetTaskPhase(err error) (TaskPhase, bool) {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr.Phase, true
	}

	return "", false
}
