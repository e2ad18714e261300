package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrTriggerNotFound indicates a trigger was not found by the given identifier.
	ErrTriggerNotFound = errors.New("trigger not found")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrStageNotFound indicates a stage was not found by the given identifier.
	ErrStageNotFound = errors.New("stage not found")

	// ErrStepNotFound indicates a step was not found by the given identifier.
	ErrStepNotFound = errors.New("step not found")

	// ErrTaskNotFound indicates a task was not found by the given identifier.
	ErrTaskNotFound = errors.New("task not found")

	// ErrSubtaskNotFound indicates a subtask was not found by the given identifier.
	ErrSubtaskNotFound = errors.New("subtask not found")

	// ErrChecklistItemNotFound indicates a checklist item was not found.
	ErrChecklistItemNotFound = errors.New("checklist item not found")

	// ErrAssignmentNotFound indicates an assignment was not found.
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// TriggerError wraps trigger-related errors with operation context.
type TriggerError struct {
	Op        string // Operation being performed (e.g., "AcquireLock", "Save")
	TriggerID string
	Err       error
}

func (e *TriggerError) Error() string {
	return fmt.Sprintf("%s operation failed for trigger %s: %v", e.Op, e.TriggerID, e.Err)
}

func (e *TriggerError) Unwrap() error {
	return e.Err
}

func (e *TriggerError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewTriggerError creates a new trigger error with context.
func NewTriggerError(op, triggerID string, err error) *TriggerError {
	return &TriggerError{Op: op, TriggerID: triggerID, Err: err}
}

// IsNotFound checks whether an error is any of the not-found sentinels.
func IsNotFound(err error) bool {
	for _, sentinel := range []error{
		ErrTriggerNotFound,
		ErrWorkflowNotFound,
		ErrStageNotFound,
		ErrStepNotFound,
		ErrTaskNotFound,
		ErrSubtaskNotFound,
		ErrChecklistItemNotFound,
		ErrAssignmentNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}
