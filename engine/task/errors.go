package task

import (
	"errors"
	"fmt"
)

var (
	ErrResolution = errors.New("task resolution failed")
	ErrHandler    = errors.New("task handler failed")
)

// ResolutionError reports an unknown workflow or task name.
type ResolutionError struct {
	WorkflowName string
	TaskName     string
}

func (e *ResolutionError) Error() string {
	if e.TaskName == "" {
		return fmt.Sprintf("Workflow %s not found", e.WorkflowName)
	}
	return fmt.Sprintf("Task %s not found in workflow %s", e.TaskName, e.WorkflowName)
}

func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

// HandlerError wraps any non-cancellation failure raised by a handler,
// including recovered panics.
type HandlerError struct {
	Task  string
	Cause error
	// Stack is set when the error comes from a recovered panic.
	Stack []byte
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Cause)
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

func (e *HandlerError) Is(target error) bool {
	return target == ErrHandler
}

// NewPanicError converts a recovered panic value into a HandlerError.
func NewPanicError(taskName string, recovered any, stack []byte) *HandlerError {
	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("panic: %v", recovered)
	} else {
		cause = fmt.Errorf("panic: %w", cause)
	}
	return &HandlerError{Task: taskName, Cause: cause, Stack: stack}
}
