package worker

import (
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/514-labs/moosestack/engine/schema"
	"github.com/514-labs/moosestack/engine/task"
	"github.com/514-labs/moosestack/pkg/tasklog"
	"go.temporal.io/sdk/temporal"
)

// Application error types reported to the orchestrator. Resolution and
// validation failures are deterministic and never retried.
const (
	ErrTypeResolution = "ResolutionError"
	ErrTypeValidation = "ValidationError"
	ErrTypeHandler    = "HandlerError"
)

func packageSuccess(taskName string, value any) *task.Result {
	return &task.Result{Task: taskName, Data: value}
}

// packageFailure converts a non-cancellation error into the application
// error returned to the orchestrator and emits its single error record.
func (e *Executor) packageFailure(identity string, err error) error {
	failure := &task.Failure{
		Error:     task.FailureMessage,
		Details:   err.Error(),
		Traceback: traceback(err),
	}
	payload := failure.JSON()
	e.emitter.Log(identity, tasklog.LevelError, payload)
	errType, nonRetryable := classifyFailure(err)
	return temporal.NewApplicationErrorWithOptions(payload, errType, temporal.ApplicationErrorOptions{
		NonRetryable: nonRetryable,
		Cause:        err,
	})
}

// classifyFailure returns the error type name and whether a retry could
// ever succeed. Unknown names and bad input are deterministic.
func classifyFailure(err error) (string, bool) {
	switch {
	case errors.Is(err, task.ErrResolution):
		return ErrTypeResolution, true
	case errors.Is(err, schema.ErrValidation):
		return ErrTypeValidation, true
	default:
		return ErrTypeHandler, false
	}
}

func traceback(err error) string {
	var handlerErr *task.HandlerError
	if errors.As(err, &handlerErr) && len(handlerErr.Stack) > 0 {
		return fmt.Sprintf("%s\n%s", err.Error(), handlerErr.Stack)
	}
	var b strings.Builder
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		fmt.Fprintf(&b, "%T: %s\n", cur, cur.Error())
	}
	b.Write(debug.Stack())
	return b.String()
}
