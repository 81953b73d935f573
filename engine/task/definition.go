package task

import (
	"context"
	"fmt"

	"github.com/514-labs/moosestack/engine/schema"
)

// -----------------------------------------------------------------------------
// Handler
// -----------------------------------------------------------------------------

// AsyncFunc is a cooperative handler. It runs on the invocation goroutine and
// is expected to return promptly once ctx is done.
type AsyncFunc func(ctx context.Context, tc *Context) (any, error)

// BlockingFunc is a handler that never observes cancellation. It is run on a
// dedicated goroutine so that heartbeats and cancellation keep flowing.
type BlockingFunc func(tc *Context) (any, error)

// Handler holds exactly one of an async or a blocking function.
type Handler struct {
	async    AsyncFunc
	blocking BlockingFunc
}

func Async(fn AsyncFunc) Handler {
	return Handler{async: fn}
}

func Blocking(fn BlockingFunc) Handler {
	return Handler{blocking: fn}
}

func (h Handler) IsZero() bool {
	return h.async == nil && h.blocking == nil
}

func (h Handler) IsBlocking() bool {
	return h.blocking != nil
}

// CallAsync invokes an async handler. It panics on a blocking handler.
func (h Handler) CallAsync(ctx context.Context, tc *Context) (any, error) {
	if h.async == nil {
		panic("task: CallAsync on a non-async handler")
	}
	return h.async(ctx, tc)
}

// CallBlocking invokes a blocking handler. It panics on an async handler.
func (h Handler) CallBlocking(tc *Context) (any, error) {
	if h.blocking == nil {
		panic("task: CallBlocking on a non-blocking handler")
	}
	return h.blocking(tc)
}

// -----------------------------------------------------------------------------
// Definition
// -----------------------------------------------------------------------------

// Definition describes one step of a workflow. Definitions are owned by the
// registry and must not be mutated once registered.
type Definition struct {
	Name     string
	Input    *schema.Type
	Run      Handler
	OnCancel Handler
}

func (d *Definition) Validate() error {
	if d == nil {
		return fmt.Errorf("task definition is nil")
	}
	if d.Name == "" {
		return fmt.Errorf("task name is required")
	}
	if d.Run.IsZero() {
		return fmt.Errorf("task %s has no run handler", d.Name)
	}
	return nil
}

func (d *Definition) HasOnCancel() bool {
	return d != nil && !d.OnCancel.IsZero()
}

// Identity returns the task identity used to attribute structured logs.
func Identity(workflowName, taskName string) string {
	return workflowName + "/" + taskName
}
