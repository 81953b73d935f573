package worker

import (
	"context"

	"github.com/514-labs/moosestack/engine/task"
	"github.com/514-labs/moosestack/pkg/logger"
	"github.com/514-labs/moosestack/pkg/tasklog"
)

// handleCancellation runs the cleanup handler of def, if any, and returns
// the cancellation cause of ctx unchanged. runErr is returned instead when
// the handler reported a cancellation error before ctx was done. Cleanup
// failures are reported as structured error records and never replace the
// cancellation.
func (e *Executor) handleCancellation(
	ctx context.Context,
	def *task.Definition,
	identity string,
	state *task.State,
	input any,
	runErr error,
) error {
	log := logger.FromContext(ctx)
	log.Info("Task cancelled, calling onCancel handler if it exists", "task", def.Name)
	cause := ctx.Err()
	if cause == nil {
		cause = runErr
	}
	if !def.HasOnCancel() {
		return cause
	}
	// The invocation context is already done; cleanup gets a detached one
	// and a fresh slot, since an abandoned blocking run may still hold the
	// original.
	cleanupCtx := context.WithoutCancel(ctx)
	slot := e.newSlot()
	defer slot.shutdown()
	tc := task.NewContext(state, input, e.emitter, identity)
	out := dispatch(cleanupCtx, def.Name, def.OnCancel, tc, slot)
	if out.err != nil {
		log.Error("Error in onCancel handler", "task", def.Name, "error", out.err)
		e.emitter.Logf(identity, tasklog.LevelError, "Error in onCancel handler for task %s: %v", def.Name, out.err)
		return cause
	}
	log.Info("onCancel handler completed", "task", def.Name)
	return cause
}
