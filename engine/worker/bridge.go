package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"

	"github.com/514-labs/moosestack/engine/task"
	"github.com/514-labs/moosestack/pkg/tasklog"
	"golang.org/x/sync/semaphore"
)

var errSlotClosed = errors.New("blocking executor is shut down")

// outcome is the result of one handler call. Exactly one of value/err is
// meaningful unless cancelled is set.
type outcome struct {
	value     any
	err       error
	cancelled bool
}

// slotExecutor runs at most one blocking job at a time on its own goroutine.
type slotExecutor struct {
	sem    *semaphore.Weighted
	closed atomic.Bool
	// orphans counts jobs abandoned by a cancelled caller until they finish.
	orphans *atomic.Int64
}

func newSlotExecutor() *slotExecutor {
	return &slotExecutor{sem: semaphore.NewWeighted(1)}
}

// submit starts fn once the slot is free. The returned channel receives the
// job outcome exactly once. Waiting for the slot honors ctx.
func (s *slotExecutor) submit(ctx context.Context, fn func() outcome) (<-chan outcome, error) {
	if s.closed.Load() {
		return nil, errSlotClosed
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	results := make(chan outcome, 1)
	go func() {
		defer s.sem.Release(1)
		results <- fn()
	}()
	return results, nil
}

// abandon tracks a job whose caller stopped waiting for it.
func (s *slotExecutor) abandon(results <-chan outcome) {
	if s.orphans == nil {
		return
	}
	s.orphans.Add(1)
	go func() {
		<-results
		s.orphans.Add(-1)
	}()
}

// shutdown rejects further submissions without waiting for a running job.
func (s *slotExecutor) shutdown() {
	s.closed.Store(true)
}

// dispatch calls h with the rule matching its kind and reports a tri-state
// outcome. Async handlers run inline with ctx; blocking handlers run on slot
// and are abandoned, not stopped, when ctx is done first.
func dispatch(ctx context.Context, taskName string, h task.Handler, tc *task.Context, slot *slotExecutor) outcome {
	ctx = tasklog.WithTask(ctx, tc.Identity())
	if h.IsBlocking() {
		return dispatchBlocking(ctx, taskName, h, tc, slot)
	}
	return dispatchAsync(ctx, taskName, h, tc)
}

func dispatchAsync(ctx context.Context, taskName string, h task.Handler, tc *task.Context) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: task.NewPanicError(taskName, r, debug.Stack())}
		}
	}()
	value, err := h.CallAsync(ctx, tc)
	if err == nil {
		return outcome{value: value}
	}
	if isCancellation(err) {
		return outcome{err: err, cancelled: true}
	}
	return outcome{err: &task.HandlerError{Task: taskName, Cause: err}}
}

func dispatchBlocking(ctx context.Context, taskName string, h task.Handler, tc *task.Context, slot *slotExecutor) outcome {
	results, err := slot.submit(ctx, func() (out outcome) {
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: task.NewPanicError(taskName, r, debug.Stack())}
			}
		}()
		value, err := h.CallBlocking(tc)
		if err != nil {
			return outcome{err: &task.HandlerError{Task: taskName, Cause: err}}
		}
		return outcome{value: value}
	})
	if err != nil {
		if ctx.Err() != nil {
			return outcome{err: ctx.Err(), cancelled: true}
		}
		return outcome{err: &task.HandlerError{Task: taskName, Cause: err}}
	}
	select {
	case out := <-results:
		return out
	case <-ctx.Done():
		slot.abandon(results)
		return outcome{err: ctx.Err(), cancelled: true}
	}
}

// isCancellation reports whether a handler gave up because of cancellation.
// A different error returned after ctx is done is still a handler failure.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
