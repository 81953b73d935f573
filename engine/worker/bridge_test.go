package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/514-labs/moosestack/engine/task"
	"github.com/514-labs/moosestack/pkg/tasklog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() *task.Context {
	return task.NewContext(task.NewState(), nil, tasklog.New(io.Discard, io.Discard), task.Identity("wf", "t"))
}

func TestSlotExecutor(t *testing.T) {
	t.Run("Should run one job at a time", func(t *testing.T) {
		slot := newSlotExecutor()
		release := make(chan struct{})
		first, err := slot.submit(t.Context(), func() outcome {
			<-release
			return outcome{value: 1}
		})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
		defer cancel()
		_, err = slot.submit(ctx, func() outcome { return outcome{value: 2} })
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		close(release)
		assert.Equal(t, 1, (<-first).value)
	})

	t.Run("Should reject jobs after shutdown", func(t *testing.T) {
		slot := newSlotExecutor()
		slot.shutdown()
		_, err := slot.submit(t.Context(), func() outcome { return outcome{} })
		assert.ErrorIs(t, err, errSlotClosed)
	})
}

func TestDispatch(t *testing.T) {
	t.Run("Should attach the task identity to async handler contexts", func(t *testing.T) {
		h := task.Async(func(ctx context.Context, _ *task.Context) (any, error) {
			return tasklog.TaskFrom(ctx), nil
		})
		out := dispatch(t.Context(), "t", h, newTestContext(), newSlotExecutor())
		require.NoError(t, out.err)
		assert.Equal(t, "wf/t", out.value)
	})

	t.Run("Should treat a cancellation error as cancelled", func(t *testing.T) {
		h := task.Async(func(context.Context, *task.Context) (any, error) {
			return nil, context.Canceled
		})
		out := dispatch(t.Context(), "t", h, newTestContext(), newSlotExecutor())
		assert.True(t, out.cancelled)
		assert.ErrorIs(t, out.err, context.Canceled)
	})

	t.Run("Should wrap other errors as handler errors", func(t *testing.T) {
		h := task.Async(func(context.Context, *task.Context) (any, error) {
			return nil, errors.New("bad row")
		})
		out := dispatch(t.Context(), "t", h, newTestContext(), newSlotExecutor())
		assert.False(t, out.cancelled)
		var handlerErr *task.HandlerError
		require.ErrorAs(t, out.err, &handlerErr)
		assert.Equal(t, "t", handlerErr.Task)
		assert.Empty(t, handlerErr.Stack)
	})

	t.Run("Should keep a different error returned after cancellation as a failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		h := task.Async(func(ctx context.Context, _ *task.Context) (any, error) {
			<-ctx.Done()
			return nil, errors.New("flush failed")
		})
		out := dispatch(ctx, "t", h, newTestContext(), newSlotExecutor())
		assert.False(t, out.cancelled)
		assert.ErrorIs(t, out.err, task.ErrHandler)
		assert.ErrorContains(t, out.err, "flush failed")
	})

	t.Run("Should recover panics from async handlers", func(t *testing.T) {
		h := task.Async(func(context.Context, *task.Context) (any, error) {
			panic(errors.New("nil map"))
		})
		out := dispatch(t.Context(), "t", h, newTestContext(), newSlotExecutor())
		var handlerErr *task.HandlerError
		require.ErrorAs(t, out.err, &handlerErr)
		assert.NotEmpty(t, handlerErr.Stack)
		assert.ErrorContains(t, out.err, "panic: nil map")
	})

	t.Run("Should return blocking errors even when they mention cancellation", func(t *testing.T) {
		h := task.Blocking(func(*task.Context) (any, error) {
			return nil, context.Canceled
		})
		out := dispatch(t.Context(), "t", h, newTestContext(), newSlotExecutor())
		assert.False(t, out.cancelled)
		assert.ErrorIs(t, out.err, task.ErrHandler)
	})

	t.Run("Should report cancellation when the slot is closed after ctx is done", func(t *testing.T) {
		slot := newSlotExecutor()
		slot.shutdown()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		h := task.Blocking(func(*task.Context) (any, error) { return nil, nil })
		out := dispatch(ctx, "t", h, newTestContext(), slot)
		assert.True(t, out.cancelled)
	})
}
