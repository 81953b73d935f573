package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/514-labs/moosestack/pkg/tasklog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

func TestDefinition_Validate(t *testing.T) {
	t.Run("Should accept a definition with a run handler", func(t *testing.T) {
		def := &Definition{Name: "noop", Run: Async(func(context.Context, *Context) (any, error) {
			return nil, nil
		})}
		require.NoError(t, def.Validate())
		assert.False(t, def.HasOnCancel())
	})

	t.Run("Should reject a definition without a name", func(t *testing.T) {
		def := &Definition{Run: Blocking(func(*Context) (any, error) { return nil, nil })}
		assert.ErrorContains(t, def.Validate(), "name is required")
	})

	t.Run("Should reject a definition without a run handler", func(t *testing.T) {
		def := &Definition{Name: "empty"}
		assert.ErrorContains(t, def.Validate(), "no run handler")
	})
}

func TestHandler_Kinds(t *testing.T) {
	t.Run("Should report the handler kind", func(t *testing.T) {
		assert.True(t, Handler{}.IsZero())
		assert.True(t, Blocking(func(*Context) (any, error) { return nil, nil }).IsBlocking())
		assert.False(t, Async(func(context.Context, *Context) (any, error) { return nil, nil }).IsBlocking())
	})

	t.Run("Should panic when called as the wrong kind", func(t *testing.T) {
		h := Blocking(func(*Context) (any, error) { return 1, nil })
		assert.Panics(t, func() { _, _ = h.CallAsync(t.Context(), nil) })
		v, err := h.CallBlocking(nil)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	})
}

func TestContext_Output(t *testing.T) {
	t.Run("Should attribute prints to the bound identity", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		emitter := tasklog.New(&stdout, &stderr)
		tc := NewContext(NewState(), nil, emitter, Identity("etl", "extract"))
		tc.Print("rows", 10)
		fmt.Fprintln(tc.Stdout, "done")
		assert.Empty(t, stdout.String())
		lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
		require.Len(t, lines, 2)
		var rec tasklog.Record
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
		assert.Equal(t, "rows 10", rec.Message)
		assert.Equal(t, "etl/extract", rec.TaskName)
		require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
		assert.Equal(t, "done", rec.Message)
	})
}

func TestInputAs(t *testing.T) {
	type payload struct{ N int }
	t.Run("Should return values and dereference pointers", func(t *testing.T) {
		v, err := InputAs[payload](&Context{Input: payload{N: 1}})
		require.NoError(t, err)
		assert.Equal(t, 1, v.N)
		v, err = InputAs[payload](&Context{Input: &payload{N: 2}})
		require.NoError(t, err)
		assert.Equal(t, 2, v.N)
	})

	t.Run("Should fail on missing or mismatched input", func(t *testing.T) {
		_, err := InputAs[payload](&Context{})
		assert.ErrorContains(t, err, "no input")
		_, err = InputAs[payload](&Context{Input: "text"})
		assert.ErrorContains(t, err, "not")
	})
}

func TestErrors(t *testing.T) {
	t.Run("Should format resolution errors", func(t *testing.T) {
		err := error(&ResolutionError{WorkflowName: "etl"})
		assert.Equal(t, "Workflow etl not found", err.Error())
		assert.True(t, errors.Is(err, ErrResolution))
		err = &ResolutionError{WorkflowName: "etl", TaskName: "load"}
		assert.Equal(t, "Task load not found in workflow etl", err.Error())
	})

	t.Run("Should wrap recovered panics", func(t *testing.T) {
		cause := errors.New("boom")
		err := NewPanicError("sum", cause, []byte("stack"))
		assert.True(t, errors.Is(err, ErrHandler))
		assert.True(t, errors.Is(err, cause))
		assert.Equal(t, "stack", string(err.Stack))
		assert.Contains(t, NewPanicError("sum", 42, nil).Error(), "panic: 42")
	})
}

func TestFailureFromError(t *testing.T) {
	t.Run("Should recover the payload from an application error", func(t *testing.T) {
		f := &Failure{Error: FailureMessage, Details: "bad", Traceback: "tb"}
		appErr := temporal.NewApplicationError(f.JSON(), "HandlerError")
		got, ok := FailureFromError(fmt.Errorf("activity: %w", appErr))
		require.True(t, ok)
		assert.Equal(t, f, got)
	})

	t.Run("Should ignore other errors", func(t *testing.T) {
		_, ok := FailureFromError(context.Canceled)
		assert.False(t, ok)
	})
}
