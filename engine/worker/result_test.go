package worker

import (
	"errors"
	"fmt"
	"testing"

	"github.com/514-labs/moosestack/engine/schema"
	"github.com/514-labs/moosestack/engine/task"
	"github.com/stretchr/testify/assert"
)

func TestClassifyFailure(t *testing.T) {
	t.Run("Should classify errors by sentinel", func(t *testing.T) {
		cases := []struct {
			err          error
			errType      string
			nonRetryable bool
		}{
			{&task.ResolutionError{WorkflowName: "wf"}, ErrTypeResolution, true},
			{fmt.Errorf("wrapped: %w", &schema.ValidationError{Task: "t", Missing: true}), ErrTypeValidation, true},
			{&task.HandlerError{Task: "t", Cause: errors.New("x")}, ErrTypeHandler, false},
			{errors.New("plain"), ErrTypeHandler, false},
		}
		for _, tc := range cases {
			errType, nonRetryable := classifyFailure(tc.err)
			assert.Equal(t, tc.errType, errType, tc.err.Error())
			assert.Equal(t, tc.nonRetryable, nonRetryable, tc.err.Error())
		}
	})
}

func TestTraceback(t *testing.T) {
	t.Run("Should prefer the recovered panic stack", func(t *testing.T) {
		err := task.NewPanicError("t", "boom", []byte("stack frames"))
		assert.Contains(t, traceback(err), "stack frames")
	})

	t.Run("Should list the error chain otherwise", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", errors.New("inner"))
		tb := traceback(err)
		assert.Contains(t, tb, "outer: inner")
		assert.Contains(t, tb, "*errors.errorString: inner")
	})
}

func TestPackageSuccess(t *testing.T) {
	t.Run("Should wrap the handler value", func(t *testing.T) {
		assert.Equal(t, &task.Result{Task: "sum", Data: 5}, packageSuccess("sum", 5))
	})
}
