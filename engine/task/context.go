package task

import (
	"fmt"
	"io"

	"github.com/514-labs/moosestack/pkg/tasklog"
)

// Context is handed to every handler call. A fresh Context is built per call;
// State is the same store for Run and OnCancel.
type Context struct {
	State *State
	Input any
	// Stdout and Stderr produce one structured record per Write.
	Stdout io.Writer
	Stderr io.Writer

	identity string
	emitter  *tasklog.Emitter
}

// NewContext binds the output helpers to identity explicitly so the context
// can cross goroutine boundaries without losing attribution.
func NewContext(state *State, input any, emitter *tasklog.Emitter, identity string) *Context {
	if state == nil {
		state = NewState()
	}
	if emitter == nil {
		emitter = tasklog.Default()
	}
	return &Context{
		State:    state,
		Input:    input,
		Stdout:   emitter.Writer(identity, tasklog.Stdout),
		Stderr:   emitter.Writer(identity, tasklog.Stderr),
		identity: identity,
		emitter:  emitter,
	}
}

func (c *Context) Identity() string {
	return c.identity
}

func (c *Context) Print(args ...any) {
	c.emitter.Print(c.identity, tasklog.Stdout, false, args...)
}

func (c *Context) Printf(format string, args ...any) {
	c.emitter.Print(c.identity, tasklog.Stdout, false, fmt.Sprintf(format, args...))
}

// PrintFlush prints and flushes the error stream before returning.
func (c *Context) PrintFlush(args ...any) {
	c.emitter.Print(c.identity, tasklog.Stdout, true, args...)
}

// Log emits a record with an explicit level.
func (c *Context) Log(level tasklog.Level, message string) {
	c.emitter.Log(c.identity, level, message)
}

// InputAs returns the validated input as T.
func InputAs[T any](c *Context) (T, error) {
	var zero T
	if c == nil || c.Input == nil {
		return zero, fmt.Errorf("task has no input")
	}
	switch v := c.Input.(type) {
	case T:
		return v, nil
	case *T:
		if v != nil {
			return *v, nil
		}
	}
	return zero, fmt.Errorf("task input is %T, not %T", c.Input, zero)
}
