// Package tasklog turns task diagnostic output into machine-parsable records.
//
// Output printed by a task handler while a task identity is attached to its
// context is written to the error stream as one JSON object per call, tagged
// with MarkerKey so the CLI log collector can route it. Output for any other
// destination, or without an identity, passes through untouched.
package tasklog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// MarkerKey is the JSON field the log collector looks for.
const MarkerKey = "__moose_structured_log__"

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Stream identifies where diagnostic output was directed.
type Stream int

const (
	Stdout Stream = iota
	Stderr
	Other
)

// Record is a single structured log line.
type Record struct {
	Marker    bool   `json:"__moose_structured_log__"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	TaskName  string `json:"task_name,omitempty"`
	Timestamp string `json:"timestamp"`
}

type taskCtxKey struct{}

// WithTask attaches a task identity to ctx. The identity is scoped to the
// returned context only.
func WithTask(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, taskCtxKey{}, identity)
}

// TaskFrom returns the task identity attached to ctx, if any.
func TaskFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	identity, _ := ctx.Value(taskCtxKey{}).(string)
	return identity
}

// Emitter is the process-wide interception point for task output.
type Emitter struct {
	mu     sync.Mutex
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

var (
	installed   *Emitter
	installOnce sync.Once
)

// Install sets up the process-wide emitter. Only the first call has any
// effect; subsequent calls return the already installed emitter.
func Install(stdout, stderr io.Writer) *Emitter {
	installOnce.Do(func() {
		installed = New(stdout, stderr)
	})
	return installed
}

// Default returns the installed emitter, installing one on the process
// standard streams if needed.
func Default() *Emitter {
	return Install(os.Stdout, os.Stderr)
}

// New builds a standalone emitter. Most callers want Install or Default.
func New(stdout, stderr io.Writer) *Emitter {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Emitter{stdout: stdout, stderr: stderr, now: time.Now}
}

// Print emits args as print would. With an identity and a standard stream
// destination it writes one info record to the error stream instead.
func (e *Emitter) Print(identity string, dest Stream, flush bool, args ...any) {
	e.PrintTo(identity, dest, nil, flush, args...)
}

// PrintTo is Print with an explicit writer for the Other destination.
func (e *Emitter) PrintTo(identity string, dest Stream, w io.Writer, flush bool, args ...any) {
	message := joinArgs(args)
	if identity != "" && (dest == Stdout || dest == Stderr) {
		e.emit(Record{Level: LevelInfo, Message: message, TaskName: identity}, flush)
		return
	}
	out := e.writerFor(dest, w)
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = io.WriteString(out, message+"\n")
	if flush {
		syncWriter(out)
	}
}

// Log writes an explicit record with the given level. Records are always
// flushed.
func (e *Emitter) Log(identity string, level Level, message string) {
	e.emit(Record{Level: level, Message: message, TaskName: identity}, true)
}

// Logf is Log with formatting.
func (e *Emitter) Logf(identity string, level Level, format string, args ...any) {
	e.Log(identity, level, fmt.Sprintf(format, args...))
}

// Writer returns an io.Writer bound to identity and dest. Each Write call
// becomes one Print call with the trailing newline trimmed.
func (e *Emitter) Writer(identity string, dest Stream) io.Writer {
	return &streamWriter{emitter: e, identity: identity, dest: dest}
}

func (e *Emitter) emit(rec Record, flush bool) {
	rec.Marker = true
	rec.Timestamp = e.now().UTC().Format(time.RFC3339Nano)
	line, err := json.Marshal(rec)
	if err != nil {
		line = []byte(fmt.Sprintf(`{%q:true,"level":"error","message":%q}`, MarkerKey, err.Error()))
	}
	line = append(line, '\n')
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = e.stderr.Write(line)
	if flush {
		syncWriter(e.stderr)
	}
}

func (e *Emitter) writerFor(dest Stream, w io.Writer) io.Writer {
	switch {
	case dest == Other && w != nil:
		return w
	case dest == Stderr:
		return e.stderr
	default:
		return e.stdout
	}
}

type streamWriter struct {
	emitter  *Emitter
	identity string
	dest     Stream
}

func (w *streamWriter) Write(p []byte) (int, error) {
	message := strings.TrimSuffix(string(p), "\n")
	w.emitter.Print(w.identity, w.dest, false, message)
	return len(p), nil
}

func joinArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	return strings.Join(parts, " ")
}

func syncWriter(w io.Writer) {
	switch s := w.(type) {
	case interface{ Sync() error }:
		_ = s.Sync()
	case interface{ Flush() error }:
		_ = s.Flush()
	}
}
