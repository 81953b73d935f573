package task

import (
	"encoding/json"
	"errors"

	"go.temporal.io/sdk/temporal"
)

// FailureMessage is the fixed headline of every failure payload.
const FailureMessage = "Task execution failed"

// Result is the value returned to the orchestrator on success.
type Result struct {
	Task string `json:"task"`
	Data any    `json:"data"`
}

// Failure is the JSON payload carried by a failed invocation.
type Failure struct {
	Error     string `json:"error"`
	Details   string `json:"details"`
	Traceback string `json:"traceback"`
}

func (f *Failure) JSON() string {
	data, err := json.Marshal(f)
	if err != nil {
		return `{"error":"` + FailureMessage + `"}`
	}
	return string(data)
}

// FailureFromError extracts the failure payload from an error returned by
// the engine, following wrapped activity and application errors.
func FailureFromError(err error) (*Failure, bool) {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return nil, false
	}
	var f Failure
	if jsonErr := json.Unmarshal([]byte(appErr.Message()), &f); jsonErr != nil {
		return nil, false
	}
	return &f, true
}
