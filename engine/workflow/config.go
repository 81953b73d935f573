package workflow

import (
	"errors"
	"fmt"

	"github.com/514-labs/moosestack/engine/task"
)

// Config groups the task definitions of one workflow.
type Config struct {
	Name        string
	Description string
	Tasks       []*task.Definition
}

// GetID returns the workflow name
func (w *Config) GetID() string {
	return w.Name
}

// GetTasks returns the workflow tasks
func (w *Config) GetTasks() []*task.Definition {
	return w.Tasks
}

// FindTask returns the task with the given name, or nil.
func (w *Config) FindTask(name string) *task.Definition {
	for _, def := range w.Tasks {
		if def.Name == name {
			return def
		}
	}
	return nil
}

func (w *Config) Validate() error {
	if w == nil {
		return errors.New("workflow config is nil")
	}
	if w.Name == "" {
		return errors.New("workflow name is required")
	}
	if len(w.Tasks) == 0 {
		return fmt.Errorf("workflow %s has no tasks", w.Name)
	}
	seen := make(map[string]struct{}, len(w.Tasks))
	for _, def := range w.Tasks {
		if err := def.Validate(); err != nil {
			return fmt.Errorf("invalid task in workflow %s: %w", w.Name, err)
		}
		if _, ok := seen[def.Name]; ok {
			return fmt.Errorf("duplicate task %s in workflow %s", def.Name, w.Name)
		}
		seen[def.Name] = struct{}{}
	}
	return nil
}

func FindConfig(workflows []*Config, name string) (*Config, error) {
	for _, wf := range workflows {
		if wf.Name == name {
			return wf, nil
		}
	}
	return nil, &task.ResolutionError{WorkflowName: name}
}
