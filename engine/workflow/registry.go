package workflow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/514-labs/moosestack/engine/task"
)

// Registry maps workflow and task names to task definitions.
type Registry interface {
	Resolve(workflowName, taskName string) (*task.Definition, error)
	Workflows() []*Config
}

// MemoryRegistry is an in-memory Registry safe for concurrent use.
type MemoryRegistry struct {
	mu        sync.RWMutex
	workflows map[string]*Config
}

func NewRegistry(configs ...*Config) (*MemoryRegistry, error) {
	r := &MemoryRegistry{workflows: make(map[string]*Config)}
	for _, cfg := range configs {
		if err := r.Register(cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *MemoryRegistry) Register(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.workflows[cfg.Name]; exists {
		return fmt.Errorf("workflow %s already registered", cfg.Name)
	}
	r.workflows[cfg.Name] = cfg
	return nil
}

func (r *MemoryRegistry) Resolve(workflowName, taskName string) (*task.Definition, error) {
	r.mu.RLock()
	cfg, ok := r.workflows[workflowName]
	r.mu.RUnlock()
	if !ok {
		return nil, &task.ResolutionError{WorkflowName: workflowName}
	}
	def := cfg.FindTask(taskName)
	if def == nil {
		return nil, &task.ResolutionError{WorkflowName: workflowName, TaskName: taskName}
	}
	return def, nil
}

// Workflows returns the registered workflows sorted by name.
func (r *MemoryRegistry) Workflows() []*Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Config, 0, len(r.workflows))
	for _, cfg := range r.workflows {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
