package task

import (
	"maps"
	"sync"
)

// State is the key/value store shared by Run and OnCancel of a single
// invocation. An abandoned blocking Run may still be writing while OnCancel
// runs, so every access goes through the lock.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewState() *State {
	return &State{values: make(map[string]any)}
}

func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	s.values[key] = value
}

func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Update replaces the value under key with fn(current, found) atomically.
func (s *State) Update(key string, fn func(current any, found bool) any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]any)
	}
	current, found := s.values[key]
	next := fn(current, found)
	s.values[key] = next
	return next
}

// Snapshot returns a shallow copy of the current values.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// AppendString appends value to the string list stored under key.
func AppendString(s *State, key, value string) []string {
	out := s.Update(key, func(current any, _ bool) any {
		list, _ := current.([]string)
		next := make([]string, len(list), len(list)+1)
		copy(next, list)
		return append(next, value)
	})
	return out.([]string)
}
