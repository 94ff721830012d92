// Package queue submits document jobs to a pluggable backend and runs them
// in worker processes.
package queue

import (
	"sort"
	"sync"

	"digidoc/internal/port"
)

// TaskRegistry maps task names to handlers. Enqueue validates names against
// it and workers dispatch through it.
type TaskRegistry struct {
	mu       sync.RWMutex
	handlers map[string]port.TaskHandler
}

// NewTaskRegistry creates an empty registry.
func NewTaskRegistry() *TaskRegistry {
	return &TaskRegistry{handlers: make(map[string]port.TaskHandler)}
}

// Register adds or replaces the handler for name.
func (r *TaskRegistry) Register(name string, h port.TaskHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// Lookup returns the handler for name.
func (r *TaskRegistry) Lookup(name string) (port.TaskHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered task names in sorted order.
func (r *TaskRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
