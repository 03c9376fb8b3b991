package executors

import (
	"sort"
	"sync"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// Registry is a thread-safe executor registry. Handlers are registered once
// at process setup; dispatch during a run is a plain lookup.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[string]Executor),
	}
}

// Register adds an executor to the registry. Returns error on duplicate name.
func (r *Registry) Register(exec Executor) error {
	if exec == nil {
		return schema.NewError(schema.ErrCodeValidation, "executor is nil")
	}
	name := exec.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "executor name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "executor %q already registered", name)
	}

	r.executors[name] = exec
	return nil
}

// Get retrieves an executor by name. A miss after config validation is an
// internal-consistency error and is never silently ignored.
func (r *Registry) Get(name string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executors[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExecutorNotFound,
			"executor %q not registered", name)
	}
	return exec, nil
}

// Has checks if an executor is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.executors[name]
	return ok
}

// SupportsMethod reports whether the named executor's capability descriptor
// admits the given method. Unknown names report false.
func (r *Registry) SupportsMethod(name, method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[name]
	return ok && exec.Capabilities().SupportsMethod(method)
}

// FanOut reports whether the named executor performs internal fan-out.
// Unknown names report false.
func (r *Registry) FanOut(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.executors[name]
	return ok && exec.Capabilities().FanOut
}

// List returns info for all registered executors, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.executors))
	for _, e := range r.executors {
		caps := e.Capabilities()
		infos = append(infos, Info{
			Name:        e.Name(),
			Description: caps.Description,
			FanOut:      caps.FanOut,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Count returns the number of registered executors.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}
