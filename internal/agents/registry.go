package agents

import (
	"sort"
	"sync"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// Registry is a thread-safe catalog of task providers keyed by capability.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider. Returns error on duplicate capability.
func (r *Registry) Register(p Provider) error {
	if p == nil {
		return schema.NewError(schema.ErrCodeValidation, "provider is nil")
	}
	capability := p.Capability()
	if capability == "" {
		return schema.NewError(schema.ErrCodeValidation, "provider capability is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[capability]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"provider for capability %q already registered", capability)
	}

	r.providers[capability] = p
	return nil
}

// Get retrieves the provider for a capability.
func (r *Registry) Get(capability string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[capability]
	return p, ok
}

// Capabilities returns the registered capability tags, sorted.
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	caps := make([]string, 0, len(r.providers))
	for c := range r.providers {
		caps = append(caps, c)
	}
	sort.Strings(caps)
	return caps
}

// Count returns the number of registered providers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
