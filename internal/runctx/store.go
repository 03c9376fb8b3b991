package runctx

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// InputKey is the reserved store key under which the run's initial input
// is recorded before the first phase executes.
const InputKey = "input"

// Store is the append-only record of phase outputs for a single run.
// Entries are write-once: a recorded key is frozen (deep-copied on insert)
// and immutable for the remainder of the run. The scheduler is the only
// writer; reads may come from resolver goroutines during fan-out phases.
type Store struct {
	mu      sync.RWMutex
	outputs map[string]any
	order   []string
}

// New creates an empty Store.
func New() *Store {
	return &Store{outputs: make(map[string]any)}
}

// Record stores a phase output under the given key. It fails with CONFLICT
// if the key is already present. The value is deep-copied to freeze it.
func (s *Store) Record(key string, output any) error {
	if key == "" {
		return schema.NewError(schema.ErrCodeValidation, "store key is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.outputs[key]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict,
			"output %q already recorded; phase outputs are write-once", key)
	}

	s.outputs[key] = deepCopyAny(output)
	s.order = append(s.order, key)
	return nil
}

// Read resolves a key path rooted at a phase output key. Each segment after
// the root is a map key, or an index when the current value is a sequence.
// Fails with PATH_NOT_FOUND if any segment is absent.
func (s *Store) Read(path []string) (any, error) {
	if len(path) == 0 {
		return nil, schema.NewError(schema.ErrCodePathNotFound, "empty path")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current, ok := s.outputs[path[0]]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodePathNotFound,
			"no recorded output for %q", path[0])
	}

	for i, segment := range path[1:] {
		next, err := descend(current, segment)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodePathNotFound,
				"path %q: %s", strings.Join(path[:i+2], "."), err.Error())
		}
		current = next
	}

	return deepCopyAny(current), nil
}

// Has reports whether an output is recorded under the given key.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.outputs[key]
	return ok
}

// Recorded returns the store keys in record order.
func (s *Store) Recorded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Snapshot returns a deep copy of all recorded outputs, safe to hand to
// expression engines and resolvers without exposing internal state.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(map[string]any, len(s.outputs))
	for k, v := range s.outputs {
		snap[k] = deepCopyAny(v)
	}
	return snap
}

// ParsePath splits a dot-separated path expression into segments.
func ParsePath(expr string) []string {
	if expr == "" {
		return nil
	}
	return strings.Split(expr, ".")
}

// descend resolves one path segment against a structured value.
func descend(value any, segment string) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		next, ok := v[segment]
		if !ok {
			return nil, fmt.Errorf("key %q not found", segment)
		}
		return next, nil
	case []any:
		idx, err := strconv.Atoi(segment)
		if err != nil {
			return nil, fmt.Errorf("segment %q is not a valid index", segment)
		}
		if idx < 0 || idx >= len(v) {
			return nil, fmt.Errorf("index %d out of range (len %d)", idx, len(v))
		}
		return v[idx], nil
	default:
		return nil, fmt.Errorf("segment %q: value is not traversable", segment)
	}
}

// deepCopyAny recursively copies maps and slices; primitives are value types.
func deepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		cp := make(map[string]any, len(val))
		for k, item := range val {
			cp[k] = deepCopyAny(item)
		}
		return cp
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = deepCopyAny(item)
		}
		return cp
	default:
		return v
	}
}
