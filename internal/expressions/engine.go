package expressions

import (
	"context"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// Engine evaluates expressions against a pipeline run scope.
// Three implementations: CEL (phase conditions), Expr (binding transforms),
// GoJQ (JSON reshaping over recorded outputs).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
	// Check compiles the expression without evaluating it, for config-load
	// time validation.
	Check(expression string) error
}

// DefaultEngine is the engine used when a binding does not name one.
const DefaultEngine = "expr"

// Set holds the configured engines keyed by name.
type Set struct {
	engines map[string]Engine
}

// NewSet builds a Set from the given engines.
func NewSet(engines ...Engine) *Set {
	s := &Set{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		s.engines[e.Name()] = e
	}
	return s
}

// DefaultSet creates a Set with all three engines registered.
func DefaultSet() (*Set, error) {
	cel, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return NewSet(cel, NewExprEngine(), NewGoJQEngine()), nil
}

// Get returns the named engine, or the default engine for an empty name.
func (s *Set) Get(name string) (Engine, error) {
	if name == "" {
		name = DefaultEngine
	}
	e, ok := s.engines[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"unknown expression engine %q", name)
	}
	return e, nil
}

// Has reports whether an engine is registered under the given name.
func (s *Set) Has(name string) bool {
	if name == "" {
		return true
	}
	_, ok := s.engines[name]
	return ok
}
