package resolve

import (
	"context"
	"encoding/json"

	"github.com/makr-code/VCC-Veritas-sub012/internal/expressions"
	"github.com/makr-code/VCC-Veritas-sub012/internal/runctx"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// Resolver binds a phase's declared input parameters from the context store.
// Resolution is a pure function of the store snapshot and the binding list:
// the same snapshot and bindings always yield identical bound inputs.
type Resolver struct {
	engines *expressions.Set
}

// New creates a Resolver over the given expression engines.
func New(engines *expressions.Set) *Resolver {
	return &Resolver{engines: engines}
}

// Resolve produces the bound input map for one phase. Path bindings read the
// store directly; on a missing path the declared default is substituted when
// present, otherwise resolution fails with INPUT_RESOLUTION naming the path.
// Expression bindings are evaluated over the scope {phases, inputs, flags}.
func (r *Resolver) Resolve(ctx context.Context, phase *schema.PhaseSpec, store *runctx.Store, flags schema.GlobalFlags) (map[string]any, error) {
	bound := make(map[string]any, len(phase.Inputs))

	var scope map[string]any // built lazily, only for expression bindings

	for i := range phase.Inputs {
		binding := &phase.Inputs[i]

		if binding.Expression != "" {
			if scope == nil {
				scope = buildScope(store, flags)
			}
			value, err := r.evaluate(ctx, binding, scope)
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeInputResolution,
					"binding %q: %s", binding.Param, err.Error()).
					WithPhase(phase.ID).
					WithCause(err)
			}
			bound[binding.Param] = value
			continue
		}

		value, err := store.Read(runctx.ParsePath(binding.Path))
		if err != nil {
			if schema.HasCode(err, schema.ErrCodePathNotFound) && binding.HasDefault() {
				def, defErr := decodeDefault(binding)
				if defErr != nil {
					return nil, defErr
				}
				bound[binding.Param] = def
				continue
			}
			return nil, schema.NewErrorf(schema.ErrCodeInputResolution,
				"binding %q: path %q not resolvable", binding.Param, binding.Path).
				WithPhase(phase.ID).
				WithCause(err)
		}
		bound[binding.Param] = value
	}

	return bound, nil
}

// evaluate runs an expression binding through its declared engine.
func (r *Resolver) evaluate(ctx context.Context, binding *schema.InputBinding, scope map[string]any) (any, error) {
	engine, err := r.engines.Get(binding.Engine)
	if err != nil {
		return nil, err
	}
	return engine.Evaluate(ctx, binding.Expression, scope)
}

// buildScope assembles the expression evaluation scope from a store snapshot.
// The reserved "input" entry doubles as the inputs namespace.
func buildScope(store *runctx.Store, flags schema.GlobalFlags) map[string]any {
	snapshot := store.Snapshot()
	inputs, _ := snapshot[runctx.InputKey].(map[string]any)
	return map[string]any{
		"phases": snapshot,
		"inputs": inputs,
		"flags":  flags.Map(),
	}
}

func decodeDefault(binding *schema.InputBinding) (any, error) {
	var def any
	if err := json.Unmarshal(binding.Default, &def); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInputResolution,
			"binding %q: invalid default: %s", binding.Param, err.Error()).
			WithCause(err)
	}
	return def, nil
}
