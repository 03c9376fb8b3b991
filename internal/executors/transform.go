package executors

import (
	"context"

	"github.com/makr-code/VCC-Veritas-sub012/internal/expressions"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// TransformName is the registry name of the built-in transform executor.
const TransformName = "transform"

// TransformExecutor evaluates an expression over the phase's bound inputs.
// The method selects the engine (cel, expr, jq); the expression comes from
// the reserved "expression" input parameter, everything else is the data.
type TransformExecutor struct {
	engines *expressions.Set
}

// NewTransformExecutor creates a TransformExecutor over the given engines.
func NewTransformExecutor(engines *expressions.Set) *TransformExecutor {
	return &TransformExecutor{engines: engines}
}

// Name returns the executor name.
func (t *TransformExecutor) Name() string {
	return TransformName
}

// Capabilities returns the registration descriptor.
func (t *TransformExecutor) Capabilities() Capabilities {
	return Capabilities{
		Description: "evaluates an expression over the bound inputs",
		Methods:     []string{"cel", "expr", "jq"},
	}
}

// Execute evaluates inputs["expression"] with the engine named by method.
func (t *TransformExecutor) Execute(ctx context.Context, method string, inputs map[string]any) (any, error) {
	exprRaw, ok := inputs["expression"]
	if !ok {
		return nil, schema.NewError(schema.ErrCodeExecution,
			`transform executor requires an "expression" input`)
	}
	expression, ok := exprRaw.(string)
	if !ok || expression == "" {
		return nil, schema.NewError(schema.ErrCodeExecution,
			`transform "expression" input must be a non-empty string`)
	}

	engine, err := t.engines.Get(method)
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, len(inputs))
	for k, v := range inputs {
		if k == "expression" {
			continue
		}
		data[k] = v
	}

	return engine.Evaluate(ctx, expression, data)
}

var _ Executor = (*TransformExecutor)(nil)
