package executors

import (
	"context"
	"sort"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// StaticExecutor returns a fixed payload per method. It backs deterministic
// stub phases and mock-mode pipelines where a collaborator is absent.
type StaticExecutor struct {
	name    string
	outputs map[string]any
}

// NewStaticExecutor creates a StaticExecutor with the given method→payload map.
func NewStaticExecutor(name string, outputs map[string]any) *StaticExecutor {
	if outputs == nil {
		outputs = map[string]any{}
	}
	return &StaticExecutor{name: name, outputs: outputs}
}

// Name returns the executor name.
func (s *StaticExecutor) Name() string {
	return s.name
}

// Capabilities returns the registration descriptor.
func (s *StaticExecutor) Capabilities() Capabilities {
	methods := make([]string, 0, len(s.outputs))
	for m := range s.outputs {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return Capabilities{
		Description: "returns a fixed payload per method",
		Methods:     methods,
	}
}

// Execute returns the configured payload for the method.
func (s *StaticExecutor) Execute(ctx context.Context, method string, inputs map[string]any) (any, error) {
	out, ok := s.outputs[method]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"static executor %q has no payload for method %q", s.name, method)
	}
	return out, nil
}

var _ Executor = (*StaticExecutor)(nil)
