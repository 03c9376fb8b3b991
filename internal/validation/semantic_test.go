package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makr-code/VCC-Veritas-sub012/internal/expressions"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// mockLookup implements ExecutorLookup for tests.
type mockLookup struct {
	registered map[string]bool
	fanOut     map[string]bool
	methods    map[string][]string // nil entry = any method
}

func (m *mockLookup) Has(name string) bool    { return m.registered[name] }
func (m *mockLookup) FanOut(name string) bool { return m.fanOut[name] }

func (m *mockLookup) SupportsMethod(name, method string) bool {
	if !m.registered[name] {
		return false
	}
	allowed, ok := m.methods[name]
	if !ok {
		return true
	}
	for _, a := range allowed {
		if a == method {
			return true
		}
	}
	return false
}

func newMockLookup(names ...string) *mockLookup {
	m := &mockLookup{
		registered: make(map[string]bool),
		fanOut:     make(map[string]bool),
		methods:    make(map[string][]string),
	}
	for _, n := range names {
		m.registered[n] = true
	}
	return m
}

func testEngines(t *testing.T) *expressions.Set {
	t.Helper()
	set, err := expressions.DefaultSet()
	require.NoError(t, err)
	return set
}

func validConfig() *schema.PipelineConfig {
	return &schema.PipelineConfig{
		Version: "1.0",
		Phases: []schema.PhaseSpec{
			{ID: "intake", Order: 1, Executor: "static", Method: "intake"},
			{
				ID: "analysis", Order: 2, Executor: "static", Method: "analyze",
				Inputs: []schema.InputBinding{
					{Param: "query", Path: "intake.query"},
					{Param: "city", Path: "input.city"},
				},
			},
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	result := Validate(validConfig(), newMockLookup("static"), testEngines(t))
	assert.True(t, result.Valid())
}

func TestValidate_NilConfig(t *testing.T) {
	result := Validate(nil, newMockLookup(), testEngines(t))
	require.Len(t, result.Errors, 1)
}

func TestValidate_NoPhases(t *testing.T) {
	result := Validate(&schema.PipelineConfig{Version: "1.0"}, newMockLookup(), testEngines(t))
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "phases", result.Errors[0].Path)
}

func TestValidate_DuplicatePhaseID(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[1].ID = "intake"
	cfg.Phases[1].OutputKey = "other" // isolate the id check

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
	assert.Equal(t, "phases[1].id", result.Errors[0].Path)
	assert.Contains(t, result.Errors[0].Message, "duplicate")
}

func TestValidate_OrderNotStrictlyIncreasing(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[1].Order = 1
	cfg.Phases[1].Inputs = nil

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
	assert.Equal(t, "phases[1].order", result.Errors[0].Path)
}

func TestValidate_DuplicateOutputKey(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[1].OutputKey = "intake"
	cfg.Phases[1].Inputs = nil

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
	assert.Equal(t, "phases[1].output_key", result.Errors[0].Path)
}

func TestValidate_ReservedInputKey(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[0].OutputKey = "input"
	cfg.Phases[1].Inputs = nil

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, `"input"`)
}

func TestValidate_ExecutorNotRegistered(t *testing.T) {
	result := Validate(validConfig(), newMockLookup("other"), testEngines(t))
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "static")
}

func TestValidate_MethodNotSupported(t *testing.T) {
	lookup := newMockLookup("static")
	lookup.methods["static"] = []string{"intake"}

	result := Validate(validConfig(), lookup, testEngines(t))
	require.False(t, result.Valid())
	assert.Equal(t, "phases[1].method", result.Errors[0].Path)
	assert.Contains(t, result.Errors[0].Message, `"analyze"`)
}

func TestValidate_EmptyExecutor(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[0].Executor = ""

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
	assert.Equal(t, "phases[0].executor", result.Errors[0].Path)
}

func TestValidate_ForwardReferenceRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[0].Inputs = []schema.InputBinding{
		{Param: "later", Path: "analysis.result"},
	}

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "analysis")
}

func TestValidate_SelfReferenceRejected(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[1].Inputs = []schema.InputBinding{
		{Param: "self", Path: "analysis.result"},
	}

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
}

func TestValidate_BindingShape(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[1].Inputs = []schema.InputBinding{
		{Param: "both", Path: "intake.query", Expression: "1 + 1"},
		{Param: "neither"},
	}

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.Len(t, result.Errors, 2)
}

func TestValidate_UnknownExpressionEngine(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[1].Inputs = []schema.InputBinding{
		{Param: "x", Engine: "lua", Expression: "1"},
	}

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
	assert.Contains(t, result.Errors[0].Message, "lua")
}

func TestValidate_ExpressionCompileChecked(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[1].Inputs = []schema.InputBinding{
		{Param: "x", Engine: "jq", Expression: ".[broken"},
	}

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
}

func TestValidate_ConditionCompileChecked(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[0].EnabledIf = `flags[`

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
	assert.Equal(t, "phases[0].enabled_if", result.Errors[0].Path)
}

func TestValidate_FanOutRequiresParallelism(t *testing.T) {
	cfg := validConfig()
	lookup := newMockLookup("static", "agents")
	lookup.fanOut["agents"] = true
	cfg.Phases[1].Executor = "agents"
	cfg.Phases[1].Inputs = nil

	result := Validate(cfg, lookup, testEngines(t))
	require.False(t, result.Valid())
	assert.Equal(t, "global_flags.max_parallel", result.Errors[0].Path)

	cfg.Flags.MaxParallel = 2
	result = Validate(cfg, lookup, testEngines(t))
	assert.True(t, result.Valid())
}

func TestValidate_NegativeTimeout(t *testing.T) {
	cfg := validConfig()
	cfg.Phases[0].TimeoutMs = -5

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.False(t, result.Valid())
	assert.Equal(t, "phases[0].timeout_ms", result.Errors[0].Path)
}

func TestValidate_SynthesisSourcesMustBeDeclared(t *testing.T) {
	cfg := validConfig()
	cfg.Synthesis = schema.SynthesisSpec{
		PrimarySource:     "nowhere",
		ConclusionSources: []string{"analysis", "missing"},
	}

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "synthesis.primary_source", result.Errors[0].Path)
	assert.Equal(t, "synthesis.conclusion_sources[1]", result.Errors[1].Path)
}

func TestValidate_FallbackConfidenceRangeWarning(t *testing.T) {
	cfg := validConfig()
	cfg.Synthesis = schema.SynthesisSpec{FallbackConfidence: 1.5}

	result := Validate(cfg, newMockLookup("static"), testEngines(t))
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "synthesis.fallback_confidence", result.Warnings[0].Path)
}

func TestValidationResult_ToError(t *testing.T) {
	r := &schema.ValidationResult{}
	assert.NoError(t, r.ToError())

	r.AddError("phases[0].id", schema.ErrCodeConfig, "phase id is empty")
	err := r.ToError()
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConfig))
	assert.Contains(t, err.Error(), "phases[0].id")
}
