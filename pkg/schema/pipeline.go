package schema

import "encoding/json"

// PipelineConfig is the JSON-serializable pipeline definition.
// It is loaded and validated once per run and immutable thereafter.
type PipelineConfig struct {
	Version   string         `json:"version"`
	Flags     GlobalFlags    `json:"global_flags"`
	Phases    []PhaseSpec    `json:"phases"`
	Synthesis SynthesisSpec  `json:"synthesis,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// GlobalFlags are run-level switches evaluated by phase conditions.
type GlobalFlags struct {
	FanOutEnabled bool   `json:"fan_out_enabled"`
	MaxParallel   int    `json:"max_parallel"`
	ExecutionMode string `json:"execution_mode,omitempty"`
}

// Map returns the flags as a plain map for expression evaluation.
func (f GlobalFlags) Map() map[string]any {
	return map[string]any{
		"fan_out_enabled": f.FanOutEnabled,
		"max_parallel":    f.MaxParallel,
		"execution_mode":  f.ExecutionMode,
	}
}

// PhaseSpec describes a single phase of the pipeline.
type PhaseSpec struct {
	ID        string         `json:"id"`
	Order     int            `json:"order"`
	Executor  string         `json:"executor"`
	Method    string         `json:"method"`
	EnabledIf string         `json:"enabled_if,omitempty"` // CEL expression over flags; empty = always enabled
	Inputs    []InputBinding `json:"inputs,omitempty"`
	OutputKey string         `json:"output_key,omitempty"` // context store key (default: phase ID)
	TimeoutMs int            `json:"timeout_ms,omitempty"`
	Optional  bool           `json:"optional,omitempty"` // failure degrades to skip instead of aborting
}

// StoreKey returns the key under which the phase output is recorded.
func (p *PhaseSpec) StoreKey() string {
	if p.OutputKey != "" {
		return p.OutputKey
	}
	return p.ID
}

// InputBinding binds one phase input parameter from prior outputs.
// Exactly one of Path or Expression is set. Path is a dot-separated key
// sequence rooted at a phase output key (or the reserved "input" root).
// Expression bindings are evaluated by the named engine over the full scope.
type InputBinding struct {
	Param      string          `json:"param"`
	Path       string          `json:"path,omitempty"`
	Default    json.RawMessage `json:"default,omitempty"` // substituted when the path is absent
	Engine     string          `json:"engine,omitempty"`  // cel | expr | jq (default: expr)
	Expression string          `json:"expression,omitempty"`
}

// HasDefault reports whether the binding declares a default value.
func (b *InputBinding) HasDefault() bool {
	return len(b.Default) > 0
}

// SynthesisSpec configures the final result synthesis step.
type SynthesisSpec struct {
	// PrimarySource is the output key of the fan-out synthesis phase.
	PrimarySource string `json:"primary_source,omitempty"`
	// ConclusionSources are fallback output keys in priority order,
	// typically the last conclusion-bearing non-fan-out phases.
	ConclusionSources []string `json:"conclusion_sources,omitempty"`
	// Fallback is the static payload used when no source is available.
	Fallback map[string]any `json:"fallback,omitempty"`
	// FallbackConfidence is reported when the static fallback is used.
	FallbackConfidence float64 `json:"fallback_confidence,omitempty"`
}

// RunStatus enumerates the lifecycle states of a pipeline run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusActive    RunStatus = "active"
	RunStatusCompleted RunStatus = "completed"
	RunStatusAborted   RunStatus = "aborted"
	RunStatusCancelled RunStatus = "cancelled"
)

// PhaseStatus enumerates the per-phase states of the scheduler.
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusResolving PhaseStatus = "resolving"
	PhaseStatusExecuting PhaseStatus = "executing"
	PhaseStatusRecorded  PhaseStatus = "recorded"
	PhaseStatusSkipped   PhaseStatus = "skipped"
	PhaseStatusFailed    PhaseStatus = "failed"
)
