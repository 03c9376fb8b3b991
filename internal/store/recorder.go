package store

import (
	"context"
	"encoding/json"
	"time"
)

// RunRecord is the persisted summary of one pipeline run.
type RunRecord struct {
	ID              string          `json:"id"`
	PipelineVersion string          `json:"pipeline_version,omitempty"`
	ExecutionMode   string          `json:"execution_mode,omitempty"`
	Status          string          `json:"status"`
	Input           json.RawMessage `json:"input,omitempty"`
	Synthesis       json.RawMessage `json:"synthesis,omitempty"`
	Error           string          `json:"error,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// PhaseEvent records one phase reaching a terminal state within a run.
type PhaseEvent struct {
	RunID      string          `json:"run_id"`
	PhaseID    string          `json:"phase_id"`
	Status     string          `json:"status"`
	Output     json.RawMessage `json:"output,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
	Sequence   int64           `json:"sequence"`
	Timestamp  time.Time       `json:"timestamp"`
}

// RunRecorder is the narrow persistence contract the engine depends on.
// The core never requires persistence; NopRecorder is the default.
// Implementations must be safe for concurrent use.
type RunRecorder interface {
	RunStarted(ctx context.Context, rec *RunRecord) error
	PhaseFinished(ctx context.Context, event *PhaseEvent) error
	RunFinished(ctx context.Context, runID, status string, synthesis json.RawMessage, errMsg string) error

	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*RunRecord, error)
	ListPhaseEvents(ctx context.Context, runID string) ([]*PhaseEvent, error)

	Close() error
}

// NopRecorder discards everything. Used when run history is disabled.
type NopRecorder struct{}

func (NopRecorder) RunStarted(context.Context, *RunRecord) error { return nil }
func (NopRecorder) PhaseFinished(context.Context, *PhaseEvent) error {
	return nil
}
func (NopRecorder) RunFinished(context.Context, string, string, json.RawMessage, string) error {
	return nil
}
func (NopRecorder) GetRun(context.Context, string) (*RunRecord, error) { return nil, nil }
func (NopRecorder) ListRuns(context.Context, int) ([]*RunRecord, error) {
	return nil, nil
}
func (NopRecorder) ListPhaseEvents(context.Context, string) ([]*PhaseEvent, error) {
	return nil, nil
}
func (NopRecorder) Close() error { return nil }

var _ RunRecorder = NopRecorder{}
