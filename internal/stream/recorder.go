package stream

import (
	"context"
	"encoding/json"

	"github.com/makr-code/VCC-Veritas-sub012/internal/store"
)

// Recorder wraps a store.RunRecorder and publishes a RunEvent to the hub for
// every write. Reads pass straight through. Publish failures are ignored so
// observers can never break the run.
type Recorder struct {
	inner store.RunRecorder
	hub   Hub
}

// NewRecorder creates a Recorder publishing to hub and delegating to inner.
func NewRecorder(inner store.RunRecorder, hub Hub) *Recorder {
	return &Recorder{inner: inner, hub: hub}
}

func (r *Recorder) RunStarted(ctx context.Context, rec *store.RunRecord) error {
	if err := r.inner.RunStarted(ctx, rec); err != nil {
		return err
	}
	_ = r.hub.Publish(ctx, RunEvent{
		RunID:   rec.ID,
		Type:    EventRunStarted,
		Payload: map[string]any{"status": rec.Status, "pipeline_version": rec.PipelineVersion},
	})
	return nil
}

func (r *Recorder) PhaseFinished(ctx context.Context, event *store.PhaseEvent) error {
	if err := r.inner.PhaseFinished(ctx, event); err != nil {
		return err
	}
	_ = r.hub.Publish(ctx, RunEvent{
		RunID:   event.RunID,
		PhaseID: event.PhaseID,
		Type:    EventPhaseFinished,
		Payload: map[string]any{"status": event.Status, "duration_ms": event.DurationMs},
	})
	return nil
}

func (r *Recorder) RunFinished(ctx context.Context, runID, status string, synthesis json.RawMessage, errMsg string) error {
	if err := r.inner.RunFinished(ctx, runID, status, synthesis, errMsg); err != nil {
		return err
	}
	payload := map[string]any{"status": status}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	_ = r.hub.Publish(ctx, RunEvent{RunID: runID, Type: EventRunFinished, Payload: payload})
	return nil
}

func (r *Recorder) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	return r.inner.GetRun(ctx, id)
}

func (r *Recorder) ListRuns(ctx context.Context, limit int) ([]*store.RunRecord, error) {
	return r.inner.ListRuns(ctx, limit)
}

func (r *Recorder) ListPhaseEvents(ctx context.Context, runID string) ([]*store.PhaseEvent, error) {
	return r.inner.ListPhaseEvents(ctx, runID)
}

func (r *Recorder) Close() error { return r.inner.Close() }

var _ store.RunRecorder = (*Recorder)(nil)
