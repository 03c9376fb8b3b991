package stream

import "context"

// Event types published during a run.
const (
	EventRunStarted    = "run_started"
	EventPhaseFinished = "phase_finished"
	EventRunFinished   = "run_finished"
)

// RunEvent is a live event emitted while a pipeline run executes.
type RunEvent struct {
	RunID   string `json:"run_id"`
	PhaseID string `json:"phase_id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Filter narrows a subscription to one run and/or a set of event types.
// Zero values match everything.
type Filter struct {
	RunID string   `json:"run_id,omitempty"`
	Types []string `json:"types,omitempty"`
}

func (f Filter) matches(e RunEvent) bool {
	if f.RunID != "" && f.RunID != e.RunID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Hub provides pub/sub for live run events.
type Hub interface {
	Publish(ctx context.Context, event RunEvent) error
	Subscribe(ctx context.Context, filter Filter) (<-chan RunEvent, func(), error)
}
