package schema

// AgentTask is one independently executable unit of fan-out work.
type AgentTask struct {
	ID         string         `json:"id"`
	Capability string         `json:"capability"`
	Payload    map[string]any `json:"payload,omitempty"`
	TimeoutMs  int            `json:"timeout_ms,omitempty"`
	Priority   int            `json:"priority,omitempty"`
}

// AgentTaskStatus is the terminal status of a dispatched task.
type AgentTaskStatus string

const (
	AgentTaskSuccess  AgentTaskStatus = "success"
	AgentTaskFailure  AgentTaskStatus = "failure"
	AgentTaskTimedOut AgentTaskStatus = "timed_out"
)

// AgentResult is the terminal outcome of a single task. Payload is present
// iff the task succeeded; Error iff it failed or timed out.
type AgentResult struct {
	TaskID     string          `json:"task_id"`
	Capability string          `json:"capability,omitempty"`
	Status     AgentTaskStatus `json:"status"`
	Payload    map[string]any  `json:"payload,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

// ProvenanceStatus tags a synthesis source outcome.
type ProvenanceStatus string

const (
	ProvenanceSuccess ProvenanceStatus = "success"
	ProvenanceFailure ProvenanceStatus = "failure"
	ProvenanceSkipped ProvenanceStatus = "skipped"
)

// ProvenanceEntry records one contributing (or considered) synthesis source.
type ProvenanceEntry struct {
	Source string           `json:"source"`
	Status ProvenanceStatus `json:"status"`
}

// SynthesisResult is the final merged answer for one pipeline run.
// Confidence is passed through verbatim from whichever source was chosen;
// the synthesizer never recomputes or blends it.
type SynthesisResult struct {
	Payload    any               `json:"payload"`
	Confidence float64           `json:"confidence"`
	Provenance []ProvenanceEntry `json:"provenance"`
	Degraded   bool              `json:"degraded"`
}
