package agents

import "context"

// Provider executes sub-tasks for one capability, e.g. a weather lookup,
// cost estimation, or building-code check. Providers are external
// collaborators; the coordinator only sees this contract.
type Provider interface {
	// Capability is the tag used for task-to-provider matching.
	Capability() string
	// Descriptor is recorded once at registration and never re-probed.
	Descriptor() Descriptor
	// Run executes one task payload. The context carries the task's time box;
	// implementations should honor ctx cancellation.
	Run(ctx context.Context, payload map[string]any) (map[string]any, error)
}

// Descriptor is the one-time capability descriptor of a provider.
type Descriptor struct {
	Description string `json:"description,omitempty"`
	// Deterministic providers always return the same result for the same
	// payload, which makes their tasks safe to replay in tests.
	Deterministic bool `json:"deterministic,omitempty"`
	// DefaultTimeoutMs is applied when a task carries no timeout of its own.
	DefaultTimeoutMs int `json:"default_timeout_ms,omitempty"`
}
