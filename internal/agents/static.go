package agents

import "context"

// StaticProvider answers every task with a fixed payload. It backs mock-mode
// pipelines and is the explicit degraded-result provider for capabilities
// whose real collaborator is unavailable, keeping the no-provider path
// visible in provenance instead of hidden behind an ad hoc branch.
type StaticProvider struct {
	capability string
	payload    map[string]any
	descriptor Descriptor
}

// NewStaticProvider creates a provider returning the given payload.
func NewStaticProvider(capability string, payload map[string]any) *StaticProvider {
	return &StaticProvider{
		capability: capability,
		payload:    payload,
		descriptor: Descriptor{
			Description:   "static payload provider",
			Deterministic: true,
		},
	}
}

// Capability returns the provider's capability tag.
func (s *StaticProvider) Capability() string {
	return s.capability
}

// Descriptor returns the one-time capability descriptor.
func (s *StaticProvider) Descriptor() Descriptor {
	return s.descriptor
}

// Run returns a copy of the configured payload.
func (s *StaticProvider) Run(ctx context.Context, payload map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(s.payload))
	for k, v := range s.payload {
		out[k] = v
	}
	return out, nil
}

var _ Provider = (*StaticProvider)(nil)
