package engine

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/makr-code/VCC-Veritas-sub012/internal/runctx"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// FallbackSource is the provenance source name for the static fallback.
const FallbackSource = "fallback"

// Synthesizer merges the richest available output into one final response.
// Preference order: the fan-out synthesis phase, then the conclusion-bearing
// phases in configured priority, then the static fallback. Confidence is
// passed through verbatim from the chosen source; the synthesizer never
// blends or recomputes it.
type Synthesizer struct {
	spec   schema.SynthesisSpec
	logger *slog.Logger
}

// NewSynthesizer creates a Synthesizer for one run.
func NewSynthesizer(spec schema.SynthesisSpec, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{spec: spec, logger: logger}
}

// Synthesize reads the context store and produces the final result. It
// always returns an answer, even when every configured source is missing.
func (s *Synthesizer) Synthesize(ctx context.Context, ctxStore *runctx.Store, phases map[string]*PhaseResult, cfg *schema.PipelineConfig) *schema.SynthesisResult {
	byKey := phasesByStoreKey(cfg, phases)

	result := &schema.SynthesisResult{}
	firstChoice := s.firstChoice()

	sources := make([]string, 0, 1+len(s.spec.ConclusionSources))
	if s.spec.PrimarySource != "" {
		sources = append(sources, s.spec.PrimarySource)
	}
	sources = append(sources, s.spec.ConclusionSources...)

	for _, source := range sources {
		status, payload := sourceStatus(ctxStore, byKey, source)
		result.Provenance = append(result.Provenance, schema.ProvenanceEntry{
			Source: source,
			Status: status,
		})
		if status == schema.ProvenanceSuccess {
			result.Payload = payload
			result.Confidence = extractConfidence(payload)
			result.Degraded = source != firstChoice
			return result
		}
	}

	// Static fallback: the pipeline still answers.
	fallback := s.spec.Fallback
	if fallback == nil {
		fallback = map[string]any{}
	}
	result.Provenance = append(result.Provenance, schema.ProvenanceEntry{
		Source: FallbackSource,
		Status: schema.ProvenanceSuccess,
	})
	result.Payload = fallback
	result.Confidence = s.spec.FallbackConfidence
	result.Degraded = firstChoice != ""
	s.logger.WarnContext(ctx, "synthesis fell back to static payload",
		slog.Int("sources_considered", len(sources)))
	return result
}

// firstChoice is the source whose unavailability flips the degraded flag.
func (s *Synthesizer) firstChoice() string {
	if s.spec.PrimarySource != "" {
		return s.spec.PrimarySource
	}
	if len(s.spec.ConclusionSources) > 0 {
		return s.spec.ConclusionSources[0]
	}
	return ""
}

// sourceStatus classifies one candidate source and fetches its payload.
func sourceStatus(ctxStore *runctx.Store, byKey map[string]*PhaseResult, source string) (schema.ProvenanceStatus, any) {
	pr, known := byKey[source]
	if known && pr.Status == schema.PhaseStatusSkipped {
		return schema.ProvenanceSkipped, nil
	}
	if known && (pr.Status == schema.PhaseStatusFailed || pr.Degraded) {
		return schema.ProvenanceFailure, nil
	}
	if !ctxStore.Has(source) {
		return schema.ProvenanceSkipped, nil
	}
	payload, err := ctxStore.Read([]string{source})
	if err != nil {
		return schema.ProvenanceFailure, nil
	}
	return schema.ProvenanceSuccess, payload
}

// phasesByStoreKey indexes phase results by their output key.
func phasesByStoreKey(cfg *schema.PipelineConfig, phases map[string]*PhaseResult) map[string]*PhaseResult {
	byKey := make(map[string]*PhaseResult, len(phases))
	for i := range cfg.Phases {
		spec := &cfg.Phases[i]
		if pr, ok := phases[spec.ID]; ok {
			byKey[spec.StoreKey()] = pr
		}
	}
	return byKey
}

// extractConfidence pulls a verbatim confidence figure out of a payload map.
// Absent or non-numeric confidence reports as zero.
func extractConfidence(payload any) float64 {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0
	}
	switch v := m["confidence"].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
