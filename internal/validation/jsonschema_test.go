package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

const validDocument = `{
  "version": "1.0",
  "global_flags": {"fan_out_enabled": false, "max_parallel": 2},
  "phases": [
    {"id": "intake", "order": 1, "executor": "static", "method": "intake"},
    {
      "id": "analysis", "order": 2, "executor": "static", "method": "analyze",
      "inputs": [{"param": "query", "path": "intake.query"}]
    }
  ],
  "synthesis": {"conclusion_sources": ["analysis"], "fallback_confidence": 0.1}
}`

func newValidator(t *testing.T) *DocumentValidator {
	t.Helper()
	v, err := NewDocumentValidator()
	require.NoError(t, err)
	return v
}

func TestValidateDocument_Valid(t *testing.T) {
	v := newValidator(t)
	assert.NoError(t, v.ValidateDocument([]byte(validDocument)))
}

func TestValidateDocument_NotJSON(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDocument([]byte(`{broken`))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConfig))
}

func TestValidateDocument_MissingVersion(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDocument([]byte(`{"phases": [{"id": "a", "order": 1, "executor": "x", "method": "m"}]}`))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConfig))
}

func TestValidateDocument_EmptyPhases(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDocument([]byte(`{"version": "1.0", "phases": []}`))
	require.Error(t, err)
}

func TestValidateDocument_UnknownEngineEnum(t *testing.T) {
	v := newValidator(t)
	doc := `{
	  "version": "1.0",
	  "phases": [{
	    "id": "a", "order": 1, "executor": "x", "method": "m",
	    "inputs": [{"param": "p", "engine": "lua", "expression": "1"}]
	  }]
	}`
	err := v.ValidateDocument([]byte(doc))
	require.Error(t, err)
}

func TestValidateDocument_UnknownTopLevelField(t *testing.T) {
	v := newValidator(t)
	err := v.ValidateDocument([]byte(`{"version": "1.0", "phases": [{"id": "a", "order": 1, "executor": "x", "method": "m"}], "bogus": 1}`))
	require.Error(t, err)
}

func TestParseDocument_EndToEnd(t *testing.T) {
	v := newValidator(t)
	cfg, err := v.ParseDocument([]byte(validDocument), newMockLookup("static"), testEngines(t))
	require.NoError(t, err)
	require.Len(t, cfg.Phases, 2)
	assert.Equal(t, "intake", cfg.Phases[0].ID)
	assert.Equal(t, 2, cfg.Flags.MaxParallel)
	assert.Equal(t, []string{"analysis"}, cfg.Synthesis.ConclusionSources)
}

func TestParseDocument_SemanticRejection(t *testing.T) {
	v := newValidator(t)
	// Schema-valid but semantically broken: executor not registered.
	_, err := v.ParseDocument([]byte(validDocument), newMockLookup("other"), testEngines(t))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConfig))
}
