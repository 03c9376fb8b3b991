package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineError_Error(t *testing.T) {
	err := NewError(ErrCodeValidation, "missing field")
	assert.Equal(t, "[VALIDATION_ERROR] missing field", err.Error())

	err = err.WithPhase("intake")
	assert.Equal(t, "[VALIDATION_ERROR] phase intake: missing field", err.Error())
}

func TestNewErrorf(t *testing.T) {
	err := NewErrorf(ErrCodePathNotFound, "path %q not found", "weather.temp")
	assert.Equal(t, ErrCodePathNotFound, err.Code)
	assert.Contains(t, err.Message, `"weather.temp"`)
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := NewError(ErrCodeStore, "insert failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestPipelineError_WithDetails(t *testing.T) {
	err := NewError(ErrCodeTimeout, "phase timed out").WithDetails(map[string]any{
		"timeout_ms": 50,
	})
	require.NotNil(t, err.Details)
	assert.Equal(t, 50, err.Details["timeout_ms"])
}

func TestHasCode(t *testing.T) {
	err := NewError(ErrCodeConflict, "duplicate key")
	assert.True(t, HasCode(err, ErrCodeConflict))
	assert.False(t, HasCode(err, ErrCodeValidation))

	wrapped := fmt.Errorf("recording output: %w", err)
	assert.True(t, HasCode(wrapped, ErrCodeConflict))

	assert.False(t, HasCode(errors.New("plain"), ErrCodeConflict))
	assert.False(t, HasCode(nil, ErrCodeConflict))
}

func TestPhaseSpec_StoreKey(t *testing.T) {
	p := &PhaseSpec{ID: "analysis"}
	assert.Equal(t, "analysis", p.StoreKey())

	p.OutputKey = "findings"
	assert.Equal(t, "findings", p.StoreKey())
}

func TestGlobalFlags_Map(t *testing.T) {
	m := GlobalFlags{FanOutEnabled: true, MaxParallel: 3, ExecutionMode: "mock"}.Map()
	assert.Equal(t, true, m["fan_out_enabled"])
	assert.Equal(t, 3, m["max_parallel"])
	assert.Equal(t, "mock", m["execution_mode"])
}

func TestInputBinding_HasDefault(t *testing.T) {
	b := &InputBinding{Param: "city", Path: "input.city"}
	assert.False(t, b.HasDefault())

	b.Default = []byte(`"Berlin"`)
	assert.True(t, b.HasDefault())
}
