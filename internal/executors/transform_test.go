package executors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makr-code/VCC-Veritas-sub012/internal/expressions"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

func newTransform(t *testing.T) *TransformExecutor {
	t.Helper()
	set, err := expressions.DefaultSet()
	require.NoError(t, err)
	return NewTransformExecutor(set)
}

func TestTransform_ExprMethod(t *testing.T) {
	exec := newTransform(t)

	out, err := exec.Execute(context.Background(), "expr", map[string]any{
		"expression": `score * weight`,
		"score":      10,
		"weight":     3,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 30, out)
}

func TestTransform_JQMethod(t *testing.T) {
	exec := newTransform(t)

	out, err := exec.Execute(context.Background(), "jq", map[string]any{
		"expression": `.findings | map(.severity)`,
		"findings": []any{
			map[string]any{"severity": "high"},
			map[string]any{"severity": "low"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"high", "low"}, out)
}

func TestTransform_MissingExpression(t *testing.T) {
	exec := newTransform(t)

	_, err := exec.Execute(context.Background(), "expr", map[string]any{"x": 1})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExecution))
}

func TestTransform_NonStringExpression(t *testing.T) {
	exec := newTransform(t)

	_, err := exec.Execute(context.Background(), "expr", map[string]any{"expression": 7})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExecution))
}

func TestTransform_UnknownEngine(t *testing.T) {
	exec := newTransform(t)

	_, err := exec.Execute(context.Background(), "lua", map[string]any{"expression": `1`})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}
