package runctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

func TestStore_RecordAndRead(t *testing.T) {
	s := New()
	require.NoError(t, s.Record("intake", map[string]any{"city": "Berlin"}))

	got, err := s.Read([]string{"intake", "city"})
	require.NoError(t, err)
	assert.Equal(t, "Berlin", got)
}

func TestStore_WriteOnce(t *testing.T) {
	s := New()
	require.NoError(t, s.Record("intake", map[string]any{"n": 1}))

	err := s.Record("intake", map[string]any{"n": 2})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConflict))

	// The first value is untouched.
	got, readErr := s.Read([]string{"intake", "n"})
	require.NoError(t, readErr)
	assert.Equal(t, 1, got)
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	s := New()
	err := s.Record("", "x")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestStore_ReadNestedPath(t *testing.T) {
	s := New()
	require.NoError(t, s.Record("analysis", map[string]any{
		"findings": []any{
			map[string]any{"severity": "high"},
			map[string]any{"severity": "low"},
		},
	}))

	got, err := s.Read([]string{"analysis", "findings", "1", "severity"})
	require.NoError(t, err)
	assert.Equal(t, "low", got)
}

func TestStore_ReadMissingRoot(t *testing.T) {
	s := New()
	_, err := s.Read([]string{"nothing"})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodePathNotFound))
}

func TestStore_ReadMissingSegment(t *testing.T) {
	s := New()
	require.NoError(t, s.Record("intake", map[string]any{"city": "Berlin"}))

	_, err := s.Read([]string{"intake", "country"})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodePathNotFound))
	assert.Contains(t, err.Error(), "intake.country")
}

func TestStore_ReadIndexOutOfRange(t *testing.T) {
	s := New()
	require.NoError(t, s.Record("list", []any{"a"}))

	_, err := s.Read([]string{"list", "3"})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodePathNotFound))
}

func TestStore_ReadNonTraversable(t *testing.T) {
	s := New()
	require.NoError(t, s.Record("scalar", 42))

	_, err := s.Read([]string{"scalar", "field"})
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodePathNotFound))
}

func TestStore_RecordFreezesValue(t *testing.T) {
	s := New()
	original := map[string]any{"n": 1}
	require.NoError(t, s.Record("intake", original))

	// Mutating the caller's map must not affect the stored copy.
	original["n"] = 99
	got, err := s.Read([]string{"intake", "n"})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestStore_ReadReturnsCopy(t *testing.T) {
	s := New()
	require.NoError(t, s.Record("intake", map[string]any{"n": 1}))

	first, err := s.Read([]string{"intake"})
	require.NoError(t, err)
	first.(map[string]any)["n"] = 99

	second, err := s.Read([]string{"intake", "n"})
	require.NoError(t, err)
	assert.Equal(t, 1, second)
}

func TestStore_RecordedOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.Record("a", 1))
	require.NoError(t, s.Record("b", 2))
	require.NoError(t, s.Record("c", 3))

	assert.Equal(t, []string{"a", "b", "c"}, s.Recorded())
	assert.True(t, s.Has("b"))
	assert.False(t, s.Has("d"))
}

func TestStore_Snapshot(t *testing.T) {
	s := New()
	require.NoError(t, s.Record("intake", map[string]any{"n": 1}))

	snap := s.Snapshot()
	snap["intake"].(map[string]any)["n"] = 99

	got, err := s.Read([]string{"intake", "n"})
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestParsePath(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "0"}, ParsePath("a.b.0"))
	assert.Equal(t, []string{"a"}, ParsePath("a"))
	assert.Nil(t, ParsePath(""))
}
