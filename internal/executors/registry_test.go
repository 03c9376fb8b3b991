package executors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewStaticExecutor("stub", map[string]any{"ping": "pong"})))

	exec, err := r.Get("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", exec.Name())
	assert.True(t, r.Has("stub"))
	assert.Equal(t, 1, r.Count())
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewStaticExecutor("stub", nil)))

	err := r.Register(NewStaticExecutor("stub", nil))
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeConflict))
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("missing")
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExecutorNotFound))
}

func TestRegistry_ListSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewStaticExecutor("zeta", nil)))
	require.NoError(t, r.Register(NewStaticExecutor("alpha", nil)))

	infos := r.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "alpha", infos[0].Name)
	assert.Equal(t, "zeta", infos[1].Name)
}

func TestRegistry_FanOutFlag(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewStaticExecutor("stub", nil)))

	assert.False(t, r.FanOut("stub"))
	assert.False(t, r.FanOut("missing"))
}

func TestCapabilities_SupportsMethod(t *testing.T) {
	anyMethod := Capabilities{}
	assert.True(t, anyMethod.SupportsMethod("whatever"))

	narrow := Capabilities{Methods: []string{"analyze"}}
	assert.True(t, narrow.SupportsMethod("analyze"))
	assert.False(t, narrow.SupportsMethod("other"))
}

func TestRegistry_SupportsMethod(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewStaticExecutor("stub", map[string]any{
		"intake": map[string]any{"ok": true},
	})))

	assert.True(t, r.SupportsMethod("stub", "intake"))
	assert.False(t, r.SupportsMethod("stub", "analyze"))
	assert.False(t, r.SupportsMethod("missing", "intake"))
}

func TestStaticExecutor_Execute(t *testing.T) {
	exec := NewStaticExecutor("stub", map[string]any{
		"intake": map[string]any{"confidence": 0.9},
	})

	out, err := exec.Execute(context.Background(), "intake", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"confidence": 0.9}, out)

	_, err = exec.Execute(context.Background(), "unknown", nil)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeExecution))
}
