package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

func TestPhaseState_HappyPath(t *testing.T) {
	st := newPhaseState("p1")
	require.NoError(t, st.transition(schema.PhaseStatusResolving))
	require.NoError(t, st.transition(schema.PhaseStatusExecuting))
	require.NoError(t, st.transition(schema.PhaseStatusRecorded))
	assert.True(t, IsTerminalPhase(st.status))
}

func TestPhaseState_SkipPaths(t *testing.T) {
	// Condition false: straight from pending.
	st := newPhaseState("p1")
	require.NoError(t, st.transition(schema.PhaseStatusSkipped))

	// Optional resolution failure.
	st = newPhaseState("p2")
	require.NoError(t, st.transition(schema.PhaseStatusResolving))
	require.NoError(t, st.transition(schema.PhaseStatusSkipped))

	// Cancellation mid-execution.
	st = newPhaseState("p3")
	require.NoError(t, st.transition(schema.PhaseStatusResolving))
	require.NoError(t, st.transition(schema.PhaseStatusExecuting))
	require.NoError(t, st.transition(schema.PhaseStatusSkipped))
}

func TestPhaseState_InvalidTransitions(t *testing.T) {
	// Pending cannot jump straight to executing or recorded.
	st := newPhaseState("p1")
	err := st.transition(schema.PhaseStatusExecuting)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidTransition))

	err = st.transition(schema.PhaseStatusRecorded)
	require.Error(t, err)

	// Terminal states never move again.
	st = newPhaseState("p2")
	require.NoError(t, st.transition(schema.PhaseStatusSkipped))
	err = st.transition(schema.PhaseStatusResolving)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidTransition))
}

func TestRunState_Lifecycle(t *testing.T) {
	run := newRunState("r1")
	require.NoError(t, run.transition(schema.RunStatusActive))
	require.NoError(t, run.transition(schema.RunStatusCompleted))
	assert.True(t, IsTerminalRun(run.status))

	err := run.transition(schema.RunStatusAborted)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidTransition))
}

func TestRunState_CancelBeforeStart(t *testing.T) {
	run := newRunState("r1")
	require.NoError(t, run.transition(schema.RunStatusCancelled))
	assert.True(t, IsTerminalRun(run.status))
}

func TestRunState_InvalidFromPending(t *testing.T) {
	run := newRunState("r1")
	err := run.transition(schema.RunStatusCompleted)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidTransition))
}

func TestTerminalClassification(t *testing.T) {
	assert.False(t, IsTerminalPhase(schema.PhaseStatusPending))
	assert.False(t, IsTerminalPhase(schema.PhaseStatusResolving))
	assert.False(t, IsTerminalPhase(schema.PhaseStatusExecuting))
	assert.True(t, IsTerminalPhase(schema.PhaseStatusFailed))

	assert.False(t, IsTerminalRun(schema.RunStatusPending))
	assert.False(t, IsTerminalRun(schema.RunStatusActive))
	assert.True(t, IsTerminalRun(schema.RunStatusAborted))
	assert.True(t, IsTerminalRun(schema.RunStatusCancelled))
}
