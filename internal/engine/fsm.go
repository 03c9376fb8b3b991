package engine

import (
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// ValidRunTransitions defines the allowed state transitions for a run.
var ValidRunTransitions = map[schema.RunStatus][]schema.RunStatus{
	schema.RunStatusPending:   {schema.RunStatusActive, schema.RunStatusCancelled},
	schema.RunStatusActive:    {schema.RunStatusCompleted, schema.RunStatusAborted, schema.RunStatusCancelled},
	schema.RunStatusCompleted: {},
	schema.RunStatusAborted:   {},
	schema.RunStatusCancelled: {},
}

// ValidPhaseTransitions defines the allowed per-phase state transitions.
// Skipped is reachable from Pending (condition false), Resolving (optional
// resolution failure), and Executing (cancellation mid-flight).
var ValidPhaseTransitions = map[schema.PhaseStatus][]schema.PhaseStatus{
	schema.PhaseStatusPending:   {schema.PhaseStatusResolving, schema.PhaseStatusSkipped},
	schema.PhaseStatusResolving: {schema.PhaseStatusExecuting, schema.PhaseStatusSkipped, schema.PhaseStatusFailed},
	schema.PhaseStatusExecuting: {schema.PhaseStatusRecorded, schema.PhaseStatusFailed, schema.PhaseStatusSkipped},
	schema.PhaseStatusRecorded:  {},
	schema.PhaseStatusSkipped:   {},
	schema.PhaseStatusFailed:    {},
}

// runState tracks a run through its lifecycle and enforces the table.
type runState struct {
	runID  string
	status schema.RunStatus
}

func newRunState(runID string) *runState {
	return &runState{runID: runID, status: schema.RunStatusPending}
}

func (s *runState) transition(to schema.RunStatus) error {
	if !isValidRunTransition(s.status, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid run transition: %s -> %s", s.status, to).
			WithDetails(map[string]any{"run_id": s.runID})
	}
	s.status = to
	return nil
}

// phaseState tracks one phase through the scheduler's state machine and
// enforces the transition table.
type phaseState struct {
	phaseID string
	status  schema.PhaseStatus
}

func newPhaseState(phaseID string) *phaseState {
	return &phaseState{phaseID: phaseID, status: schema.PhaseStatusPending}
}

// transition moves the phase to the target status, failing with
// INVALID_TRANSITION when the table does not allow it.
func (s *phaseState) transition(to schema.PhaseStatus) error {
	if !isValidPhaseTransition(s.status, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid phase transition: %s -> %s", s.status, to).
			WithPhase(s.phaseID)
	}
	s.status = to
	return nil
}

// IsTerminalPhase reports whether a phase status is terminal.
func IsTerminalPhase(s schema.PhaseStatus) bool {
	return s == schema.PhaseStatusRecorded ||
		s == schema.PhaseStatusSkipped ||
		s == schema.PhaseStatusFailed
}

// IsTerminalRun reports whether a run status is terminal.
func IsTerminalRun(s schema.RunStatus) bool {
	return len(ValidRunTransitions[s]) == 0
}

func isValidPhaseTransition(from, to schema.PhaseStatus) bool {
	for _, allowed := range ValidPhaseTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func isValidRunTransition(from, to schema.RunStatus) bool {
	for _, allowed := range ValidRunTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
