package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/makr-code/VCC-Veritas-sub012/internal/executors"
	"github.com/makr-code/VCC-Veritas-sub012/internal/expressions"
	"github.com/makr-code/VCC-Veritas-sub012/internal/logging"
	"github.com/makr-code/VCC-Veritas-sub012/internal/resolve"
	"github.com/makr-code/VCC-Veritas-sub012/internal/runctx"
	"github.com/makr-code/VCC-Veritas-sub012/internal/store"
	"github.com/makr-code/VCC-Veritas-sub012/internal/validation"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// RunResult is the full outcome of one pipeline run.
type RunResult struct {
	RunID       string                  `json:"run_id"`
	Status      schema.RunStatus        `json:"status"`
	Phases      map[string]*PhaseResult `json:"phases"`
	Synthesis   *schema.SynthesisResult `json:"synthesis,omitempty"`
	Error       *schema.PipelineError   `json:"error,omitempty"`
	StartedAt   time.Time               `json:"started_at"`
	CompletedAt time.Time               `json:"completed_at"`
}

// PhaseResult summarizes the terminal state of a single phase.
type PhaseResult struct {
	PhaseID    string                `json:"phase_id"`
	Status     schema.PhaseStatus    `json:"status"`
	Output     any                   `json:"output,omitempty"`
	Degraded   bool                  `json:"degraded,omitempty"`
	SkipReason string                `json:"skip_reason,omitempty"`
	Error      *schema.PipelineError `json:"error,omitempty"`
	DurationMs int64                 `json:"duration_ms,omitempty"`
}

// Scheduler drives the ordered walk over pipeline phases. Phases execute
// strictly one at a time in declared order; the only internal parallelism
// lives inside fan-out executors. The context store is exclusively owned by
// the scheduler (single writer).
type Scheduler struct {
	executors *executors.Registry
	engines   *expressions.Set
	resolver  *resolve.Resolver
	recorder  store.RunRecorder
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler. recorder may be nil (run history off).
func NewScheduler(registry *executors.Registry, engines *expressions.Set, recorder store.RunRecorder, logger *slog.Logger) *Scheduler {
	if recorder == nil {
		recorder = store.NopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		executors: registry,
		engines:   engines,
		resolver:  resolve.New(engines),
		recorder:  recorder,
		logger:    logger,
	}
}

// Execute validates the pipeline and runs it to a terminal run status.
// It returns a non-nil RunResult whenever the run started; the error is
// non-nil for configuration failures, aborts, and cancellation.
func (s *Scheduler) Execute(ctx context.Context, cfg *schema.PipelineConfig, input map[string]any) (*RunResult, error) {
	if vr := validation.Validate(cfg, s.executors, s.engines); !vr.Valid() {
		// The run never starts on an invalid definition.
		return nil, vr.ToError()
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	started := time.Now().UTC()

	run := newRunState(runID)
	_ = run.transition(schema.RunStatusActive)

	result := &RunResult{
		RunID:     runID,
		Status:    run.status,
		Phases:    make(map[string]*PhaseResult, len(cfg.Phases)),
		StartedAt: started,
	}

	if input == nil {
		input = map[string]any{}
	}
	inputJSON, _ := json.Marshal(input)
	if err := s.recorder.RunStarted(ctx, &store.RunRecord{
		ID:              runID,
		PipelineVersion: cfg.Version,
		ExecutionMode:   cfg.Flags.ExecutionMode,
		Status:          string(schema.RunStatusActive),
		Input:           inputJSON,
		StartedAt:       started,
	}); err != nil {
		// Run history is best-effort; the run proceeds without it.
		s.logger.WarnContext(ctx, "run recorder unavailable", slog.String("error", err.Error()))
	}

	ctxStore := runctx.New()
	if err := ctxStore.Record(runctx.InputKey, input); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "pipeline run started",
		slog.Int("phases", len(cfg.Phases)),
		slog.String("execution_mode", cfg.Flags.ExecutionMode))

	var seq int64
	for _, phase := range sortedPhases(cfg) {
		if ctx.Err() != nil {
			_ = run.transition(schema.RunStatusCancelled)
			result.Error = schema.NewError(schema.ErrCodeCancelled, "run cancelled").
				WithCause(ctx.Err())
			break
		}

		pr := s.runPhase(ctx, &phase, cfg.Flags, ctxStore)
		result.Phases[phase.ID] = pr

		seq++
		s.recordPhaseEvent(ctx, runID, pr, seq)

		if pr.Error != nil {
			_ = run.transition(schema.RunStatusAborted)
			result.Error = pr.Error
			break
		}
		if pr.Status == schema.PhaseStatusSkipped && ctx.Err() != nil {
			// Skipped because cancellation landed mid-execution.
			_ = run.transition(schema.RunStatusCancelled)
			result.Error = schema.NewError(schema.ErrCodeCancelled, "run cancelled").
				WithCause(ctx.Err())
			break
		}
	}

	if run.status == schema.RunStatusActive {
		_ = run.transition(schema.RunStatusCompleted)
		synth := NewSynthesizer(cfg.Synthesis, s.logger)
		result.Synthesis = synth.Synthesize(ctx, ctxStore, result.Phases, cfg)
	}
	result.Status = run.status
	result.CompletedAt = time.Now().UTC()

	s.finishRun(ctx, result)

	switch result.Status {
	case schema.RunStatusCompleted:
		return result, nil
	default:
		return result, result.Error
	}
}

// runPhase walks one phase through Pending → Skipped | Resolving →
// Executing → Recorded | Failed. A returned result with a non-nil Error
// aborts the run.
func (s *Scheduler) runPhase(ctx context.Context, phase *schema.PhaseSpec, flags schema.GlobalFlags, ctxStore *runctx.Store) *PhaseResult {
	ctx = logging.WithPhaseID(ctx, phase.ID)
	start := time.Now()

	st := newPhaseState(phase.ID)
	pr := &PhaseResult{PhaseID: phase.ID, Status: schema.PhaseStatusPending}
	defer func() {
		pr.Status = st.status
		pr.DurationMs = time.Since(start).Milliseconds()
	}()

	// Skip-check: evaluate the enabled-condition against the current flags
	// and recorded outputs. A disabled phase never resolves, executes, or
	// writes to the store.
	if phase.EnabledIf != "" {
		enabled, err := s.evalCondition(ctx, phase.EnabledIf, flags, ctxStore)
		if err != nil {
			_ = st.transition(schema.PhaseStatusResolving)
			if phase.Optional {
				_ = st.transition(schema.PhaseStatusSkipped)
				pr.SkipReason = "condition error: " + err.Error()
				return pr
			}
			_ = st.transition(schema.PhaseStatusFailed)
			pr.Error = asPhaseError(err, phase.ID)
			return pr
		}
		if !enabled {
			_ = st.transition(schema.PhaseStatusSkipped)
			pr.SkipReason = "condition evaluated to false"
			s.logger.DebugContext(ctx, "phase skipped by condition")
			return pr
		}
	}

	// Resolve inputs from the store snapshot.
	if err := st.transition(schema.PhaseStatusResolving); err != nil {
		pr.Error = asPhaseError(err, phase.ID)
		return pr
	}
	bound, err := s.resolver.Resolve(ctx, phase, ctxStore, flags)
	if err != nil {
		if phase.Optional {
			_ = st.transition(schema.PhaseStatusSkipped)
			pr.SkipReason = err.Error()
			s.logger.InfoContext(ctx, "optional phase skipped",
				slog.String("reason", err.Error()))
			return pr
		}
		_ = st.transition(schema.PhaseStatusFailed)
		pr.Error = asPhaseError(err, phase.ID)
		return pr
	}

	// Dispatch. A registry miss here is an internal-consistency error;
	// validation already checked the name.
	exec, err := s.executors.Get(phase.Executor)
	if err != nil {
		_ = st.transition(schema.PhaseStatusFailed)
		pr.Error = asPhaseError(err, phase.ID)
		return pr
	}

	if err := st.transition(schema.PhaseStatusExecuting); err != nil {
		pr.Error = asPhaseError(err, phase.ID)
		return pr
	}

	phaseCtx := ctx
	var cancel context.CancelFunc
	if phase.TimeoutMs > 0 {
		phaseCtx, cancel = context.WithTimeout(ctx, time.Duration(phase.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	output, execErr := exec.Execute(phaseCtx, phase.Method, bound)
	if execErr != nil {
		// Run-level cancellation mid-execution: nothing is recorded.
		if ctx.Err() != nil {
			_ = st.transition(schema.PhaseStatusSkipped)
			pr.SkipReason = "cancelled mid-execution"
			return pr
		}
		if phase.Optional {
			// Degraded output keeps later phases resolvable.
			degraded := map[string]any{
				"degraded": true,
				"error":    execErr.Error(),
			}
			if recErr := ctxStore.Record(phase.StoreKey(), degraded); recErr != nil {
				_ = st.transition(schema.PhaseStatusFailed)
				pr.Error = asPhaseError(recErr, phase.ID)
				return pr
			}
			_ = st.transition(schema.PhaseStatusRecorded)
			pr.Degraded = true
			pr.Output = degraded
			s.logger.WarnContext(ctx, "optional phase degraded",
				slog.String("error", execErr.Error()))
			return pr
		}
		_ = st.transition(schema.PhaseStatusFailed)
		pr.Error = wrapExecError(execErr, phase, phaseCtx)
		return pr
	}

	if err := ctxStore.Record(phase.StoreKey(), output); err != nil {
		_ = st.transition(schema.PhaseStatusFailed)
		pr.Error = asPhaseError(err, phase.ID)
		return pr
	}
	_ = st.transition(schema.PhaseStatusRecorded)
	pr.Output = output
	return pr
}

// evalCondition evaluates an enabled_if expression with the CEL engine.
func (s *Scheduler) evalCondition(ctx context.Context, expression string, flags schema.GlobalFlags, ctxStore *runctx.Store) (bool, error) {
	engine, err := s.engines.Get("cel")
	if err != nil {
		return false, err
	}
	cel, ok := engine.(*expressions.CELEngine)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeConfig,
			"engine %q does not evaluate conditions", engine.Name())
	}
	snapshot := ctxStore.Snapshot()
	inputs, _ := snapshot[runctx.InputKey].(map[string]any)
	return cel.EvaluateBool(ctx, expression, map[string]any{
		"flags":  flags.Map(),
		"phases": snapshot,
		"inputs": inputs,
	})
}

// recordPhaseEvent appends a terminal phase outcome to the run history.
// Only terminal statuses are persisted.
func (s *Scheduler) recordPhaseEvent(ctx context.Context, runID string, pr *PhaseResult, seq int64) {
	if !IsTerminalPhase(pr.Status) {
		return
	}
	outputJSON, _ := json.Marshal(pr.Output)
	errMsg := pr.SkipReason
	if pr.Error != nil {
		errMsg = pr.Error.Error()
	}
	if err := s.recorder.PhaseFinished(ctx, &store.PhaseEvent{
		RunID:      runID,
		PhaseID:    pr.PhaseID,
		Status:     string(pr.Status),
		Output:     outputJSON,
		Error:      errMsg,
		DurationMs: pr.DurationMs,
		Sequence:   seq,
		Timestamp:  time.Now().UTC(),
	}); err != nil {
		s.logger.WarnContext(ctx, "phase event not recorded", slog.String("error", err.Error()))
	}
}

// finishRun marks the run terminal in the history and logs the outcome.
// Only terminal statuses are persisted.
func (s *Scheduler) finishRun(ctx context.Context, result *RunResult) {
	if !IsTerminalRun(result.Status) {
		return
	}
	var synthesisJSON json.RawMessage
	if result.Synthesis != nil {
		synthesisJSON, _ = json.Marshal(result.Synthesis)
	}
	errMsg := ""
	if result.Error != nil {
		errMsg = result.Error.Error()
	}
	if err := s.recorder.RunFinished(ctx, result.RunID, string(result.Status), synthesisJSON, errMsg); err != nil {
		s.logger.WarnContext(ctx, "run completion not recorded", slog.String("error", err.Error()))
	}

	s.logger.InfoContext(ctx, "pipeline run finished",
		slog.String("status", string(result.Status)),
		slog.Duration("elapsed", result.CompletedAt.Sub(result.StartedAt)))
}

// sortedPhases returns the phases in declared order. The sort is stable;
// validation guarantees strictly increasing order values.
func sortedPhases(cfg *schema.PipelineConfig) []schema.PhaseSpec {
	phases := make([]schema.PhaseSpec, len(cfg.Phases))
	copy(phases, cfg.Phases)
	sort.SliceStable(phases, func(i, j int) bool {
		return phases[i].Order < phases[j].Order
	})
	return phases
}

// asPhaseError coerces an error to a PipelineError tagged with the phase ID.
func asPhaseError(err error, phaseID string) *schema.PipelineError {
	var pe *schema.PipelineError
	if errors.As(err, &pe) {
		if pe.PhaseID == "" {
			pe.PhaseID = phaseID
		}
		return pe
	}
	return schema.NewError(schema.ErrCodeExecution, err.Error()).
		WithPhase(phaseID).
		WithCause(err)
}

// wrapExecError wraps an executor failure (or timeout) as PHASE_EXECUTION.
func wrapExecError(execErr error, phase *schema.PhaseSpec, phaseCtx context.Context) *schema.PipelineError {
	details := map[string]any{"executor": phase.Executor, "method": phase.Method}
	if phaseCtx.Err() == context.DeadlineExceeded {
		details["timeout_ms"] = phase.TimeoutMs
	}
	return schema.NewErrorf(schema.ErrCodePhaseExecution,
		"executor %q failed: %s", phase.Executor, execErr.Error()).
		WithPhase(phase.ID).
		WithCause(execErr).
		WithDetails(details)
}
