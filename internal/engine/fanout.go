package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/makr-code/VCC-Veritas-sub012/internal/executors"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// FanOutName is the registry name of the fan-out executor.
const FanOutName = "agents"

// FanOutExecutor exposes the Coordinator behind the uniform executor
// contract, so the scheduler stays unaware that a phase fans out internally.
// The task list arrives as a bound input, typically produced by an earlier
// selection phase.
type FanOutExecutor struct {
	coordinator *Coordinator
}

// NewFanOutExecutor creates a FanOutExecutor over the given coordinator.
func NewFanOutExecutor(coordinator *Coordinator) *FanOutExecutor {
	return &FanOutExecutor{coordinator: coordinator}
}

// Name returns the executor name.
func (f *FanOutExecutor) Name() string {
	return FanOutName
}

// Capabilities returns the registration descriptor.
func (f *FanOutExecutor) Capabilities() executors.Capabilities {
	return executors.Capabilities{
		Description: "dispatches sub-tasks with bounded concurrency and joins all results",
		Methods:     []string{"dispatch"},
		FanOut:      true,
	}
}

// Execute runs the "tasks" input through the coordinator and returns the
// merged batch as one output value, recorded atomically by the scheduler.
func (f *FanOutExecutor) Execute(ctx context.Context, method string, inputs map[string]any) (any, error) {
	tasks, err := parseTasks(inputs["tasks"])
	if err != nil {
		return nil, err
	}

	results, err := f.coordinator.Dispatch(ctx, tasks)
	if err != nil {
		return nil, err
	}

	succeeded := 0
	for _, r := range results {
		if r.Status == schema.AgentTaskSuccess {
			succeeded++
		}
	}

	return map[string]any{
		"results":   resultsToValues(results),
		"count":     len(results),
		"succeeded": succeeded,
		"failed":    len(results) - succeeded,
		"degraded":  succeeded < len(results),
	}, nil
}

// parseTasks coerces the bound "tasks" input into AgentTask specs.
// Tasks without an ID get one assigned.
func parseTasks(raw any) ([]schema.AgentTask, error) {
	if raw == nil {
		return nil, schema.NewError(schema.ErrCodeExecution,
			`fan-out executor requires a "tasks" input`)
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"invalid tasks input: %s", err.Error()).WithCause(err)
	}
	var tasks []schema.AgentTask
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"tasks input is not a task list: %s", err.Error()).WithCause(err)
	}

	for i := range tasks {
		if tasks[i].Capability == "" {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"task %d has no capability tag", i)
		}
		if tasks[i].ID == "" {
			tasks[i].ID = fmt.Sprintf("%s-%s", tasks[i].Capability, uuid.NewString()[:8])
		}
	}
	return tasks, nil
}

// resultsToValues converts results to plain JSON-shaped values so later
// phases can traverse them with path reads.
func resultsToValues(results []schema.AgentResult) []any {
	out := make([]any, 0, len(results))
	for _, r := range results {
		data, err := json.Marshal(r)
		if err != nil {
			continue
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

var _ executors.Executor = (*FanOutExecutor)(nil)
