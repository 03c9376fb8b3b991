package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/makr-code/VCC-Veritas-sub012/internal/agents"
	"github.com/makr-code/VCC-Veritas-sub012/internal/logging"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// DefaultMaxParallel is the fan-out concurrency cap when none is configured.
const DefaultMaxParallel = 5

// DefaultTaskTimeout bounds a task whose spec and provider carry no timeout.
const DefaultTaskTimeout = 30 * time.Second

// Coordinator runs independent sub-tasks with bounded concurrency and joins
// on all terminal results. An individual task failure or timeout never fails
// the batch; it is captured as a terminal AgentResult instead. The
// coordinator returns only after every task is terminal.
type Coordinator struct {
	providers   *agents.Registry
	maxParallel int
	logger      *slog.Logger
}

// NewCoordinator creates a Coordinator over the given provider registry.
func NewCoordinator(providers *agents.Registry, maxParallel int, logger *slog.Logger) *Coordinator {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		providers:   providers,
		maxParallel: maxParallel,
		logger:      logger,
	}
}

// Dispatch executes all tasks with at most maxParallel running concurrently
// and returns one AgentResult per task, in task order. On cancellation it
// stops starting new tasks, marks the remainder as failed, and returns the
// collected results alongside a CANCELLED error.
func (c *Coordinator) Dispatch(ctx context.Context, tasks []schema.AgentTask) ([]schema.AgentResult, error) {
	if len(tasks) == 0 {
		return []schema.AgentResult{}, nil
	}

	// Empty catalog with fan-out required: degrade, do not abort the run.
	if c.providers.Count() == 0 {
		c.logger.WarnContext(ctx, "no agent providers registered, returning degraded result")
		return []schema.AgentResult{{
			TaskID: "degraded",
			Status: schema.AgentTaskFailure,
			Error:  "no agents available",
		}}, nil
	}

	pool := NewTaskPool(c.maxParallel)
	defer pool.Shutdown()

	results := make([]schema.AgentResult, len(tasks))

	cancelled := -1
	for i := range tasks {
		if ctx.Err() != nil {
			cancelled = i
			break
		}
		idx := i
		task := tasks[i]
		err := pool.Submit(ctx, func(taskCtx context.Context) error {
			// Each slot writes only its own index, so no lock is needed.
			results[idx] = c.runTask(taskCtx, task)
			if results[idx].Status != schema.AgentTaskSuccess {
				return errors.New(results[idx].Error)
			}
			return nil
		})
		if err != nil {
			cancelled = i
			break
		}
	}

	// True join: no task is left running past this point.
	pool.Wait()

	if cancelled >= 0 {
		for i := cancelled; i < len(tasks); i++ {
			results[i] = schema.AgentResult{
				TaskID:     tasks[i].ID,
				Capability: tasks[i].Capability,
				Status:     schema.AgentTaskFailure,
				Error:      "cancelled before start",
			}
		}
		return results, schema.NewError(schema.ErrCodeCancelled, "fan-out cancelled mid-batch").
			WithCause(ctx.Err())
	}

	return results, nil
}

// runTask executes one task to a terminal status. Provider errors, panics,
// and timeouts all become result statuses rather than propagating.
func (c *Coordinator) runTask(ctx context.Context, task schema.AgentTask) schema.AgentResult {
	start := time.Now()

	result := schema.AgentResult{
		TaskID:     task.ID,
		Capability: task.Capability,
	}

	provider, ok := c.providers.Get(task.Capability)
	if !ok {
		result.Status = schema.AgentTaskFailure
		result.Error = fmt.Sprintf("no provider registered for capability %q", task.Capability)
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	timeout := taskTimeout(task, provider.Descriptor())
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	taskCtx = logging.WithTaskID(taskCtx, task.ID)

	type outcome struct {
		payload map[string]any
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		payload, err := provider.Run(taskCtx, task.Payload)
		done <- outcome{payload: payload, err: err}
	}()

	select {
	case out := <-done:
		result.DurationMs = time.Since(start).Milliseconds()
		switch {
		case out.err == nil:
			result.Status = schema.AgentTaskSuccess
			result.Payload = out.payload
		case errors.Is(out.err, context.DeadlineExceeded) || taskCtx.Err() == context.DeadlineExceeded:
			result.Status = schema.AgentTaskTimedOut
			result.Error = fmt.Sprintf("task timed out after %s", timeout)
		default:
			result.Status = schema.AgentTaskFailure
			result.Error = out.err.Error()
		}
	case <-taskCtx.Done():
		// The provider goroutine is abandoned; the buffered channel lets it
		// finish without blocking.
		result.DurationMs = time.Since(start).Milliseconds()
		if taskCtx.Err() == context.DeadlineExceeded {
			result.Status = schema.AgentTaskTimedOut
			result.Error = fmt.Sprintf("task timed out after %s", timeout)
		} else {
			result.Status = schema.AgentTaskFailure
			result.Error = "cancelled"
		}
	}

	if result.Status != schema.AgentTaskSuccess {
		c.logger.WarnContext(taskCtx, "task reached non-success terminal state",
			slog.String("status", string(result.Status)),
			slog.String("error", result.Error))
	}

	return result
}

// taskTimeout picks the task's own timeout, then the provider's registered
// default, then the coordinator-wide default.
func taskTimeout(task schema.AgentTask, desc agents.Descriptor) time.Duration {
	if task.TimeoutMs > 0 {
		return time.Duration(task.TimeoutMs) * time.Millisecond
	}
	if desc.DefaultTimeoutMs > 0 {
		return time.Duration(desc.DefaultTimeoutMs) * time.Millisecond
	}
	return DefaultTaskTimeout
}
