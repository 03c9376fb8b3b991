package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/makr-code/VCC-Veritas-sub012/internal/engine"
	"github.com/makr-code/VCC-Veritas-sub012/pkg/schema"
)

// Runner is the interface the scheduler uses to execute pipelines.
// Satisfied by engine.Scheduler.
type Runner interface {
	Execute(ctx context.Context, cfg *schema.PipelineConfig, input map[string]any) (*engine.RunResult, error)
}

// Job is a pipeline run on a cron expression.
type Job struct {
	ID             string
	CronExpression string
	Config         *schema.PipelineConfig
	Input          map[string]any
	Enabled        bool

	LastRunAt     *time.Time
	NextRunAt     *time.Time
	LastRunStatus string
}

// Scheduler runs registered jobs when their cron expression is due.
type Scheduler struct {
	runner Runner
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	jobsMu sync.Mutex
	jobs   map[string]*Job

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(runner Runner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		jobs:     make(map[string]*Job),
		inflight: make(map[string]struct{}),
	}
}

// Add registers a job. The cron expression is parsed eagerly so callers get
// configuration errors up front.
func (s *Scheduler) Add(job *Job) error {
	if job.ID == "" {
		return schema.NewError(schema.ErrCodeConfig, "scheduled job requires an id")
	}
	if job.Config == nil {
		return schema.NewErrorf(schema.ErrCodeConfig, "scheduled job %q requires a pipeline config", job.ID)
	}
	next, err := s.CalculateNextRun(job.CronExpression, time.Now().UTC())
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeConfig, "scheduled job %q: %v", job.ID, err)
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "scheduled job %q already registered", job.ID)
	}
	job.NextRunAt = &next
	s.jobs[job.ID] = job
	return nil
}

// Remove unregisters a job. Removing an unknown job is a no-op.
func (s *Scheduler) Remove(id string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	delete(s.jobs, id)
}

// Jobs returns a snapshot of registered jobs sorted by ID.
func (s *Scheduler) Jobs() []*Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Start launches the background scheduling loop with a 60s ticker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	// Run an initial tick immediately.
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick checks all enabled jobs and runs those that are due.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now().UTC()
	for _, job := range s.due(now) {
		if !s.tryAcquire(job.ID) {
			continue // already running (dedup)
		}
		if err := s.runJob(ctx, job, now); err != nil {
			s.logger.Error("failed to run scheduled job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		s.release(job.ID)
	}
}

// due returns enabled jobs whose next run time has passed.
func (s *Scheduler) due(now time.Time) []*Job {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	var out []*Job
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		if job.NextRunAt == nil || !job.NextRunAt.After(now) {
			out = append(out, job)
		}
	}
	return out
}

// runJob executes a scheduled job's pipeline and updates its timestamps.
func (s *Scheduler) runJob(ctx context.Context, job *Job, now time.Time) error {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("pipeline_version", job.Config.Version),
	)

	_, err := s.runner.Execute(ctx, job.Config, job.Input)
	status := "success"
	if err != nil {
		status = "error"
		s.logger.Error("scheduled job execution failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	return s.updateJobStatus(job, now, status)
}

func (s *Scheduler) updateJobStatus(job *Job, now time.Time, status string) error {
	nextRun, err := s.CalculateNextRun(job.CronExpression, now)
	if err != nil {
		return fmt.Errorf("calculate next run for job %q: %w", job.ID, err)
	}

	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	ts := now
	job.LastRunAt = &ts
	job.NextRunAt = &nextRun
	job.LastRunStatus = status
	return nil
}

// tryAcquire returns true and marks the job as in-flight if it is not already running.
func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

// release removes the job from the in-flight set.
func (s *Scheduler) release(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
