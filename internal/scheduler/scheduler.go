package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/agentflow/internal/store"
	"github.com/rendis/agentflow/pkg/schema"
)

// WorkflowRunner is the interface the scheduler uses to run workflows.
// Satisfied by the orchestrator (avoids import cycle).
type WorkflowRunner interface {
	ExecuteWorkflow(ctx context.Context, name string, input any) (*schema.ExecutionRecord, error)
}

// Scheduler polls the store for due scheduled jobs and runs their
// workflows. A job is due when its cron schedule has a fire time between
// its last run (or creation) and now.
type Scheduler struct {
	store  store.Store
	runner WorkflowRunner
	parser cron.Parser
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.Mutex

	jobs sync.WaitGroup // in-flight job goroutines

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing (dedup)
}

// NewScheduler creates a new Scheduler.
func NewScheduler(s store.Store, runner WorkflowRunner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:    s,
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
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
	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick checks all enabled jobs and dispatches the due ones. Jobs run
// asynchronously; a job still running from a previous tick is skipped.
func (s *Scheduler) Tick(ctx context.Context) {
	enabled := true
	jobs, err := s.store.ListScheduledJobs(ctx, store.ScheduledJobFilter{Enabled: &enabled})
	if err != nil {
		s.logger.Error("failed to list scheduled jobs", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	for _, job := range jobs {
		due, err := s.isDue(job, now)
		if err != nil {
			s.logger.Error("bad cron expression",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !due {
			continue
		}
		if !s.tryAcquire(job.ID) {
			continue // already running (dedup)
		}
		// Each due job runs on its own goroutine so one slow workflow
		// never delays siblings or the next tick.
		s.jobs.Add(1)
		go func(job *store.ScheduledJob) {
			defer s.jobs.Done()
			defer s.releaseJob(job.ID)
			if err := s.runJob(ctx, job, now); err != nil {
				s.logger.Error("failed to run scheduled job",
					slog.String("job_id", job.ID),
					slog.String("error", err.Error()),
				)
			}
		}(job)
	}
}

// isDue reports whether the job's schedule has a fire time at or before now.
func (s *Scheduler) isDue(job *store.ScheduledJob, now time.Time) (bool, error) {
	from := job.CreatedAt
	if job.LastRunAt != nil {
		from = *job.LastRunAt
	}
	next, err := s.NextRun(job.CronExpression, from)
	if err != nil {
		return false, err
	}
	return !next.After(now), nil
}

// runJob executes a scheduled job's workflow and updates its status.
func (s *Scheduler) runJob(ctx context.Context, job *store.ScheduledJob, now time.Time) error {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("workflow", job.Workflow),
	)

	var input any
	if len(job.Input) > 0 {
		if err := json.Unmarshal(job.Input, &input); err != nil {
			return s.updateJobStatus(ctx, job, now, schema.RunStatusFailed)
		}
	}

	rec, err := s.runner.ExecuteWorkflow(ctx, job.Workflow, input)
	status := schema.RunStatusCompleted
	if err != nil || rec == nil || rec.Status != schema.RunStatusCompleted {
		status = schema.RunStatusFailed
		s.logger.Error("scheduled job execution failed",
			slog.String("job_id", job.ID),
		)
	}

	return s.updateJobStatus(ctx, job, now, status)
}

func (s *Scheduler) updateJobStatus(ctx context.Context, job *store.ScheduledJob, now time.Time, status string) error {
	return s.store.UpdateScheduledJob(ctx, job.ID, store.ScheduledJobUpdate{
		LastRunAt:     &now,
		LastRunStatus: status,
	})
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

// releaseJob removes the job from the in-flight set.
func (s *Scheduler) releaseJob(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// NextRun computes the next fire time for a cron expression.
func (s *Scheduler) NextRun(cronExpr string, from time.Time) (time.Time, error) {
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
	s.jobs.Wait()
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}
