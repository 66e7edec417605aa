package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkflowTrigger runs a workflow by path/name and returns its outputs or
// an error. Scheduler calls this for each due job; how the workflow is
// actually loaded and executed is the caller's concern (typically the
// root workflow package wired to execengine).
type WorkflowTrigger func(ctx context.Context, workflowPath string) (map[string]string, error)

// Job is a recurring workflow trigger, combining a ScheduledJob-style
// definition (teacher's scheduler.ScheduledJob) with the persisted
// WorkflowSchedule it drives.
type Job struct {
	ID           string
	WorkflowID   string
	WorkflowPath string
	Schedule     WorkflowSchedule
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastRunAt    *time.Time
}

// Scheduler tracks recurring workflow jobs and triggers them as they come
// due, persisting each run's WorkflowState via a StateManager. Adapted
// from the teacher's scheduler.CronScheduler (RWMutex-guarded job map,
// sorted listing) layered on this package's cron.go grammar instead of
// the teacher's trigger-agnostic WorkflowTrigger signature, and using
// google/uuid for job ids in place of the teacher's hand-rolled
// crypto/rand-and-hex generateID.
type Scheduler struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	trigger   WorkflowTrigger
	states    *StateManager
	nextRunFn NextRunFunc
}

// NewScheduler builds a Scheduler persisting state via states and
// triggering due workflows via trigger.
func NewScheduler(states *StateManager, trigger WorkflowTrigger) *Scheduler {
	return &Scheduler{
		jobs:      make(map[string]*Job),
		trigger:   trigger,
		states:    states,
		nextRunFn: DefaultNextRun,
	}
}

// SetNextRunFunc overrides the next-run calculation, mainly for tests.
func (s *Scheduler) SetNextRunFunc(fn NextRunFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRunFn = fn
}

// Schedule registers a recurring job for workflowPath under scheduleExpr
// (either compact or 5-field cron form) and persists an initial Scheduled
// WorkflowState.
func (s *Scheduler) Schedule(workflowPath, scheduleExpr string) (*Job, error) {
	if err := ValidateSchedule(scheduleExpr); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", scheduleExpr, err)
	}

	now := time.Now()
	next, err := DefaultNextRun(scheduleExpr, now)
	if err != nil {
		return nil, fmt.Errorf("scheduler: compute next run: %w", err)
	}

	job := &Job{
		ID:           uuid.NewString(),
		WorkflowID:   uuid.NewString(),
		WorkflowPath: workflowPath,
		Schedule: WorkflowSchedule{
			CronExpr: scheduleExpr,
			NextRun:  &next,
			Enabled:  true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	state := NewWorkflowState(job.WorkflowID, workflowPath, 0)
	state.Status = StatusScheduled
	sched := job.Schedule
	state.Schedule = &sched
	if s.states != nil {
		if err := s.states.Save(state); err != nil {
			return nil, fmt.Errorf("scheduler: save scheduled state: %w", err)
		}
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job, nil
}

// Unschedule removes a job and deletes its persisted state.
func (s *Scheduler) Unschedule(jobID string) error {
	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if ok {
		delete(s.jobs, jobID)
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("scheduler: job %q not found", jobID)
	}
	if s.states != nil {
		return s.states.Delete(job.WorkflowID)
	}
	return nil
}

// Get returns a job by id.
func (s *Scheduler) Get(jobID string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[jobID]
	return j, ok
}

// List returns every job, sorted by CreatedAt.
func (s *Scheduler) List() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

// DueJobs returns every enabled job whose NextRun is at or before now.
func (s *Scheduler) DueJobs(now time.Time) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []*Job
	for _, j := range s.jobs {
		if !j.Schedule.Enabled {
			continue
		}
		if j.Schedule.NextRun != nil && !j.Schedule.NextRun.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(i, k int) bool {
		return due[i].Schedule.NextRun.Before(*due[k].Schedule.NextRun)
	})
	return due
}

// RunDue triggers every job due at now, persists the resulting
// WorkflowState, and advances each job's NextRun. It returns the first
// trigger error encountered, after attempting every due job.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) error {
	var firstErr error
	for _, job := range s.DueJobs(now) {
		if err := s.runOne(ctx, job, now); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// RunJob triggers a single job by id immediately, regardless of whether
// it is due, updating its run bookkeeping and persisted state the same
// way a due-time trigger would.
func (s *Scheduler) RunJob(ctx context.Context, jobID string, now time.Time) error {
	job, ok := s.Get(jobID)
	if !ok {
		return fmt.Errorf("scheduler: job %q not found", jobID)
	}
	return s.runOne(ctx, job, now)
}

func (s *Scheduler) runOne(ctx context.Context, job *Job, now time.Time) error {
	state := NewWorkflowState(job.WorkflowID, job.WorkflowPath, 0)
	if s.states != nil {
		// Re-triggering a previously failed run bumps the workflow-level
		// retry counter, distinct from any per-step attempt count.
		if prev, ok, err := s.states.Load(job.WorkflowID); err == nil && ok {
			state.RetryCount = prev.RetryCount
			if prev.Status == StatusFailed {
				state.RetryCount++
			}
		}
	}
	state.Start()

	outputs, triggerErr := s.trigger(ctx, job.WorkflowPath)

	if triggerErr != nil {
		state.Fail(triggerErr.Error())
	} else {
		state.Outputs = outputs
		state.Complete()
	}

	s.mu.Lock()
	job.LastRunAt = &now
	job.Schedule.RunCount++
	if job.Schedule.MaxRuns > 0 && job.Schedule.RunCount >= job.Schedule.MaxRuns {
		job.Schedule.Enabled = false
	}
	if job.Schedule.Enabled {
		next, err := s.nextRunFn(job.Schedule.CronExpr, now)
		if err == nil {
			job.Schedule.NextRun = &next
		}
	}
	job.UpdatedAt = now
	sched := job.Schedule
	s.mu.Unlock()

	state.Schedule = &sched
	if s.states != nil {
		if err := s.states.Save(state); err != nil {
			return fmt.Errorf("scheduler: save state for job %s: %w", job.ID, err)
		}
	}
	return triggerErr
}
