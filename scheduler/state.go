// Package scheduler persists workflow run state to disk and triggers
// workflow runs on a cron-like schedule. Grounded on the original
// implementation's WorkflowState/WorkflowStateManager (core/workflow_state.rs,
// core/state_manager.rs) for the data model, and on the teacher's
// scheduler.CronScheduler for the Go-idiomatic scheduling loop and cron
// grammar.
package scheduler

import "time"

// WorkflowStatus is the lifecycle state of one workflow run.
type WorkflowStatus string

const (
	StatusPending   WorkflowStatus = "pending"
	StatusRunning   WorkflowStatus = "running"
	StatusCompleted WorkflowStatus = "completed"
	StatusFailed    WorkflowStatus = "failed"
	StatusCancelled WorkflowStatus = "cancelled"
	StatusScheduled WorkflowStatus = "scheduled"
)

// StepStatus is the lifecycle state of one step result within a run.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult records one step's outcome within a persisted WorkflowState.
type StepResult struct {
	StepID      string     `json:"stepId"`
	PluginName  string     `json:"pluginName"`
	Status      StepStatus `json:"status"`
	Output      string     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	DurationMs  int64      `json:"durationMs,omitempty"`
	RetryCount  int        `json:"retryCount"`
}

// WorkflowSchedule is the recurring-execution configuration attached to a
// workflow, if any.
type WorkflowSchedule struct {
	CronExpr string     `json:"cronExpr,omitempty"`
	NextRun  *time.Time `json:"nextRun,omitempty"`
	Enabled  bool       `json:"enabled"`
	MaxRuns  int        `json:"maxRuns,omitempty"`
	RunCount int        `json:"runCount"`
}

// WorkflowState is the full persisted record of one workflow run, keyed by
// WorkflowID. RetryCount here is the workflow-level retry counter
// (distinct from a per-step Attempt) — a run the scheduler re-triggers
// after a failure increments this, independent of how many times any
// individual step retried internally (SPEC_FULL.md §3.4).
type WorkflowState struct {
	WorkflowID   string            `json:"workflowId"`
	WorkflowName string            `json:"workflowName"`
	Status       WorkflowStatus    `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	StartedAt    *time.Time        `json:"startedAt,omitempty"`
	CompletedAt  *time.Time        `json:"completedAt,omitempty"`
	CurrentStep  int               `json:"currentStep"`
	TotalSteps   int               `json:"totalSteps"`
	StepResults  []StepResult      `json:"stepResults"`
	Outputs      map[string]string `json:"outputs"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
	RetryCount   int               `json:"retryCount"`
	Schedule     *WorkflowSchedule `json:"schedule,omitempty"`
}

// NewWorkflowState builds a Pending state for a freshly created run.
func NewWorkflowState(id, name string, totalSteps int) *WorkflowState {
	return &WorkflowState{
		WorkflowID:   id,
		WorkflowName: name,
		Status:       StatusPending,
		CreatedAt:    time.Now(),
		TotalSteps:   totalSteps,
		Outputs:      make(map[string]string),
	}
}

// Start transitions the run to Running and stamps StartedAt.
func (w *WorkflowState) Start() {
	w.Status = StatusRunning
	now := time.Now()
	w.StartedAt = &now
}

// Complete transitions the run to Completed and stamps CompletedAt.
func (w *WorkflowState) Complete() {
	w.Status = StatusCompleted
	now := time.Now()
	w.CompletedAt = &now
}

// Fail transitions the run to Failed, recording the error.
func (w *WorkflowState) Fail(err string) {
	w.Status = StatusFailed
	now := time.Now()
	w.CompletedAt = &now
	w.ErrorMessage = err
}

// AddStepResult appends a StepResult and advances CurrentStep.
func (w *WorkflowState) AddStepResult(r StepResult) {
	w.StepResults = append(w.StepResults, r)
	w.CurrentStep = len(w.StepResults)
}
