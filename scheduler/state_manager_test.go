package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/lao-engine/scheduler"
)

func TestStateManagerSaveLoadRoundTrip(t *testing.T) {
	mgr, err := scheduler.NewStateManager(t.TempDir())
	require.NoError(t, err)

	s := scheduler.NewWorkflowState("wf1", "demo", 2)
	s.Outputs["step1"] = "hello"
	require.NoError(t, mgr.Save(s))

	loaded, ok, err := mgr.Load("wf1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "demo", loaded.WorkflowName)
	assert.Equal(t, "hello", loaded.Outputs["step1"])
}

func TestStateManagerLoadMissingReturnsFalse(t *testing.T) {
	mgr, err := scheduler.NewStateManager(t.TempDir())
	require.NoError(t, err)

	_, ok, err := mgr.Load("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateManagerDelete(t *testing.T) {
	mgr, err := scheduler.NewStateManager(t.TempDir())
	require.NoError(t, err)

	s := scheduler.NewWorkflowState("wf1", "demo", 1)
	require.NoError(t, mgr.Save(s))
	require.NoError(t, mgr.Delete("wf1"))

	_, ok, err := mgr.Load("wf1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStateManagerListFilters(t *testing.T) {
	mgr, err := scheduler.NewStateManager(t.TempDir())
	require.NoError(t, err)

	running := scheduler.NewWorkflowState("wf-running", "a", 1)
	running.Start()
	require.NoError(t, mgr.Save(running))

	done := scheduler.NewWorkflowState("wf-done", "b", 1)
	done.Start()
	done.Complete()
	require.NoError(t, mgr.Save(done))

	active, err := mgr.List(scheduler.ActiveFilter)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "wf-running", active[0].WorkflowID)

	all, err := mgr.List(nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStateManagerCleanupOlderThanRemovesOnlyTerminalStates(t *testing.T) {
	mgr, err := scheduler.NewStateManager(t.TempDir())
	require.NoError(t, err)

	old := scheduler.NewWorkflowState("wf-old", "a", 1)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	old.Start()
	old.Complete()
	completedAt := time.Now().Add(-48 * time.Hour)
	old.CompletedAt = &completedAt
	require.NoError(t, mgr.Save(old))

	running := scheduler.NewWorkflowState("wf-running", "b", 1)
	running.CreatedAt = time.Now().Add(-48 * time.Hour)
	running.Start()
	require.NoError(t, mgr.Save(running))

	// A Scheduled state is a live recurring job, not a terminated run —
	// it must survive cleanup regardless of how long ago it was created.
	sched := scheduler.NewWorkflowState("wf-scheduled", "c", 0)
	sched.CreatedAt = time.Now().Add(-48 * time.Hour)
	sched.Status = scheduler.StatusScheduled
	sched.Schedule = &scheduler.WorkflowSchedule{CronExpr: "interval:60", Enabled: true}
	require.NoError(t, mgr.Save(sched))

	removed, err := mgr.CleanupOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := mgr.Load("wf-old")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = mgr.Load("wf-running")
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = mgr.Load("wf-scheduled")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTerminalFilter(t *testing.T) {
	cases := []struct {
		status scheduler.WorkflowStatus
		want   bool
	}{
		{scheduler.StatusCompleted, true},
		{scheduler.StatusFailed, true},
		{scheduler.StatusCancelled, true},
		{scheduler.StatusPending, false},
		{scheduler.StatusRunning, false},
		{scheduler.StatusScheduled, false},
	}
	for _, c := range cases {
		s := scheduler.NewWorkflowState("wf", "demo", 0)
		s.Status = c.status
		assert.Equal(t, c.want, scheduler.TerminalFilter(s), "status=%s", c.status)
	}
}
