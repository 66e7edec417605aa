package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// StateManager persists one WorkflowState per workflow id as a JSON file
// under Dir, adapted from the original implementation's
// WorkflowStateManager (core/state_manager.rs): save_state/load_state/
// delete_state/list_states/list_active_workflows/list_scheduled_workflows/
// load_all_states.
type StateManager struct {
	dir string
}

// NewStateManager creates dir if missing and returns a StateManager rooted
// there.
func NewStateManager(dir string) (*StateManager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("scheduler: create state dir: %w", err)
	}
	return &StateManager{dir: dir}, nil
}

// StateDir reads LAO_STATE_DIR, defaulting to "./state".
func StateDir() string {
	if v := os.Getenv("LAO_STATE_DIR"); v != "" {
		return v
	}
	return "./state"
}

func (m *StateManager) path(workflowID string) string {
	return filepath.Join(m.dir, workflowID+".json")
}

// Save writes state to "<dir>/<workflowId>.json", pretty-printed.
func (m *StateManager) Save(state *WorkflowState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("scheduler: marshal state %s: %w", state.WorkflowID, err)
	}
	tmp := m.path(state.WorkflowID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("scheduler: write state %s: %w", state.WorkflowID, err)
	}
	if err := os.Rename(tmp, m.path(state.WorkflowID)); err != nil {
		return fmt.Errorf("scheduler: rename state %s: %w", state.WorkflowID, err)
	}
	return nil
}

// Load reads the state for workflowID. The second return value is false if
// no state file exists.
func (m *StateManager) Load(workflowID string) (*WorkflowState, bool, error) {
	data, err := os.ReadFile(m.path(workflowID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scheduler: read state %s: %w", workflowID, err)
	}
	var state WorkflowState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("scheduler: unmarshal state %s: %w", workflowID, err)
	}
	return &state, true, nil
}

// Delete removes the persisted state for workflowID, if present.
func (m *StateManager) Delete(workflowID string) error {
	err := os.Remove(m.path(workflowID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("scheduler: delete state %s: %w", workflowID, err)
	}
	return nil
}

// LoadAll scans dir for "*.json" files and loads each, skipping files that
// fail to parse (a corrupt or partially-written state file shouldn't take
// down startup), mirroring load_all_states.
func (m *StateManager) LoadAll() ([]*WorkflowState, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list state dir: %w", err)
	}
	var states []*WorkflowState
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		state, ok, err := m.Load(id)
		if err != nil || !ok {
			continue
		}
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].WorkflowID < states[j].WorkflowID })
	return states, nil
}

// StateFilter narrows List to a subset of states. A nil filter matches all.
type StateFilter func(*WorkflowState) bool

// List returns every persisted state matching filter, sorted by id.
func (m *StateManager) List(filter StateFilter) ([]*WorkflowState, error) {
	all, err := m.LoadAll()
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return all, nil
	}
	var out []*WorkflowState
	for _, s := range all {
		if filter(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

// ActiveFilter matches runs that are Pending or Running.
func ActiveFilter(s *WorkflowState) bool {
	return s.Status == StatusPending || s.Status == StatusRunning
}

// ScheduledFilter matches runs carrying an enabled schedule.
func ScheduledFilter(s *WorkflowState) bool {
	return s.Schedule != nil && s.Schedule.Enabled
}

// TerminalFilter matches runs that have reached a terminal status:
// Completed, Failed, or Cancelled. A Scheduled state is not terminal —
// it is a live recurring job's bookkeeping, not a finished run.
func TerminalFilter(s *WorkflowState) bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed || s.Status == StatusCancelled
}

// CleanupOlderThan deletes every terminated state (Completed, Failed, or
// Cancelled) whose CompletedAt (or, lacking that, CreatedAt) is older
// than before, returning the number of states removed. Non-terminal
// states — Pending, Running, and Scheduled — are never cleaned up, no
// matter their age.
func (m *StateManager) CleanupOlderThan(before time.Time) (int, error) {
	all, err := m.LoadAll()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range all {
		if !TerminalFilter(s) {
			continue
		}
		ts := s.CreatedAt
		if s.CompletedAt != nil {
			ts = *s.CompletedAt
		}
		if ts.Before(before) {
			if err := m.Delete(s.WorkflowID); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
