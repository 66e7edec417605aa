package execengine

import (
	"sort"

	"github.com/GoCodeAlone/lao-engine/pluginhost"
)

// StepLog records the outcome of running one DAG node, mirroring the
// original implementation's StepLog (core/lib.rs) field-for-field so a
// workflow run's audit trail carries the same information: which
// plugin ran, what it was given, what it returned or failed with, how
// many attempts it took, and whether the result came from cache.
type StepLog struct {
	Step       int
	NodeID     string
	Plugin     string
	Input      map[string]any
	Output     string
	HasOutput  bool
	Err        string
	HasErr     bool
	Attempt    int
	InputType  pluginhost.IOType
	OutputType pluginhost.IOType
	Validation string // "ok", "error", "cache", "miss", "saved" ("running" in start events)
}

// SortLogsByStep orders logs by their Step number. The parallel executor
// appends logs as goroutines finish, which is not execution order; callers
// that need a deterministic, reproducible log (tests, audits) call this
// first (SPEC_FULL.md §5, "parallel-mode determinism").
func SortLogsByStep(logs []StepLog) {
	sort.Slice(logs, func(i, j int) bool { return logs[i].Step < logs[j].Step })
}
