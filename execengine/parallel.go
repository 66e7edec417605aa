package execengine

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/lao-engine/dag"
)

// runState is the single mutex-guarded object every goroutine in a
// parallel run touches: node outputs, remaining parent counts, and the
// accumulated log. One lock, never nested, avoids the classic
// two-mutex-deadlock a naive per-field-locking design invites.
type runState struct {
	mu        sync.Mutex
	outputs   map[string]string
	remaining map[string]int // parents not yet satisfied
	logs      []StepLog
	failed    bool
}

func newRunState(nodes []*dag.Node) *runState {
	rs := &runState{
		outputs:   make(map[string]string, len(nodes)),
		remaining: make(map[string]int, len(nodes)),
	}
	for _, n := range nodes {
		rs.remaining[n.ID] = len(n.Parents)
	}
	return rs
}

// RunParallel executes every node as soon as all of its parents have
// finished, rather than strictly level-by-level. Nodes with zero
// unresolved parents at any point in time run concurrently, bounded only
// by the errgroup's goroutines. The failure policy matches sequential
// mode: after a node fails terminally no new nodes are scheduled, but
// in-flight nodes run to completion — runNode is deliberately given the
// caller's context, not the errgroup's cancellable one, so a sibling's
// failure doesn't abort a step already underway.
func (e *Engine) RunParallel(ctx context.Context, nodes []*dag.Node) ([]StepLog, error) {
	if _, err := dag.TopoSort(nodes); err != nil {
		return []StepLog{{NodeID: "workflow", Validation: "error", Err: err.Error(), HasErr: true}}, err
	}

	byID := nodeIndex(nodes)
	rs := newRunState(nodes)

	children := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		for _, p := range n.Parents {
			children[p] = append(children[p], n.ID)
		}
	}

	var g errgroup.Group
	var stepCounter int
	var counterMu sync.Mutex
	nextStep := func() int {
		counterMu.Lock()
		defer counterMu.Unlock()
		stepCounter++
		return stepCounter
	}

	var schedule func(id string)
	schedule = func(id string) {
		g.Go(func() error {
			n := byID[id]

			rs.mu.Lock()
			outputsSnapshot := make(map[string]string, len(rs.outputs))
			for k, v := range rs.outputs {
				outputsSnapshot[k] = v
			}
			rs.mu.Unlock()

			logEntry := e.runNode(ctx, nextStep(), n, outputsSnapshot)

			rs.mu.Lock()
			rs.logs = append(rs.logs, logEntry)
			if logEntry.HasErr {
				rs.failed = true
				rs.mu.Unlock()
				if e.OnStepDone != nil {
					e.OnStepDone(logEntry)
				}
				return fmt.Errorf("step %s failed: %s", id, logEntry.Err)
			}
			if logEntry.HasOutput {
				rs.outputs[id] = logEntry.Output
			}
			if rs.failed {
				// A sibling already failed terminally while this node was in
				// flight. Let it finish (its output is already recorded above)
				// but schedule no new nodes from it.
				rs.mu.Unlock()
				if e.OnStepDone != nil {
					e.OnStepDone(logEntry)
				}
				return nil
			}
			var ready []string
			for _, childID := range children[id] {
				rs.remaining[childID]--
				if rs.remaining[childID] == 0 {
					ready = append(ready, childID)
				}
			}
			rs.mu.Unlock()

			if e.OnStepDone != nil {
				e.OnStepDone(logEntry)
			}
			for _, childID := range ready {
				schedule(childID)
			}
			return nil
		})
	}

	for _, n := range nodes {
		if len(n.Parents) == 0 {
			schedule(n.ID)
		}
	}

	err := g.Wait()

	rs.mu.Lock()
	logs := rs.logs
	rs.mu.Unlock()

	return logs, err
}
