// Package validator checks that every edge in a built DAG connects a
// parent's declared output type to a child's declared input type,
// following the same "walk in topological order, report all issues
// rather than stopping at the first" shape the teacher's
// capability/contract.go uses for capability-gate checks.
package validator

import (
	"fmt"

	"github.com/GoCodeAlone/lao-engine/dag"
	"github.com/GoCodeAlone/lao-engine/pluginhost"
)

// SignatureLookup resolves a plugin name to its declared IOSignature. The
// registry satisfies this interface; tests can supply a map-backed fake.
type SignatureLookup interface {
	Signature(name string) (pluginhost.IOSignature, bool)
}

// Issue is one validation failure, tagged with the offending node so a
// caller can report all problems in a workflow at once.
type Issue struct {
	NodeID  string
	Message string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s: %s", i.NodeID, i.Message)
}

// Validate walks nodes in topological order and reports every type
// mismatch and unknown-plugin reference it finds. An empty result means
// the workflow is well-typed and its graph is acyclic (Validate calls
// dag.TopoSort internally and surfaces a cycle as a single Issue with
// NodeID "workflow", whose message names the node where it was found).
func Validate(nodes []*dag.Node, sigs SignatureLookup) []Issue {
	var issues []Issue

	order, err := dag.TopoSort(nodes)
	if err != nil {
		return []Issue{{NodeID: "workflow", Message: err.Error()}}
	}

	byID := make(map[string]*dag.Node, len(nodes))
	resolved := make(map[string]pluginhost.IOSignature, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	for _, id := range order {
		n := byID[id]
		sig, ok := sigs.Signature(n.Step.Plugin)
		if !ok {
			issues = append(issues, Issue{NodeID: id, Message: fmt.Sprintf("unknown plugin %q", n.Step.Plugin)})
			resolved[id] = pluginhost.IOSignature{InputType: pluginhost.TypeAny, OutputType: pluginhost.TypeAny}
			continue
		}
		resolved[id] = sig

		for _, parentID := range n.Parents {
			parentSig, ok := resolved[parentID]
			if !ok {
				continue // parent's own issue already recorded
			}
			if !pluginhost.Compatible(parentSig.OutputType, sig.InputType) {
				issues = append(issues, Issue{
					NodeID: id,
					Message: fmt.Sprintf("input type %s is incompatible with %s's output type %s",
						sig.InputType, parentID, parentSig.OutputType),
				})
			}
		}
	}

	return issues
}
