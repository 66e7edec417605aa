// Package dag builds the directed acyclic graph of workflow steps and
// orders it for execution. The shape mirrors the tiered dependency
// resolution in the teacher's plugin/loader.go: assign stable ids,
// union declared dependencies, then walk with a three-color mark to
// both order the graph and catch cycles in one pass.
package dag

import "fmt"

// StepSpec is the caller-supplied description of one workflow step. The
// workflow document itself is parsed elsewhere (spec §4.3); Build only
// needs the plugin reference and the two ways a step can declare a parent.
type StepSpec struct {
	Plugin       string
	InputFrom    string
	DependsOn    []string
	Params       map[string]any
	Retries      int
	RetryDelayMs int64
	CacheKey     string
}

// Node is one step in the built graph: a stable id, the originating spec,
// and the deduplicated set of parent ids it depends on.
type Node struct {
	ID      string
	Step    StepSpec
	Parents []string
}

// Build assigns each step the id "stepN" (1-based, in document order) and
// unions input_from and depends_on into Parents. A step naming an id that
// doesn't exist in the document is an error.
func Build(steps []StepSpec) ([]*Node, error) {
	nodes := make([]*Node, len(steps))
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		id := fmt.Sprintf("step%d", i+1)
		index[id] = i
		nodes[i] = &Node{ID: id, Step: s}
	}

	for i, s := range steps {
		seen := make(map[string]bool)
		addParent := func(parent string) error {
			if parent == "" || seen[parent] {
				return nil
			}
			if _, ok := index[parent]; !ok {
				return fmt.Errorf("step %s: unknown parent %q", nodes[i].ID, parent)
			}
			seen[parent] = true
			nodes[i].Parents = append(nodes[i].Parents, parent)
			return nil
		}
		if err := addParent(s.InputFrom); err != nil {
			return nil, err
		}
		for _, dep := range s.DependsOn {
			if err := addParent(dep); err != nil {
				return nil, err
			}
		}
	}
	return nodes, nil
}

const (
	white = 0 // unvisited
	gray  = 1 // visiting (on the current DFS stack)
	black = 2 // visited
)

// TopoSort returns the node ids in an order where every parent precedes
// its children. It reports a cycle as soon as the DFS re-enters a gray
// (in-progress) node.
func TopoSort(nodes []*Node) ([]string, error) {
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	color := make(map[string]int, len(nodes))
	order := make([]string, 0, len(nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("cycle detected at %s", id)
		}
		color[id] = gray
		n := byID[id]
		for _, p := range n.Parents {
			if err := visit(p); err != nil {
				return err
			}
		}
		color[id] = black
		order = append(order, id)
		return nil
	}

	for _, n := range nodes {
		if err := visit(n.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}
