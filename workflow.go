// Package workflow is the root package: the typed in-memory document a
// caller builds (by parsing YAML/JSON, or by hand) and the Validate/Run
// entry points that tie dag, validator, and execengine together into one
// call, grounded on the teacher's root engine.go pattern of a package
// that owns the top-level orchestration type.
package workflow

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/lao-engine/dag"
	"github.com/GoCodeAlone/lao-engine/execengine"
	"github.com/GoCodeAlone/lao-engine/validator"
)

// WorkflowStep is one node declaration in a Workflow document.
type WorkflowStep struct {
	Run          string         `yaml:"run" json:"run"`
	Params       map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	InputFrom    string         `yaml:"input_from,omitempty" json:"input_from,omitempty"`
	DependsOn    []string       `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Retries      int            `yaml:"retries,omitempty" json:"retries,omitempty"`
	RetryDelayMs int64          `yaml:"retry_delay_ms,omitempty" json:"retry_delay_ms,omitempty"`
	CacheKey     string         `yaml:"cache_key,omitempty" json:"cache_key,omitempty"`
}

// Workflow is a named container with an ordered list of steps.
type Workflow struct {
	Name  string         `yaml:"name" json:"name"`
	Steps []WorkflowStep `yaml:"steps" json:"steps"`
}

// Build assembles this workflow's DAG: ids assigned by declaration order,
// parents the union of InputFrom and DependsOn.
func (w *Workflow) Build() ([]*dag.Node, error) {
	specs := make([]dag.StepSpec, len(w.Steps))
	for i, step := range w.Steps {
		specs[i] = dag.StepSpec{
			Plugin:       step.Run,
			InputFrom:    step.InputFrom,
			DependsOn:    step.DependsOn,
			Params:       step.Params,
			Retries:      step.Retries,
			RetryDelayMs: step.RetryDelayMs,
			CacheKey:     step.CacheKey,
		}
	}
	return dag.Build(specs)
}

// Validate builds the DAG and checks type compatibility against sigs,
// returning the node list (useful for Run) plus any validator.Issue
// found. A non-empty issue list means the caller must not proceed to Run.
func (w *Workflow) Validate(sigs validator.SignatureLookup) ([]*dag.Node, []validator.Issue, error) {
	nodes, err := w.Build()
	if err != nil {
		return nil, nil, err
	}
	return nodes, validator.Validate(nodes, sigs), nil
}

// Run validates w against engine's plugin lookup and, if valid, drives
// execution — sequential if parallel is false, errgroup-parallel
// otherwise. It refuses to begin execution when validation produces any
// issue, returning them as an error alongside synthetic VALIDATION
// StepLog entries, mirroring spec.md §4.4's "validation is
// advisory-and-gating" rule.
func Run(ctx context.Context, w *Workflow, engine *execengine.Engine, parallel bool) ([]execengine.StepLog, error) {
	nodes, issues, err := w.Validate(engine.Plugins)
	if err != nil {
		return nil, fmt.Errorf("workflow: build: %w", err)
	}
	if len(issues) > 0 {
		logs := make([]execengine.StepLog, len(issues))
		for i, issue := range issues {
			logs[i] = execengine.StepLog{
				NodeID:     issue.NodeID,
				Plugin:     "VALIDATION",
				Err:        issue.Message,
				HasErr:     true,
				Validation: "error",
			}
		}
		return logs, fmt.Errorf("workflow: validation failed: %d issue(s)", len(issues))
	}

	if parallel {
		return engine.RunParallel(ctx, nodes)
	}
	return engine.RunSequential(ctx, nodes)
}
