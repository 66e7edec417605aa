// Package execengine runs a built, validated DAG: it resolves each step's
// effective parameters, invokes its plugin (with retry-with-backoff and
// disk-cache memoization), and records a StepLog per step. Grounded on the
// original implementation's run_workflow_yaml (core/lib.rs) for the
// control flow, rendered in the teacher's idiom for structuring a
// multi-stage pipeline step (module/pipeline_step_resilience.go) and for
// retry/backoff (webhook.RetryManager).
package execengine

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/itchyny/gojq"
)

// placeholderPattern matches "${id.output}" and its extended form
// "${id.output | <gojq filter>}". The filter suffix is the module's own
// addition on top of the original implementation's plain substitute_vars,
// letting a step pull one field out of a parent's JSON output instead of
// consuming it whole (SPEC_FULL.md §5, Open Question resolution).
var placeholderPattern = regexp.MustCompile(`\$\{(\w+)\.output(?:\s*\|\s*([^}]+))?\}`)

// substituteVars replaces every "${id.output}" (optionally piped through a
// gojq filter) in s with text derived from node id's output, for every id
// present in outputs. Mirrors the original implementation's
// substitute_vars for the plain form; the piped form parses the parent
// output as JSON and runs the filter against it, falling back to the raw
// output untouched if the output isn't JSON or the filter yields nothing.
func substituteVars(s string, outputs map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		id, filter := groups[1], strings.TrimSpace(groups[2])
		out, ok := outputs[id]
		if !ok {
			return match
		}
		if filter == "" {
			return out
		}
		if extracted, ok := extractJQ(out, filter); ok {
			return extracted
		}
		return out
	})
}

// extractJQ parses jsonOut as JSON and runs the gojq expr against it,
// rendering the first result as a string (unquoted if it's already a
// JSON string, marshaled otherwise). Returns ok=false on any parse,
// compile, or evaluation failure so the caller can fall back to the raw
// text instead of emitting an error mid-substitution.
func extractJQ(jsonOut, expr string) (string, bool) {
	var data any
	if err := json.Unmarshal([]byte(jsonOut), &data); err != nil {
		return "", false
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return "", false
	}
	iter := query.Run(data)
	v, ok := iter.Next()
	if !ok {
		return "", false
	}
	if err, isErr := v.(error); isErr {
		_ = err
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// substituteParams walks every string leaf of v, replacing ${id.output}
// placeholders in place. Mirrors substitute_params's recursive descent
// over string/mapping/sequence nodes.
func substituteParams(v any, outputs map[string]string) any {
	switch val := v.(type) {
	case string:
		return substituteVars(val, outputs)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = substituteParams(vv, outputs)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = substituteParams(vv, outputs)
		}
		return out
	default:
		return v
	}
}

// effectiveParams computes a step's fully resolved parameter tree: if
// input_from names a parent, its output is injected under the "input"
// key, then every ${id.output} placeholder across the whole tree is
// substituted.
func effectiveParams(rawParams map[string]any, inputFrom string, outputs map[string]string) map[string]any {
	params := make(map[string]any, len(rawParams)+1)
	for k, v := range rawParams {
		params[k] = v
	}
	if inputFrom != "" {
		if parentOut, ok := outputs[inputFrom]; ok {
			params["input"] = parentOut
		}
	}
	substituted := substituteParams(params, outputs)
	return substituted.(map[string]any)
}
