package execengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstituteVarsReplacesPlaceholder(t *testing.T) {
	outputs := map[string]string{"step1": "HELLO"}
	got := substituteVars("prefix ${step1.output} suffix", outputs)
	assert.Equal(t, "prefix HELLO suffix", got)
}

func TestSubstituteVarsLeavesUnknownPlaceholder(t *testing.T) {
	got := substituteVars("${step9.output}", map[string]string{"step1": "x"})
	assert.Equal(t, "${step9.output}", got)
}

func TestSubstituteVarsAppliesJQFilterToJSONOutput(t *testing.T) {
	outputs := map[string]string{"step1": `{"name":"ada","score":42}`}
	got := substituteVars("hello ${step1.output | .name}", outputs)
	assert.Equal(t, "hello ada", got)
}

func TestSubstituteVarsJQFilterNonStringResultIsMarshaled(t *testing.T) {
	outputs := map[string]string{"step1": `{"name":"ada","score":42}`}
	got := substituteVars("${step1.output | .score}", outputs)
	assert.Equal(t, "42", got)
}

func TestSubstituteVarsJQFilterFallsBackOnNonJSONOutput(t *testing.T) {
	outputs := map[string]string{"step1": "not json"}
	got := substituteVars("${step1.output | .name}", outputs)
	assert.Equal(t, "not json", got)
}

func TestSubstituteParamsRecursesNestedStructures(t *testing.T) {
	outputs := map[string]string{"step1": "X"}
	params := map[string]any{
		"prompt": "value is ${step1.output}",
		"nested": map[string]any{"a": "${step1.output}!"},
		"list":   []any{"${step1.output}", 3},
	}
	got := substituteParams(params, outputs).(map[string]any)
	assert.Equal(t, "value is X", got["prompt"])
	assert.Equal(t, "X!", got["nested"].(map[string]any)["a"])
	assert.Equal(t, "X", got["list"].([]any)[0])
	assert.Equal(t, 3, got["list"].([]any)[1])
}

func TestEffectiveParamsInjectsInputFromParent(t *testing.T) {
	outputs := map[string]string{"step1": "parent output"}
	params := effectiveParams(map[string]any{"other": "v"}, "step1", outputs)
	assert.Equal(t, "parent output", params["input"])
	assert.Equal(t, "v", params["other"])
}

func TestEffectiveParamsWithoutInputFrom(t *testing.T) {
	params := effectiveParams(map[string]any{"k": "v"}, "", nil)
	_, hasInput := params["input"]
	assert.False(t, hasInput)
}
