package execengine

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
)

// runExternalCommand shells out to a binary named after the plugin when no
// registered plugin answers to that name, capturing its standard output as
// the step's output. This is the Go rendition of the original
// implementation's run_model_runner fallback (core/lib.rs): whisper and
// ollama get their well-known invocation shapes, and any other runner gets
// its "input" parameter as a positional argument followed by the remaining
// parameters as "--key value" flag pairs.
func runExternalCommand(ctx context.Context, name string, params map[string]any) (string, error) {
	cmd := exec.CommandContext(ctx, name, externalArgs(name, params)...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("%s failed: %s", name, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("failed to run %s: %w", name, err)
	}
	return string(out), nil
}

func externalArgs(name string, params map[string]any) []string {
	switch name {
	case "whisper":
		if input, ok := params["input"].(string); ok {
			return []string{input}
		}
		return nil
	case "ollama":
		var args []string
		if model, ok := params["model"].(string); ok {
			args = append(args, "run", model)
		}
		if prompt, ok := params["prompt"].(string); ok {
			args = append(args, prompt)
		}
		return args
	}

	var args []string
	if input, ok := params["input"].(string); ok {
		args = append(args, input)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "input" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--"+k, fmt.Sprintf("%v", params[k]))
	}
	return args
}
