package execengine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/GoCodeAlone/lao-engine/cache"
	"github.com/GoCodeAlone/lao-engine/dag"
	"github.com/GoCodeAlone/lao-engine/pluginhost"
)

// PluginLookup resolves a plugin name to a runnable handle and its
// declared signature. pluginhost/registry.Registry satisfies this.
type PluginLookup interface {
	Get(name string) (Runner, bool)
	Signature(name string) (pluginhost.IOSignature, bool)
}

// Runner is the subset of registry.Plugin the engine needs to invoke a
// plugin — kept narrow so tests can supply a fake without pulling in the
// registry package.
type Runner interface {
	Run(pluginhost.Input) (pluginhost.Output, error)
}

// Lifecycle is the optional per-attempt hook set a Runner may also
// implement: Init and PreExecute run before the plugin executes,
// PostExecute and Shutdown run after it, on both the success and the
// failure path. Hook errors are logged and never fail the step — only an
// execute error does. A cache hit skips the whole set.
type Lifecycle interface {
	Init() error
	PreExecute(pluginhost.Input) error
	PostExecute() error
	Shutdown() error
}

// EventSink receives a StepLog on a step's state transitions, letting
// callers (eventstream.Stream) observe progress without waiting for the
// whole run. Sinks must not block: the engine calls them synchronously.
type EventSink func(StepLog)

// Engine runs a built, validated DAG to completion.
type Engine struct {
	Plugins             PluginLookup
	Disk                *cache.DiskCache
	Memory              *cache.MemoryCache
	OnStepStart         EventSink
	OnStepDone          EventSink
	Logger              *log.Logger
	DefaultRetries      int
	DefaultRetryDelayMs int64
}

// NewEngine builds an Engine with the spec's defaults (1 attempt, 500ms
// base retry delay) applied to any step that doesn't declare its own.
func NewEngine(plugins PluginLookup, disk *cache.DiskCache, memory *cache.MemoryCache) *Engine {
	return &Engine{
		Plugins:             plugins,
		Disk:                disk,
		Memory:              memory,
		DefaultRetries:      1,
		DefaultRetryDelayMs: 500,
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// RunSequential executes nodes strictly in topological order, stopping at
// the first step that fails after exhausting its retries — mirroring the
// original implementation's run_workflow_yaml, which breaks out of its
// step loop as soon as last_err is set.
func (e *Engine) RunSequential(ctx context.Context, nodes []*dag.Node) ([]StepLog, error) {
	order, err := dag.TopoSort(nodes)
	if err != nil {
		return []StepLog{{NodeID: "workflow", Validation: "error", Err: err.Error(), HasErr: true}}, err
	}
	byID := nodeIndex(nodes)

	outputs := make(map[string]string, len(nodes))
	logs := make([]StepLog, 0, len(nodes))

	for i, id := range order {
		n := byID[id]
		logEntry := e.runNode(ctx, i+1, n, outputs)
		logs = append(logs, logEntry)
		if e.OnStepDone != nil {
			e.OnStepDone(logEntry)
		}
		if logEntry.HasErr {
			return logs, fmt.Errorf("step %s failed: %s", id, logEntry.Err)
		}
		if logEntry.HasOutput {
			outputs[id] = logEntry.Output
		}
	}
	return logs, nil
}

func nodeIndex(nodes []*dag.Node) map[string]*dag.Node {
	byID := make(map[string]*dag.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return byID
}

// runNode resolves effective parameters, checks the cache, and runs the
// step with retry-with-backoff. Step numbers in the returned StepLog are
// 1-based execution order, not the node's static position in the
// document — they match what the original implementation records.
//
// Cache policy follows spec §4.6 exactly: a step with no cache_key never
// reads or writes the cache; a hit skips every plugin invocation
// (lifecycle hooks included) and is annotated "cache"; a successful
// execution writes through and is annotated "saved"; a miss whose write
// then fails stays "miss" (write failures never fail the step).
func (e *Engine) runNode(ctx context.Context, stepNum int, n *dag.Node, outputs map[string]string) StepLog {
	params := effectiveParams(n.Step.Params, n.Step.InputFrom, outputs)

	log := StepLog{Step: stepNum, NodeID: n.ID, Plugin: n.Step.Plugin, Input: params, Validation: "ok"}

	if sig, ok := e.Plugins.Signature(n.Step.Plugin); ok {
		log.InputType = sig.InputType
		log.OutputType = sig.OutputType
	}

	cacheKey := n.Step.CacheKey
	if cacheKey != "" {
		if e.Memory != nil {
			if out, ok := e.Memory.Get(cacheKey); ok {
				log.Output, log.HasOutput, log.Validation = out, true, "cache"
				return log
			}
		}
		if e.Disk != nil {
			if out, found, err := e.Disk.Get(cacheKey); err == nil && found {
				log.Output, log.HasOutput, log.Validation = out, true, "cache"
				if e.Memory != nil {
					e.Memory.Set(cacheKey, out)
				}
				return log
			}
		}
		log.Validation = "miss"
	}

	if e.OnStepStart != nil {
		started := log
		started.Validation = "running"
		e.OnStepStart(started)
	}

	retries := n.Step.Retries
	if retries <= 0 {
		retries = e.DefaultRetries
	}
	retryDelay := n.Step.RetryDelayMs
	if retryDelay <= 0 {
		retryDelay = e.DefaultRetryDelayMs
	}

	var lastErr error
attempts:
	for attempt := 1; attempt <= retries; attempt++ {
		log.Attempt = attempt
		if attempt > 1 {
			timer := time.NewTimer(backoffDelay(attempt, retryDelay))
			select {
			case <-ctx.Done():
				timer.Stop()
				lastErr = ctx.Err()
				break attempts
			case <-timer.C:
			}
		}

		out, err := e.invoke(ctx, n.Step.Plugin, params)
		if err == nil {
			log.Output, log.HasOutput = out, true
			lastErr = nil
			break
		}
		lastErr = err
		e.logf("step %s: attempt %d/%d failed: %v", n.ID, attempt, retries, err)
	}

	if lastErr != nil {
		log.Err, log.HasErr, log.Validation = lastErr.Error(), true, "error"
		return log
	}

	if cacheKey != "" {
		saved := true
		if e.Disk != nil {
			if err := e.Disk.Set(cacheKey, n.Step.Plugin, log.Output); err != nil {
				e.logf("step %s: cache write for key %q failed: %v", n.ID, cacheKey, err)
				saved = false
			}
		}
		if e.Memory != nil {
			e.Memory.Set(cacheKey, log.Output)
		}
		if saved {
			log.Validation = "saved"
		}
	}
	return log
}

// invoke dispatches to a registered plugin if one answers to name, falling
// back to running it as an external command otherwise. For a registered
// plugin the full per-attempt lifecycle runs around execute:
// init -> pre_execute -> execute -> post_execute -> shutdown, with
// post_execute/shutdown on the failure path too and hook errors logged
// rather than failing the step.
func (e *Engine) invoke(ctx context.Context, name string, params map[string]any) (string, error) {
	p, ok := e.Plugins.Get(name)
	if !ok {
		return runExternalCommand(ctx, name, params)
	}

	in := inputFromParams(params)

	hooks, _ := p.(Lifecycle)
	if hooks != nil {
		if err := hooks.Init(); err != nil {
			e.logf("plugin %s: init error: %v", name, err)
		}
		if err := hooks.PreExecute(in); err != nil {
			e.logf("plugin %s: pre_execute error: %v", name, err)
		}
	}

	out, runErr := p.Run(in)

	if hooks != nil {
		if err := hooks.PostExecute(); err != nil {
			e.logf("plugin %s: post_execute error: %v", name, err)
		}
		if err := hooks.Shutdown(); err != nil {
			e.logf("plugin %s: shutdown error: %v", name, err)
		}
	}

	if runErr != nil {
		return "", runErr
	}
	return out.String(), nil
}

// inputFromParams builds a plugin Input from a step's params: an "input"
// key present as a string becomes Text; anything else is passed as Json,
// mirroring the original implementation's build_plugin_input.
func inputFromParams(params map[string]any) pluginhost.Input {
	if v, ok := params["input"]; ok {
		if s, ok := v.(string); ok {
			return pluginhost.TextInput(s)
		}
	}
	return pluginhost.JSONInput(params)
}
