// Command laoengine is a thin CLI wrapper exercising the core engine end
// to end: read a YAML workflow document, build its DAG, validate it
// against the loaded plugins, and run it. Grounded on the teacher's
// cmd/wfctl subcommand-map shape (main.go), scaled down to this module's
// narrower surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	workflow "github.com/GoCodeAlone/lao-engine"
	"github.com/GoCodeAlone/lao-engine/cache"
	"github.com/GoCodeAlone/lao-engine/eventstream"
	"github.com/GoCodeAlone/lao-engine/execengine"
	"github.com/GoCodeAlone/lao-engine/pluginhost/registry"
	"github.com/GoCodeAlone/lao-engine/pluginhost/registry/external"
)

var commands = map[string]func([]string) error{
	"validate": runValidate,
	"run":      runRun,
}

func usage() {
	fmt.Fprintf(os.Stderr, `laoengine - local AI workflow orchestrator

Usage:
  laoengine <command> [options] <workflow.yaml>

Commands:
  validate   Build the DAG and check type compatibility, without running
  run        Validate and execute a workflow document
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, ok := commands[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}
	if err := cmd(os.Args[2:]); err != nil {
		slog.Error("laoengine", "error", err)
		os.Exit(1)
	}
}

func loadWorkflow(path string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	var w workflow.Workflow
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse workflow file: %w", err)
	}
	return &w, nil
}

// buildRegistry discovers every native and external plugin available,
// logging (not failing) on individual load errors, mirroring the
// registry package's "best effort" discovery policy.
func buildRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.New()

	native := registry.NewNativeLoader(registry.PluginDir())
	plugins, errs := native.LoadAll()
	for _, err := range errs {
		logger.Warn("skipping native plugin", "error", err)
	}
	for _, p := range plugins {
		if err := reg.Register(p); err != nil {
			logger.Warn("duplicate native plugin", "name", p.Name, "error", err)
		}
	}

	extDir := external.DefaultDir()
	extLoader := registry.NewExternalLoader(extDir)
	extPlugins, extErrs := extLoader.LoadAll()
	for _, err := range extErrs {
		logger.Warn("skipping external plugin", "error", err)
	}
	for _, p := range extPlugins {
		if err := reg.Register(p); err != nil {
			logger.Warn("duplicate external plugin", "name", p.Name, "error", err)
		}
	}

	return reg
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: laoengine validate <workflow.yaml>\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("workflow file path is required")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	w, err := loadWorkflow(fs.Arg(0))
	if err != nil {
		return err
	}

	reg := buildRegistry(logger)
	_, issues, err := w.Validate(reg)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Println("workflow is valid")
		return nil
	}
	for _, issue := range issues {
		fmt.Printf("%s: %s\n", issue.NodeID, issue.Message)
	}
	return fmt.Errorf("%d validation issue(s)", len(issues))
}

func runRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	parallel := fs.Bool("parallel", false, "run independent steps concurrently")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: laoengine run [options] <workflow.yaml>\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return fmt.Errorf("workflow file path is required")
	}

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	w, err := loadWorkflow(fs.Arg(0))
	if err != nil {
		return err
	}

	reg := buildRegistry(logger)
	defer func() {
		if err := reg.Close(); err != nil {
			logger.Warn("plugin shutdown", "error", err)
		}
	}()

	disk, err := cache.NewDiskCache(cache.DiskCacheDir())
	if err != nil {
		return fmt.Errorf("open disk cache: %w", err)
	}
	memory := cache.NewMemoryCache(cache.DefaultMemoryCacheConfig())

	engine := execengine.NewEngine(registry.NewEngineLookup(reg), disk, memory)
	engine.Logger = log.New(os.Stderr, "[engine] ", log.LstdFlags)

	stream := eventstream.NewStream(1000)
	stream.Subscribe(func(ev eventstream.Event) {
		logger.Info("step event",
			"node", ev.Log.NodeID, "plugin", ev.Log.Plugin,
			"lifecycle", string(ev.Lifecycle), "attempt", ev.Log.Attempt,
			"validation", ev.Log.Validation)
	})
	engine.OnStepStart = stream.StartSink(w.Name)
	engine.OnStepDone = stream.StepSink(w.Name)

	logs, err := workflow.Run(context.Background(), w, engine, *parallel)
	for _, l := range logs {
		if l.HasErr {
			fmt.Printf("%s (%s): error: %s\n", l.NodeID, l.Plugin, l.Err)
		} else {
			fmt.Printf("%s (%s): %s\n", l.NodeID, l.Plugin, l.Output)
		}
	}
	if err != nil {
		return err
	}
	return nil
}
