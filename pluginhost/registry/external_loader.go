package registry

import (
	"fmt"

	"github.com/GoCodeAlone/lao-engine/pluginhost"
	"github.com/GoCodeAlone/lao-engine/pluginhost/registry/external"
)

// ExternalLoader discovers and loads subprocess-backed plugins through an
// external.Manager, exposing the same Plugin shape NativeLoader produces so
// the registry and execution engine never need to know which transport
// backs a given plugin (SPEC_FULL.md §4.2).
type ExternalLoader struct {
	manager *external.Manager
}

// NewExternalLoader wraps an external.Manager rooted at dir.
func NewExternalLoader(dir string) *ExternalLoader {
	return &ExternalLoader{manager: external.NewManager(dir, nil)}
}

// LoadAll discovers and starts every external plugin under the manager's
// directory. As with NativeLoader.LoadAll, a single plugin failing to
// start does not abort the scan.
func (l *ExternalLoader) LoadAll() (plugins []*Plugin, errs []error) {
	names, err := l.manager.Discover()
	if err != nil {
		return nil, []error{err}
	}
	for _, name := range names {
		p, err := l.Load(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plugins = append(plugins, p)
	}
	return plugins, errs
}

// Load starts a single named external plugin subprocess and wraps it as a
// registry Plugin.
func (l *ExternalLoader) Load(name string) (*Plugin, error) {
	runner, manifest, err := l.manager.Load(name)
	if err != nil {
		return nil, fmt.Errorf("load external plugin %q: %w", name, err)
	}

	sig := pluginhost.IOSignature{InputType: pluginhost.TypeAny, OutputType: pluginhost.TypeAny}
	if manifest != nil {
		sig = manifest.Signature()
	}

	p := &Plugin{
		Name:      name,
		Signature: sig,
		Manifest:  manifest,
		Invoke:    runner.Run,
		Close:     func() error { return l.manager.Unload(name) },
	}
	if cfg, cfgErr := LoadPluginConfig(ConfigDir(l.manager.Dir), name); cfgErr == nil {
		p.Config = cfg
	}
	return p, nil
}

// Shutdown stops every external plugin subprocess started through this
// loader.
func (l *ExternalLoader) Shutdown() {
	l.manager.Shutdown()
}
