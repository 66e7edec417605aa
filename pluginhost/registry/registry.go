// Package registry discovers plugins, validates their ABI and manifest,
// and indexes them by name for the execution engine and validator. The
// indexing and "register once, conflict on duplicate" shape is adapted
// from the teacher's plugin.NativeRegistry and plugin.PluginLoader.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/GoCodeAlone/lao-engine/pluginhost"
)

// Plugin is a loaded, runnable plugin: a name, its declared signature, and
// a Run function bridging whichever transport (native .so, external
// subprocess) actually backs it. The four hook fields are the per-attempt
// lifecycle the engine drives around each execute (init, pre_execute,
// post_execute, shutdown); nil hooks are no-ops. Config holds the
// per-plugin JSON config file's contents, handed to InitHook each attempt.
type Plugin struct {
	Name      string
	Signature pluginhost.IOSignature
	Manifest  *pluginhost.Manifest
	Config    map[string]any
	Invoke    func(pluginhost.Input) (pluginhost.Output, error)
	Close     func() error

	InitHook        func(config map[string]any) error
	PreExecuteHook  func(pluginhost.Input) error
	PostExecuteHook func() error
	ShutdownHook    func() error
}

// Run invokes the plugin, satisfying execengine.Runner so a *Plugin
// fetched from the registry can be handed to the execution engine
// directly.
func (p *Plugin) Run(in pluginhost.Input) (pluginhost.Output, error) {
	if p.Invoke == nil {
		return pluginhost.Output{}, fmt.Errorf("plugin %q has no invoke function", p.Name)
	}
	return p.Invoke(in)
}

// Init implements execengine.Lifecycle, passing the plugin's loaded config
// to its init hook the way the original implementation hands each plugin a
// PluginConfig at init time.
func (p *Plugin) Init() error {
	if p.InitHook == nil {
		return nil
	}
	return p.InitHook(p.Config)
}

// PreExecute implements execengine.Lifecycle.
func (p *Plugin) PreExecute(in pluginhost.Input) error {
	if p.PreExecuteHook == nil {
		return nil
	}
	return p.PreExecuteHook(in)
}

// PostExecute implements execengine.Lifecycle.
func (p *Plugin) PostExecute() error {
	if p.PostExecuteHook == nil {
		return nil
	}
	return p.PostExecuteHook()
}

// Shutdown implements execengine.Lifecycle.
func (p *Plugin) Shutdown() error {
	if p.ShutdownHook == nil {
		return nil
	}
	return p.ShutdownHook()
}

// Registry indexes loaded plugins by name. It is safe for concurrent use.
// Registration order is remembered so Close can release plugins in reverse
// load order, after every handle is known to be unused.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]*Plugin
	order   []string
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{plugins: make(map[string]*Plugin)}
}

// Register adds p to the registry. A second registration under the same
// name is an error, mirroring the teacher's PluginLoader's conflict-on-
// duplicate behavior for factories.
func (r *Registry) Register(p *Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.Name]; exists {
		return fmt.Errorf("plugin %q already registered", p.Name)
	}
	r.plugins[p.Name] = p
	r.order = append(r.order, p.Name)
	return nil
}

// Replace registers p, overwriting any existing plugin of the same name.
// Used by the hot-reload watcher, where a re-registration is expected.
func (r *Registry) Replace(p *Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.Name]; !exists {
		r.order = append(r.order, p.Name)
	}
	r.plugins[p.Name] = p
}

// Unregister removes a plugin by name, closing it first if it holds a
// resource (an external subprocess, an open library handle).
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	p, ok := r.plugins[name]
	delete(r.plugins, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	if ok && p.Close != nil {
		return p.Close()
	}
	return nil
}

// Close releases every plugin in reverse registration order and empties
// the registry. The first close error is returned after every plugin has
// been attempted.
func (r *Registry) Close() error {
	r.mu.Lock()
	plugins := make([]*Plugin, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if p, ok := r.plugins[r.order[i]]; ok {
			plugins = append(plugins, p)
		}
	}
	r.plugins = make(map[string]*Plugin)
	r.order = nil
	r.mu.Unlock()

	var firstErr error
	for _, p := range plugins {
		if p.Close == nil {
			continue
		}
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close plugin %q: %w", p.Name, err)
		}
	}
	return firstErr
}

// Get returns the plugin registered under name.
func (r *Registry) Get(name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// Signature implements validator.SignatureLookup.
func (r *Registry) Signature(name string) (pluginhost.IOSignature, bool) {
	p, ok := r.Get(name)
	if !ok {
		return pluginhost.IOSignature{}, false
	}
	return p.Signature, true
}

// List returns all registered plugins sorted by name.
func (r *Registry) List() []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// pluginName calls vt.Name with a recover guard: a plugin that panics
// while self-identifying is skipped at discovery rather than taking down
// the whole scan (spec §4.2 step 4).
func pluginName(vt *pluginhost.VTable) (name string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("vtable Name() panicked: %v", r)
		}
	}()
	name = vt.Name()
	if name == "" {
		return "", fmt.Errorf("vtable Name() returned empty string")
	}
	return name, nil
}

// FromVTable builds a registry Plugin from a loaded VTable and, optionally,
// its manifest. GetMetadata's InputSchema/OutputSchema take priority over
// the manifest's declared types when both are present (SPEC_FULL.md §5).
func FromVTable(vt *pluginhost.VTable, manifest *pluginhost.Manifest, closeFn func() error) (*Plugin, error) {
	if vt.Version != pluginhost.ABIVersion {
		return nil, fmt.Errorf("unsupported ABI version %d (want %d)", vt.Version, pluginhost.ABIVersion)
	}
	if vt.Name == nil || vt.Run == nil {
		return nil, fmt.Errorf("vtable missing mandatory Name/Run functions")
	}
	name, err := pluginName(vt)
	if err != nil {
		return nil, err
	}

	sig := pluginhost.IOSignature{InputType: pluginhost.TypeAny, OutputType: pluginhost.TypeAny}
	if manifest != nil {
		sig = manifest.Signature()
	}
	if vt.GetMetadata != nil {
		md := vt.GetMetadata()
		if md.InputSchema != "" {
			sig.InputType = pluginhost.IOType(md.InputSchema)
		}
		if md.OutputSchema != "" {
			sig.OutputType = pluginhost.IOType(md.OutputSchema)
		}
		if md.Description != "" {
			sig.Description = md.Description
		}
	}

	run := vt.Run
	return &Plugin{
		Name:      name,
		Signature: sig,
		Manifest:  manifest,
		Invoke: func(in pluginhost.Input) (pluginhost.Output, error) {
			if vt.ValidateInput != nil && !vt.ValidateInput(in) {
				return pluginhost.Output{}, fmt.Errorf("plugin %q rejected input", name)
			}
			return run(in)
		},
		Close: closeFn,
	}, nil
}
