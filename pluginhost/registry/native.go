package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/GoCodeAlone/lao-engine/pluginhost"
)

// NativeLoader discovers plugins built with `go build -buildmode=plugin`:
// shared libraries exporting a `Vtable` symbol. It is the idiomatic Go
// analog of the original implementation's libloading-based dlopen loader
// (SPEC_FULL.md §4.1) — Go's own plugin package performs the dlopen and
// symbol lookup, so no third-party dynamic-loading library is involved.
type NativeLoader struct {
	Dir string
}

// NewNativeLoader returns a loader rooted at dir. Callers typically pass
// PluginDir().
func NewNativeLoader(dir string) *NativeLoader {
	return &NativeLoader{Dir: dir}
}

// PluginDir resolves the plugin directory from LAO_PLUGIN_DIR, defaulting
// to "./plugins" when unset.
func PluginDir() string {
	if v := os.Getenv("LAO_PLUGIN_DIR"); v != "" {
		return v
	}
	return "./plugins"
}

func isSharedLibrary(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".so" || ext == ".dylib" || ext == ".dll"
}

// LoadFile opens a single shared library and, on success, returns the
// registry Plugin it exports. A manifest named "<stem>.yaml" alongside the
// library is loaded if present.
func (l *NativeLoader) LoadFile(path string) (*Plugin, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", path, err)
	}
	sym, err := p.Lookup("Vtable")
	if err != nil {
		return nil, fmt.Errorf("plugin %s: missing Vtable symbol: %w", path, err)
	}
	vt, ok := sym.(*pluginhost.VTable)
	if !ok {
		return nil, fmt.Errorf("plugin %s: Vtable symbol has wrong type %T", path, sym)
	}

	var manifest *pluginhost.Manifest
	manifestPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".yaml"
	if _, statErr := os.Stat(manifestPath); statErr == nil {
		manifest, err = pluginhost.LoadManifest(manifestPath)
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", path, err)
		}
	}

	loaded, err := FromVTable(vt, manifest, nil)
	if err != nil {
		return nil, err
	}
	// Best effort: a malformed per-plugin config file leaves Config empty
	// rather than blocking the plugin from loading.
	if cfg, cfgErr := LoadPluginConfig(ConfigDir(l.Dir), loaded.Name); cfgErr == nil {
		loaded.Config = cfg
	}
	return loaded, nil
}

// LoadAll scans Dir non-recursively for shared libraries and loads each in
// turn. A single plugin failing to load does not abort the scan — it is
// skipped and reported in the returned errs slice, mirroring the teacher's
// LoadFromDirectory "best effort, collect failures" behavior.
func (l *NativeLoader) LoadAll() (plugins []*Plugin, errs []error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, []error{fmt.Errorf("read plugin dir %s: %w", l.Dir, err)}
	}
	for _, entry := range entries {
		if entry.IsDir() || !isSharedLibrary(entry.Name()) {
			continue
		}
		path := filepath.Join(l.Dir, entry.Name())
		p, err := l.LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		plugins = append(plugins, p)
	}
	return plugins, errs
}
