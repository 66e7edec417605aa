package external

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	goplugin "github.com/GoCodeAlone/go-plugin"
	hclog "github.com/hashicorp/go-hclog"

	"github.com/GoCodeAlone/lao-engine/pluginhost"
)

// Manager discovers and runs external plugin subprocesses. Each plugin
// lives in its own subdirectory of Dir named after the plugin, containing
// a plugin.yaml manifest and an executable matching the directory name.
// Adapted from the teacher's plugin/external.ExternalPluginManager, with
// the gRPC transport swapped for net/rpc (see handshake.go) and the
// manifest format switched from plugin.json to the module's YAML manifest.
type Manager struct {
	Dir    string
	Logger *log.Logger

	mu       sync.Mutex
	clients  map[string]*goplugin.Client
	hclogger hclog.Logger
}

// NewManager builds a Manager rooted at dir. The subprocess handshake's
// own diagnostic logging (go-plugin's ClientConfig.Logger field, which
// only accepts hclog.Logger) is derived from the same logger's writer so
// host and plugin startup messages interleave in one stream.
func NewManager(dir string, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(os.Stderr, "[external-plugins] ", log.LstdFlags)
	}
	hl := hclog.New(&hclog.LoggerOptions{
		Name:   "external-plugins",
		Output: logger.Writer(),
		Level:  hclog.Warn,
	})
	return &Manager{Dir: dir, Logger: logger, clients: make(map[string]*goplugin.Client), hclogger: hl}
}

// Discover returns the names of subdirectories that contain both a
// plugin.yaml manifest and an executable matching the directory name.
func (m *Manager) Discover() ([]string, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read external plugin dir %s: %w", m.Dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		manifestPath := filepath.Join(m.Dir, name, "plugin.yaml")
		binaryPath := filepath.Join(m.Dir, name, name)
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}
		if _, err := os.Stat(binaryPath); err != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Load starts the named plugin's subprocess, performs the handshake, and
// returns a RunnerService backed by it plus a manifest, if present.
func (m *Manager) Load(name string) (RunnerService, *pluginhost.Manifest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[name]; exists {
		return nil, nil, fmt.Errorf("external plugin %q is already loaded", name)
	}

	dir := filepath.Join(m.Dir, name)
	manifestPath := filepath.Join(dir, "plugin.yaml")
	binaryPath := filepath.Join(dir, name)

	var manifest *pluginhost.Manifest
	if _, err := os.Stat(manifestPath); err == nil {
		manifest, err = pluginhost.LoadManifest(manifestPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load manifest for external plugin %q: %w", name, err)
		}
	}

	info, err := os.Stat(binaryPath)
	if err != nil {
		return nil, nil, fmt.Errorf("stat binary for external plugin %q: %w", name, err)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("external plugin %q binary path is a directory", name)
	}

	m.Logger.Printf("starting external plugin %q", name)

	cmd := exec.Command(binaryPath)
	cmd.Dir = dir

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          goplugin.PluginSet{"plugin": &RPCPlugin{}},
		Cmd:              cmd,
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		Logger:           m.hclogger,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("connect to external plugin %q: %w", name, err)
	}

	raw, err := rpcClient.Dispense("plugin")
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("dispense external plugin %q: %w", name, err)
	}

	runner, ok := raw.(RunnerService)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("external plugin %q: dispensed object is not a RunnerService (got %T)", name, raw)
	}

	m.clients[name] = client
	m.Logger.Printf("external plugin %q loaded", name)
	return runner, manifest, nil
}

// Unload kills the named plugin's subprocess.
func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client, exists := m.clients[name]
	if !exists {
		return fmt.Errorf("external plugin %q is not loaded", name)
	}
	client.Kill()
	delete(m.clients, name)
	m.Logger.Printf("external plugin %q unloaded", name)
	return nil
}

// Shutdown kills every loaded plugin subprocess.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, client := range m.clients {
		m.Logger.Printf("shutting down external plugin %q", name)
		client.Kill()
	}
	m.clients = make(map[string]*goplugin.Client)
}
