package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir resolves the per-plugin config directory from LAO_CONFIG_DIR,
// defaulting to "<plugin-dir>/configs" (SPEC_FULL.md §3.2).
func ConfigDir(pluginDir string) string {
	if v := os.Getenv("LAO_CONFIG_DIR"); v != "" {
		return v
	}
	return filepath.Join(pluginDir, "configs")
}

// LoadPluginConfig reads "<configDir>/<name>.json" and decodes it into a
// generic map. A missing file is not an error: it returns an empty map, so
// a plugin without configuration still runs with its defaults.
func LoadPluginConfig(configDir, name string) (map[string]any, error) {
	path := filepath.Join(configDir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read plugin config %s: %w", path, err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse plugin config %s: %w", path, err)
	}
	return cfg, nil
}

// SavePluginConfig writes cfg to "<configDir>/<name>.json", creating the
// directory if needed.
func SavePluginConfig(configDir, name string, cfg map[string]any) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create plugin config dir %s: %w", configDir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode plugin config for %s: %w", name, err)
	}
	path := filepath.Join(configDir, name+".json")
	return os.WriteFile(path, data, 0o644)
}
