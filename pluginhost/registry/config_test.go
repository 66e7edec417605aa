package registry_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/lao-engine/pluginhost/registry"
)

func TestLoadPluginConfigMissingReturnsEmpty(t *testing.T) {
	cfg, err := registry.LoadPluginConfig(t.TempDir(), "nope")
	require.NoError(t, err)
	assert.Empty(t, cfg)
}

func TestSaveAndLoadPluginConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, registry.SavePluginConfig(dir, "uppercase", map[string]any{"locale": "en"}))

	cfg, err := registry.LoadPluginConfig(dir, "uppercase")
	require.NoError(t, err)
	assert.Equal(t, "en", cfg["locale"])
}

func TestConfigDirDefaultsUnderPluginDir(t *testing.T) {
	t.Setenv("LAO_CONFIG_DIR", "")
	dir := registry.ConfigDir("/plugins")
	assert.Equal(t, filepath.Join("/plugins", "configs"), dir)
}
