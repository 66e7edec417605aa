package registry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/lao-engine/pluginhost/registry"
)

func TestWatcherStartStop(t *testing.T) {
	dir := t.TempDir()
	loader := registry.NewNativeLoader(dir)
	reg := registry.New()

	w := registry.NewWatcher(loader, reg, registry.WithDebounce(10*time.Millisecond))
	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
}
