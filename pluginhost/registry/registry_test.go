package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/lao-engine/pluginhost"
	"github.com/GoCodeAlone/lao-engine/pluginhost/registry"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	r := registry.New()
	p := &registry.Plugin{Name: "echo", Signature: pluginhost.IOSignature{InputType: pluginhost.TypeText, OutputType: pluginhost.TypeText}}
	require.NoError(t, r.Register(p))

	got, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", got.Name)
}

func TestRegistryRegisterDuplicateIsError(t *testing.T) {
	r := registry.New()
	p := &registry.Plugin{Name: "echo"}
	require.NoError(t, r.Register(p))
	assert.Error(t, r.Register(p))
}

func TestRegistryReplaceOverwrites(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(&registry.Plugin{Name: "echo", Signature: pluginhost.IOSignature{OutputType: pluginhost.TypeText}}))
	r.Replace(&registry.Plugin{Name: "echo", Signature: pluginhost.IOSignature{OutputType: pluginhost.TypeJSON}})

	got, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, pluginhost.TypeJSON, got.Signature.OutputType)
}

func TestRegistryUnregisterClosesPlugin(t *testing.T) {
	r := registry.New()
	closed := false
	require.NoError(t, r.Register(&registry.Plugin{Name: "echo", Close: func() error { closed = true; return nil }}))

	require.NoError(t, r.Unregister("echo"))
	assert.True(t, closed)

	_, ok := r.Get("echo")
	assert.False(t, ok)
}

func TestRegistryListSortedByName(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(&registry.Plugin{Name: "zeta"}))
	require.NoError(t, r.Register(&registry.Plugin{Name: "alpha"}))

	names := make([]string, 0, 2)
	for _, p := range r.List() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestRegistrySignatureImplementsLookup(t *testing.T) {
	r := registry.New()
	require.NoError(t, r.Register(&registry.Plugin{Name: "echo", Signature: pluginhost.IOSignature{InputType: pluginhost.TypeText, OutputType: pluginhost.TypeText}}))

	sig, ok := r.Signature("echo")
	require.True(t, ok)
	assert.Equal(t, pluginhost.TypeText, sig.InputType)

	_, ok = r.Signature("missing")
	assert.False(t, ok)
}

func TestRegistryCloseReleasesInReverseLoadOrder(t *testing.T) {
	r := registry.New()
	var closed []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		require.NoError(t, r.Register(&registry.Plugin{Name: name, Close: func() error {
			closed = append(closed, name)
			return nil
		}}))
	}

	require.NoError(t, r.Close())
	assert.Equal(t, []string{"third", "second", "first"}, closed)
	assert.Empty(t, r.List())
}

func TestPluginLifecycleHooksNilSafe(t *testing.T) {
	p := &registry.Plugin{Name: "bare"}
	assert.NoError(t, p.Init())
	assert.NoError(t, p.PreExecute(pluginhost.TextInput("x")))
	assert.NoError(t, p.PostExecute())
	assert.NoError(t, p.Shutdown())
}

func TestPluginInitHookReceivesConfig(t *testing.T) {
	var got map[string]any
	p := &registry.Plugin{
		Name:     "cfg",
		Config:   map[string]any{"verbose": true},
		InitHook: func(config map[string]any) error { got = config; return nil },
	}
	require.NoError(t, p.Init())
	assert.Equal(t, true, got["verbose"])
}

func TestFromVTableRejectsBadVersion(t *testing.T) {
	vt := &pluginhost.VTable{
		Version: pluginhost.ABIVersion + 1,
		Name:    func() string { return "x" },
		Run:     func(pluginhost.Input) (pluginhost.Output, error) { return pluginhost.Output{}, nil },
	}
	_, err := registry.FromVTable(vt, nil, nil)
	assert.Error(t, err)
}

func TestFromVTablePanickingNameIsAnError(t *testing.T) {
	vt := &pluginhost.VTable{
		Version: pluginhost.ABIVersion,
		Name:    func() string { panic("bad plugin") },
		Run:     func(pluginhost.Input) (pluginhost.Output, error) { return pluginhost.Output{}, nil },
	}
	_, err := registry.FromVTable(vt, nil, nil)
	assert.Error(t, err)
}

func TestFromVTableMetadataOverridesManifestTypes(t *testing.T) {
	vt := &pluginhost.VTable{
		Version: pluginhost.ABIVersion,
		Name:    func() string { return "x" },
		Run:     func(pluginhost.Input) (pluginhost.Output, error) { return pluginhost.Output{}, nil },
		GetMetadata: func() pluginhost.Metadata {
			return pluginhost.Metadata{InputSchema: "Json", OutputSchema: "Text"}
		},
	}
	manifest := &pluginhost.Manifest{Name: "x", InputType: pluginhost.TypeText, OutputType: pluginhost.TypeText}

	p, err := registry.FromVTable(vt, manifest, nil)
	require.NoError(t, err)
	assert.Equal(t, pluginhost.TypeJSON, p.Signature.InputType)
	assert.Equal(t, pluginhost.TypeText, p.Signature.OutputType)
}

func TestFromVTableValidateInputRejectsRun(t *testing.T) {
	vt := &pluginhost.VTable{
		Version:       pluginhost.ABIVersion,
		Name:          func() string { return "x" },
		Run:           func(pluginhost.Input) (pluginhost.Output, error) { return pluginhost.Output{Kind: pluginhost.TypeText, Text: "ok"}, nil },
		ValidateInput: func(pluginhost.Input) bool { return false },
	}
	p, err := registry.FromVTable(vt, nil, nil)
	require.NoError(t, err)

	_, err = p.Run(pluginhost.TextInput("hi"))
	assert.Error(t, err)
}
