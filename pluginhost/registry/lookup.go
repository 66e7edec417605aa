package registry

import (
	"github.com/GoCodeAlone/lao-engine/execengine"
)

// EngineLookup adapts a *Registry to execengine.PluginLookup. Go's
// interface satisfaction is structural but not covariant on return types,
// so Registry.Get returning *Plugin (not execengine.Runner) can't satisfy
// PluginLookup directly — this thin wrapper is the adapter.
type EngineLookup struct {
	*Registry
}

// NewEngineLookup wraps r for use as an execengine.Engine's Plugins field.
func NewEngineLookup(r *Registry) EngineLookup {
	return EngineLookup{Registry: r}
}

// Get implements execengine.PluginLookup.
func (l EngineLookup) Get(name string) (execengine.Runner, bool) {
	p, ok := l.Registry.Get(name)
	if !ok {
		return nil, false
	}
	return p, true
}
