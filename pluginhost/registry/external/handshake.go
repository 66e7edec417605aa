// Package external runs plugins as standalone subprocesses communicating
// over net/rpc via github.com/GoCodeAlone/go-plugin, the fork of
// hashicorp/go-plugin the teacher already depends on. It is the registry's
// second transport (SPEC_FULL.md §4.2): the registry is the only place that
// knows whether a given plugin is an in-process shared library or an
// out-of-process executable — callers just get a registry.Plugin either
// way.
//
// The teacher's own plugin/external package uses go-plugin's gRPC
// transport with protoc-generated stubs (plugin/external/proto). Without a
// protobuf compiler available in this environment, this package uses
// go-plugin's net/rpc transport instead — the same library, its other
// first-class supported mode, and the one its own canonical examples lead
// with. See DESIGN.md for the full rationale.
package external

import (
	"os"

	goplugin "github.com/GoCodeAlone/go-plugin"
)

const (
	// ProtocolVersion is the plugin protocol version. Increment on any
	// breaking change to the RPC interface.
	ProtocolVersion = 1

	// MagicCookieKey is the environment variable used for the handshake.
	MagicCookieKey = "LAO_PLUGIN"

	// MagicCookieValue is the expected handshake cookie value.
	MagicCookieValue = "lao-external-plugin-v1"
)

// Handshake is the shared handshake configuration between host and
// external plugin subprocesses. Both sides must use identical values.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  ProtocolVersion,
	MagicCookieKey:   MagicCookieKey,
	MagicCookieValue: MagicCookieValue,
}

// DefaultDir resolves the external-plugin directory from
// LAO_EXTERNAL_PLUGIN_DIR, defaulting to "./external-plugins".
func DefaultDir() string {
	if v := os.Getenv("LAO_EXTERNAL_PLUGIN_DIR"); v != "" {
		return v
	}
	return "./external-plugins"
}

// Serve is what an external plugin binary calls from its main to hand
// control to go-plugin's server loop: it blocks, serving impl over net/rpc
// until the host kills the subprocess.
func Serve(impl RunnerService) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         goplugin.PluginSet{"plugin": &RPCPlugin{Impl: impl}},
	})
}
