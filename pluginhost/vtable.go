package pluginhost

// ABIVersion is the vtable layout version the host expects. A plugin whose
// VTable.Version does not equal ABIVersion is rejected at discovery time
// (spec §4.2 step 3, §8 "ABI guard").
const ABIVersion uint32 = 1

// Metadata is the optional richer self-description a plugin may provide via
// VTable.GetMetadata. Fields mirror plugin.yaml's manifest fields so a
// plugin and its manifest can agree on provenance without one overriding
// the other silently.
type Metadata struct {
	Name         string
	Version      string
	Description  string
	Author       string
	Dependencies []string
	Tags         []string
	InputSchema  string
	OutputSchema string
	Capabilities []string
}

// VTable is the Go rendition of the host<->plugin ABI boundary described in
// spec §4.1: a record of function pointers exported by a plugin under a
// well-known symbol ("Vtable") from a library built with
// `go build -buildmode=plugin`. It plays the same role the original
// implementation's `#[repr(C)] PluginVTable` (loaded via Rust's
// `libloading`) plays for a dlopen'd shared library — Go's `plugin`
// package is the idiomatic equivalent of dlopen+symbol lookup, so the
// "vtable" here is an ordinary struct of func fields rather than a cgo
// #[repr(C)] layout.
//
// Mandatory fields: Version, Name, Run, FreeOutput, RunWithBuffer. At load
// time the registry checks Version, Name and Run only; a nil FreeOutput or
// RunWithBuffer is accepted. Optional (newer-version) fields: GetMetadata, ValidateInput,
// GetCapabilities — a nil field is treated as "not provided" (see
// SPEC_FULL.md §5 Open Questions).
type VTable struct {
	// Version must equal ABIVersion or the registry refuses to register
	// the plugin.
	Version uint32

	// Name self-identifies the plugin; the registry indexes plugins by
	// this value, not by the shared library's filename.
	Name func() string

	// Run synchronously invokes the plugin.
	Run func(Input) (Output, error)

	// FreeOutput releases any non-GC resources Run allocated (open file
	// handles, cgo buffers). Go plugins are garbage collected, so this is
	// usually a no-op; it is kept for symmetry with the ABI's
	// memory-ownership contract and for plugins that do hold such
	// resources.
	FreeOutput func(Output)

	// RunWithBuffer is the zero-copy variant: it writes up to
	// len(buf)-1 bytes of the stringified output plus a terminator and
	// returns the number of bytes written.
	RunWithBuffer func(in Input, buf []byte) int

	// GetMetadata returns a richer self-description. Optional.
	GetMetadata func() Metadata

	// ValidateInput reports whether in is acceptable without running the
	// plugin. Optional; nil is treated as "always valid".
	ValidateInput func(in Input) bool

	// GetCapabilities returns a JSON-encoded capability document.
	// Optional.
	GetCapabilities func() string
}
