package pluginhost

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ResourceLimits is declarative-only metadata (spec §1 Non-goals: the core
// never enforces these) carried on a manifest so operators can audit what a
// plugin claims to need. Supplemented from the original Rust
// implementation's `ResourceLimits` (SPEC_FULL.md §3.3).
type ResourceLimits struct {
	MaxMemoryMB      int      `yaml:"max_memory_mb,omitempty"`
	MaxCPUPercent    float64  `yaml:"max_cpu_percent,omitempty"`
	MaxNetworkRPS    int      `yaml:"max_network_requests_per_second,omitempty"`
	AllowedFilePaths []string `yaml:"allowed_file_paths,omitempty"`
}

// Dependency declares a versioned dependency on another plugin, checked
// with the same semver constraint grammar as CompatibleCore (spec §6).
type Dependency struct {
	Name       string `yaml:"name"`
	Constraint string `yaml:"constraint"`
}

// Manifest describes a plugin's metadata as read from its plugin.yaml
// (spec §6). InputType/OutputType/Description supplement the spec's listed
// fields so a dynamically loaded plugin that omits VTable.GetMetadata
// still has a resolvable IOSignature (SPEC_FULL.md §5, ABI open question).
type Manifest struct {
	Name           string         `yaml:"name"`
	Version        string         `yaml:"version"`
	Description    string         `yaml:"description"`
	Author         string         `yaml:"author"`
	Tags           []string       `yaml:"tags,omitempty"`
	Capabilities   []string       `yaml:"capabilities,omitempty"`
	Dependencies   []Dependency   `yaml:"dependencies,omitempty"`
	CompatibleCore string         `yaml:"compatible_core,omitempty"`
	InputType      IOType         `yaml:"input_type,omitempty"`
	OutputType     IOType         `yaml:"output_type,omitempty"`
	ResourceLimits ResourceLimits `yaml:"resource_limits,omitempty"`
}

// LoadManifest reads and parses a plugin.yaml manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: name is required", path)
	}
	for _, dep := range m.Dependencies {
		if _, err := ParseConstraint(dep.Constraint); err != nil {
			return nil, fmt.Errorf("manifest %s: dependency %q has invalid constraint %q: %w", path, dep.Name, dep.Constraint, err)
		}
	}
	return &m, nil
}

// CheckDependencies verifies every declared dependency is present in
// installed (name -> version string) and satisfies its constraint.
func (m *Manifest) CheckDependencies(installed map[string]string) error {
	for _, dep := range m.Dependencies {
		version, ok := installed[dep.Name]
		if !ok {
			return fmt.Errorf("missing dependency %q", dep.Name)
		}
		ok, err := CheckVersion(version, dep.Constraint)
		if err != nil {
			return fmt.Errorf("dependency %q: %w", dep.Name, err)
		}
		if !ok {
			return fmt.Errorf("dependency %q: installed version %s does not satisfy %s", dep.Name, version, dep.Constraint)
		}
	}
	return nil
}

// Signature builds an IOSignature from the manifest's declared types,
// defaulting undeclared types to Any so an author who skips the fields
// doesn't accidentally block every edge in the validator.
func (m *Manifest) Signature() IOSignature {
	sig := IOSignature{
		InputType:   m.InputType,
		OutputType:  m.OutputType,
		Description: m.Description,
	}
	if sig.InputType == "" {
		sig.InputType = TypeAny
	}
	if sig.OutputType == "" {
		sig.OutputType = TypeAny
	}
	return sig
}
