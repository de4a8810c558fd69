// Package manifest decodes and encodes a module's on-disk manifest
// (module.anc.ason): name, version, edition, seal flag, property map,
// module dependency map, and external library map (§3).
//
// Manifests are YAML text, grounded on the teacher's benchmark-spec
// decoder (internal/eval_harness/spec.go: struct tags + yaml.Unmarshal).
package manifest

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is wrapped into the error Load returns when the manifest
// file does not exist, so callers can tell absence apart from a
// malformed manifest with errors.Is.
var ErrNotFound = errors.New("manifest not found")

// DependencyKind discriminates the five ModuleDependency cases (§3).
type DependencyKind string

const (
	Local         DependencyKind = "local"
	Remote        DependencyKind = "remote"
	Share         DependencyKind = "share"
	Runtime       DependencyKind = "runtime"
	SelfReference DependencyKind = "self"
)

// ModuleDependency is the closed tagged union of module dependency sources.
// Every switch over Kind must handle all five cases (design note §9).
type ModuleDependency struct {
	Kind DependencyKind `yaml:"kind"`

	// Local
	Path string `yaml:"path,omitempty"`

	// Remote
	URL      string `yaml:"url,omitempty"`
	Revision string `yaml:"revision,omitempty"`

	// Share
	Version string `yaml:"version,omitempty"`
}

// Equal reports whether two dependency records are structurally equal,
// used by the resolver's de-duplication arbitration (§4.5 phase 2).
func (d ModuleDependency) Equal(o ModuleDependency) bool {
	return d == o
}

// LibraryDependency is an external (non-module) library reference.
type LibraryDependency struct {
	Version string `yaml:"version"`
}

// PropertyKind discriminates the tagged PropertyValue cases.
type PropertyKind string

const (
	PropString     PropertyKind = "string"
	PropInteger    PropertyKind = "integer"
	PropBool       PropertyKind = "bool"
	PropExpression PropertyKind = "expression"

	// PropSet is a named group of feature-style flags: a default
	// enablement plus a list of explicitly included names.
	PropSet PropertyKind = "set"
)

// PropertyValue is a tagged string | integer | bool | expression | set value.
type PropertyValue struct {
	Kind PropertyKind `yaml:"kind"`
	Str  string       `yaml:"str,omitempty"`
	Int  int64        `yaml:"int,omitempty"`
	Bool bool         `yaml:"bool,omitempty"`
	Expr string       `yaml:"expr,omitempty"`

	// Set fields, used only when Kind == PropSet.
	SetDefault  bool     `yaml:"setDefault,omitempty"`
	SetIncludes []string `yaml:"setIncludes,omitempty"`
}

// Manifest is the decoded form of module.anc.ason.
type Manifest struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Edition string `yaml:"edition"`
	Seal    bool   `yaml:"seal"`

	Properties   map[string]PropertyValue    `yaml:"properties,omitempty"`
	Dependencies map[string]ModuleDependency `yaml:"dependencies,omitempty"`
	Libraries    map[string]LibraryDependency `yaml:"libraries,omitempty"`
}

// Default returns a synthesized manifest for script mode (§4.7 step 2):
// name is the caller-supplied stem, version 1.0.0, the given edition, and
// empty property/module/library maps.
func Default(name, edition string) *Manifest {
	return &Manifest{
		Name:         name,
		Version:      "1.0.0",
		Edition:      edition,
		Properties:   map[string]PropertyValue{},
		Dependencies: map[string]ModuleDependency{},
		Libraries:    map[string]LibraryDependency{},
	}
}

// Decode parses manifest text (YAML) into a Manifest.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: malformed: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest: missing name")
	}
	if m.Properties == nil {
		m.Properties = map[string]PropertyValue{}
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]ModuleDependency{}
	}
	if m.Libraries == nil {
		m.Libraries = map[string]LibraryDependency{}
	}
	return &m, nil
}

// Encode serializes m back to manifest text (YAML).
func (m *Manifest) Encode() ([]byte, error) {
	return yaml.Marshal(m)
}

// Load reads and decodes the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest: %w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("manifest: failed to read %s: %w", path, err)
	}
	return Decode(data)
}

// Save encodes and writes the manifest to path.
func (m *Manifest) Save(path string) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
