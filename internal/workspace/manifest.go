package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
)

// ManifestName is the package manifest file name.
const ManifestName = "Cargo.toml"

// Manifest is the subset of Cargo.toml the resolver reads. Unknown keys are
// ignored.
type Manifest struct {
	Package   *PackageSection   `toml:"package"`
	Workspace *WorkspaceSection `toml:"workspace"`
	Lib       *TargetSection    `toml:"lib"`
	Bin       []TargetSection   `toml:"bin"`
	Test      []TargetSection   `toml:"test"`
	Bench     []TargetSection   `toml:"bench"`
	Example   []TargetSection   `toml:"example"`

	// Path is the manifest's absolute path.
	Path string `toml:"-"`
}

// PackageSection is [package].
type PackageSection struct {
	Name string `toml:"name"`
	// Version is a string or {workspace = true}.
	Version any `toml:"version"`
	// Build is a path or false.
	Build     any    `toml:"build"`
	Workspace string `toml:"workspace"`
	Autolib   *bool  `toml:"autolib"`
	Autobins  *bool  `toml:"autobins"`
	Autotests *bool  `toml:"autotests"`
	Autobench *bool  `toml:"autobenches"`
}

// WorkspaceSection is [workspace].
type WorkspaceSection struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
	Package *struct {
		Version string `toml:"version"`
	} `toml:"package"`
}

// TargetSection is [lib] or one [[bin]], [[test]], [[bench]], [[example]].
type TargetSection struct {
	Name      string `toml:"name"`
	Path      string `toml:"path"`
	ProcMacro bool   `toml:"proc-macro"`
}

// Dir returns the directory holding the manifest.
func (m *Manifest) Dir() string {
	return filepath.Dir(m.Path)
}

// IsWorkspace reports whether the manifest has a [workspace] table.
func (m *Manifest) IsWorkspace() bool {
	return m.Workspace != nil
}

// PackageName returns the package name, or "" for a virtual manifest.
func (m *Manifest) PackageName() string {
	if m.Package == nil {
		return ""
	}
	return m.Package.Name
}

// PackageVersion returns the literal version, falling back to the
// workspace-inherited one when given.
func (m *Manifest) PackageVersion(inherited string) string {
	if m.Package == nil {
		return ""
	}
	switch v := m.Package.Version.(type) {
	case string:
		return v
	case map[string]any:
		if ws, _ := v["workspace"].(bool); ws {
			return inherited
		}
	}
	return ""
}

// LoadManifest reads and decodes the manifest at path.
func LoadManifest(fs fsops.FS, path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	data, err := fs.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", abs, err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", abs, err)
	}
	if m.Package == nil && m.Workspace == nil {
		return nil, fmt.Errorf("manifest %s has neither [package] nor [workspace]", abs)
	}
	if m.Package != nil && m.Package.Name == "" {
		return nil, fmt.Errorf("manifest %s: package.name is missing", abs)
	}
	m.Path = abs
	return &m, nil
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}
