// Package workspace resolves the cargo workspace being collected: its root,
// its target directory, and the units that must stay alive.
package workspace

import (
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"

	"github.com/danieljhkim/cargo-gc-target/internal/config"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
)

// Resolver answers the three questions the collector asks about a workspace.
type Resolver interface {
	// WorkspaceRoot returns the absolute workspace root directory.
	WorkspaceRoot() string

	// TargetDirectory returns the absolute target directory.
	TargetDirectory() (string, error)

	// RootUnits returns the units to keep alive for the given profile names.
	// No profiles means units matching any profile.
	RootUnits(profiles []string) ([]Unit, error)
}

// Options configures workspace discovery.
type Options struct {
	// ManifestPath overrides discovery from WorkDir.
	ManifestPath string

	// WorkDir is where discovery starts and relative paths resolve from.
	WorkDir string

	// TargetDir is an explicit override with the highest precedence.
	TargetDir string

	// UnitGraph replaces manifest-derived roots with a unit-graph file.
	UnitGraph string

	// Getenv reads the environment; nil means no environment.
	Getenv func(string) string
}

// CargoResolver resolves a workspace from its manifests.
type CargoResolver struct {
	fs     fsops.FS
	logger *zap.Logger
	opts   Options
	root   *Manifest
}

// Discover locates the workspace described by opts.
func Discover(fs fsops.FS, logger *zap.Logger, opts Options) (*CargoResolver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	workDir, err := filepath.Abs(opts.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	opts.WorkDir = workDir

	path := opts.ManifestPath
	if path == "" {
		path, err = FindManifest(fs, workDir)
		if err != nil {
			return nil, err
		}
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	manifest, err := LoadManifest(fs, path)
	if err != nil {
		return nil, err
	}
	root, err := findWorkspaceManifest(fs, manifest)
	if err != nil {
		return nil, err
	}

	logger.Debug("workspace resolved",
		zap.String("manifest", manifest.Path),
		zap.String("root", root.Dir()))
	return &CargoResolver{fs: fs, logger: logger, opts: opts, root: root}, nil
}

// WorkspaceRoot returns the directory of the workspace manifest.
func (r *CargoResolver) WorkspaceRoot() string {
	return r.root.Dir()
}

// TargetDirectory applies the precedence: explicit override, then
// build.target-dir from .cargo/config.toml (searched upward from the
// workspace root), then CARGO_TARGET_DIR, then <root>/target.
func (r *CargoResolver) TargetDirectory() (string, error) {
	if r.opts.TargetDir != "" {
		return r.absolute(r.opts.TargetDir, r.opts.WorkDir), nil
	}

	dir, base, err := r.configTargetDir()
	if err != nil {
		return "", err
	}
	if dir != "" {
		return r.absolute(dir, base), nil
	}

	if r.opts.Getenv != nil {
		if env := r.opts.Getenv("CARGO_TARGET_DIR"); env != "" {
			return r.absolute(env, r.opts.WorkDir), nil
		}
	}
	return filepath.Join(r.WorkspaceRoot(), "target"), nil
}

type cargoConfig struct {
	Build struct {
		TargetDir string `toml:"target-dir"`
	} `toml:"build"`
}

// configTargetDir returns build.target-dir from the nearest project config
// and the directory it is relative to.
func (r *CargoResolver) configTargetDir() (string, string, error) {
	current := r.WorkspaceRoot()
	for {
		for _, name := range []string{"config.toml", "config"} {
			path := filepath.Join(current, ".cargo", name)
			if !isFile(r.fs, path) {
				continue
			}
			data, err := r.fs.ReadFile(path)
			if err != nil {
				if fsops.IsVanished(err) {
					continue
				}
				return "", "", fmt.Errorf("failed to read %s: %w", path, err)
			}
			var cfg cargoConfig
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return "", "", fmt.Errorf("failed to parse %s: %w", path, err)
			}
			if cfg.Build.TargetDir != "" {
				r.logger.Debug("target-dir from config", zap.String("config", path))
				return cfg.Build.TargetDir, current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", "", nil
		}
		current = parent
	}
}

func (r *CargoResolver) absolute(path, base string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(base, path)
}

// Members returns the manifests of every workspace member, sorted by path.
func (r *CargoResolver) Members() ([]*Manifest, error) {
	dirs, err := memberDirs(r.root)
	if err != nil {
		return nil, err
	}
	members := make([]*Manifest, 0, len(dirs))
	for _, dir := range dirs {
		if dir == r.root.Dir() {
			members = append(members, r.root)
			continue
		}
		m, err := LoadManifest(r.fs, filepath.Join(dir, ManifestName))
		if err != nil {
			return nil, err
		}
		if m.Package == nil {
			continue
		}
		members = append(members, m)
	}
	return members, nil
}

// RootUnits lists every member's targets, or the unit-graph units when a
// unit graph was given.
func (r *CargoResolver) RootUnits(profiles []string) ([]Unit, error) {
	if r.opts.UnitGraph != "" {
		path := r.absolute(r.opts.UnitGraph, r.opts.WorkDir)
		units, err := LoadUnitGraph(r.fs, path)
		if err != nil {
			return nil, err
		}
		return filterProfiles(units, profiles), nil
	}

	members, err := r.Members()
	if err != nil {
		return nil, err
	}
	inherited := ""
	if r.root.Workspace != nil && r.root.Workspace.Package != nil {
		inherited = r.root.Workspace.Package.Version
	}
	if len(profiles) == 0 {
		profiles = []string{""}
	}

	var units []Unit
	for _, m := range members {
		if m.Package == nil {
			continue
		}
		version := m.PackageVersion(inherited)
		for _, p := range profiles {
			units = append(units, packageTargets(m, version, p)...)
		}
	}
	r.logger.Debug("root units resolved", zap.Int("members", len(members)), zap.Int("units", len(units)))
	return sortUnits(units), nil
}

// filterProfiles keeps units whose profile shares a directory with one of
// profiles.
func filterProfiles(units []Unit, profiles []string) []Unit {
	if len(profiles) == 0 {
		return sortUnits(units)
	}
	want := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		want[config.ProfileDir(p)] = true
	}
	var out []Unit
	for _, u := range units {
		if u.Profile == "" || want[config.ProfileDir(u.Profile)] {
			out = append(out, u)
		}
	}
	return sortUnits(out)
}

// Static is a fixed Resolver.
type Static struct {
	Root   string
	Target string
	Units  []Unit
}

// WorkspaceRoot returns s.Root.
func (s *Static) WorkspaceRoot() string { return s.Root }

// TargetDirectory returns s.Target, defaulting to <root>/target.
func (s *Static) TargetDirectory() (string, error) {
	if s.Target == "" {
		return filepath.Join(s.Root, "target"), nil
	}
	return s.Target, nil
}

// RootUnits returns s.Units. Units without a profile are expanded to each
// requested profile.
func (s *Static) RootUnits(profiles []string) ([]Unit, error) {
	if len(profiles) == 0 {
		return sortUnits(append([]Unit(nil), s.Units...)), nil
	}
	var out []Unit
	for _, u := range s.Units {
		if u.Profile != "" {
			out = append(out, u)
			continue
		}
		for _, p := range profiles {
			pu := u
			pu.Profile = p
			out = append(out, pu)
		}
	}
	return filterProfiles(out, profiles), nil
}
