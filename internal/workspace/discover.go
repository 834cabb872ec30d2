package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
)

// ErrNoManifest is returned when no Cargo.toml can be found.
var ErrNoManifest = errors.New("could not find Cargo.toml")

// FindManifest finds the nearest Cargo.toml by walking up from cwd.
func FindManifest(fs fsops.FS, cwd string) (string, error) {
	absPath, err := filepath.Abs(cwd)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absPath
	for {
		candidate := filepath.Join(current, ManifestName)
		if isFile(fs, candidate) {
			return candidate, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNoManifest, absPath)
		}
		current = parent
	}
}

// findWorkspaceManifest returns the manifest of the workspace pkg belongs
// to, or pkg itself when it is not a workspace member.
func findWorkspaceManifest(fs fsops.FS, pkg *Manifest) (*Manifest, error) {
	if pkg.IsWorkspace() {
		return pkg, nil
	}

	if pkg.Package != nil && pkg.Package.Workspace != "" {
		dir := pkg.Package.Workspace
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(pkg.Dir(), dir)
		}
		ws, err := LoadManifest(fs, filepath.Join(dir, ManifestName))
		if err != nil {
			return nil, fmt.Errorf("failed to load workspace of %s: %w", pkg.Path, err)
		}
		if !ws.IsWorkspace() {
			return nil, fmt.Errorf("%s is not a workspace manifest", ws.Path)
		}
		return ws, nil
	}

	current := filepath.Dir(pkg.Dir())
	for {
		candidate := filepath.Join(current, ManifestName)
		if isFile(fs, candidate) {
			ws, err := LoadManifest(fs, candidate)
			if err == nil && ws.IsWorkspace() {
				members, err := memberDirs(ws)
				if err != nil {
					return nil, err
				}
				for _, m := range members {
					if m == pkg.Dir() {
						return ws, nil
					}
				}
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return pkg, nil
		}
		current = parent
	}
}

// memberDirs expands [workspace] members and exclude into member package
// directories. The root package, when present, is always a member.
func memberDirs(ws *Manifest) ([]string, error) {
	root := ws.Dir()
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	if ws.Package != nil {
		add(root)
	}
	if ws.Workspace == nil {
		return dirs, nil
	}

	rootFS := os.DirFS(root)
	for _, pattern := range ws.Workspace.Members {
		pattern = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(pattern)), "/")
		var matches []string
		if hasMeta(pattern) {
			m, err := doublestar.Glob(rootFS, pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid workspace member pattern %q: %w", pattern, err)
			}
			matches = m
		} else {
			matches = []string{pattern}
		}
		for _, rel := range matches {
			skip, err := excluded(ws.Workspace.Exclude, rel)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
			dir := filepath.Join(root, filepath.FromSlash(rel))
			if _, err := os.Stat(filepath.Join(dir, ManifestName)); err != nil {
				continue
			}
			add(dir)
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

func excluded(patterns []string, rel string) (bool, error) {
	for _, p := range patterns {
		p = strings.TrimSuffix(filepath.ToSlash(filepath.Clean(p)), "/")
		ok, err := doublestar.Match(p, rel)
		if err != nil {
			return false, fmt.Errorf("invalid workspace exclude pattern %q: %w", p, err)
		}
		if ok || strings.HasPrefix(rel, p+"/") {
			return true, nil
		}
	}
	return false, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func isFile(fs fsops.FS, path string) bool {
	info, err := fs.Lstat(path)
	if err != nil {
		return false
	}
	if info.Mode()&os.ModeSymlink != 0 {
		resolved, err := fs.EvalSymlinks(path)
		if err != nil {
			return false
		}
		info, err = fs.Lstat(resolved)
		if err != nil {
			return false
		}
	}
	return info.Mode().IsRegular()
}
