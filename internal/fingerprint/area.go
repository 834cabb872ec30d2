package fingerprint

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
)

// FingerprintDir is the name of the per-area record directory.
const FingerprintDir = ".fingerprint"

// Area is one profile directory of the target directory.
type Area struct {
	// Name is the path relative to the target directory, e.g. "debug" or
	// "x86_64-unknown-linux-gnu/release".
	Name string
	// Dir is the absolute directory.
	Dir string
	// Profile is the profile directory name.
	Profile string
	// Triple is the target triple, empty for the host.
	Triple string
}

// FingerprintPath returns the area's .fingerprint directory.
func (a Area) FingerprintPath() string {
	return filepath.Join(a.Dir, FingerprintDir)
}

// DiscoverAreas lists every area under targetDir, sorted by name.
//
// A directory is an area when it contains .fingerprint. Directories whose
// name contains '-' and which are not areas themselves are treated as target
// triples and searched one level deeper.
func DiscoverAreas(fsys fsops.FS, targetDir string) ([]Area, error) {
	info, err := fsys.Lstat(targetDir)
	if err != nil {
		if fsops.IsVanished(err) {
			return nil, formatErrorf(targetDir, "target directory does not exist")
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, formatErrorf(targetDir, "target directory is not a directory")
	}

	children, err := fsys.ReadDir(targetDir)
	if err != nil {
		return nil, err
	}

	var areas []Area
	for _, child := range children {
		if !child.IsDir() || strings.HasPrefix(child.Name(), ".") || child.Name() == "doc" {
			continue
		}
		dir := filepath.Join(targetDir, child.Name())

		ok, err := isArea(fsys, dir)
		if err != nil {
			return nil, err
		}
		if ok {
			areas = append(areas, Area{Name: child.Name(), Dir: dir, Profile: child.Name()})
			continue
		}
		if !strings.Contains(child.Name(), "-") {
			continue
		}

		profiles, err := fsys.ReadDir(dir)
		if err != nil {
			if fsops.IsVanished(err) {
				continue
			}
			return nil, err
		}
		for _, p := range profiles {
			if !p.IsDir() || strings.HasPrefix(p.Name(), ".") {
				continue
			}
			pdir := filepath.Join(dir, p.Name())
			ok, err := isArea(fsys, pdir)
			if err != nil {
				return nil, err
			}
			if ok {
				areas = append(areas, Area{
					Name:    child.Name() + "/" + p.Name(),
					Dir:     pdir,
					Profile: p.Name(),
					Triple:  child.Name(),
				})
			}
		}
	}

	if len(areas) == 0 {
		return nil, formatErrorf(targetDir, "no profile directory with a %s directory found", FingerprintDir)
	}

	sort.Slice(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return areas, nil
}

func isArea(fsys fsops.FS, dir string) (bool, error) {
	fp := filepath.Join(dir, FingerprintDir)
	info, err := fsys.Lstat(fp)
	if err != nil {
		if fsops.IsVanished(err) {
			return false, nil
		}
		return false, err
	}
	if !info.IsDir() {
		return false, formatErrorf(fp, "%s is not a directory", FingerprintDir)
	}
	return true, nil
}

// SelectAreas keeps the areas whose profile directory is in profileDirs.
// A nil selection keeps everything.
func SelectAreas(areas []Area, profileDirs []string) []Area {
	if profileDirs == nil {
		return areas
	}
	want := make(map[string]bool, len(profileDirs))
	for _, p := range profileDirs {
		want[p] = true
	}
	var out []Area
	for _, a := range areas {
		if want[a.Profile] {
			out = append(out, a)
		}
	}
	return out
}
