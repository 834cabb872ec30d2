package workspace

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// packageTargets lists the root units of one package for one profile.
// Examples are never roots. Lib and bin targets also yield their
// test-mode unit.
func packageTargets(m *Manifest, version, profile string) []Unit {
	pkg := m.Package
	dir := m.Dir()
	var units []Unit
	add := func(kind TargetKind, target string) {
		units = append(units, Unit{
			Package: pkg.Name,
			Version: version,
			Profile: profile,
			Kind:    kind,
			Target:  target,
		})
	}

	if lib, ok := libTarget(m); ok {
		kind := TargetLib
		if lib.ProcMacro {
			kind = TargetProcMacro
		}
		add(kind, lib.Name)
		add(TargetTest, lib.Name)
	}

	for _, name := range autoTargets(m.Bin, enabled(pkg.Autobins), func() []string {
		var names []string
		if fileExists(filepath.Join(dir, "src", "main.rs")) {
			names = append(names, pkg.Name)
		}
		return append(names, discover(filepath.Join(dir, "src", "bin"))...)
	}) {
		add(TargetBin, name)
		add(TargetTest, name)
	}

	for _, name := range autoTargets(m.Test, enabled(pkg.Autotests), func() []string {
		return discover(filepath.Join(dir, "tests"))
	}) {
		add(TargetTest, name)
	}

	for _, name := range autoTargets(m.Bench, enabled(pkg.Autobench), func() []string {
		return discover(filepath.Join(dir, "benches"))
	}) {
		add(TargetBench, name)
	}

	if hasBuildScript(m) {
		add(TargetCustomBuild, "build-script-build")
	}
	return units
}

func libTarget(m *Manifest) (TargetSection, bool) {
	crate := strings.ReplaceAll(m.Package.Name, "-", "_")
	if m.Lib != nil {
		lib := *m.Lib
		if lib.Name == "" {
			lib.Name = crate
		}
		return lib, true
	}
	if enabled(m.Package.Autolib) && fileExists(filepath.Join(m.Dir(), "src", "lib.rs")) {
		return TargetSection{Name: crate}, true
	}
	return TargetSection{}, false
}

// autoTargets merges explicitly declared targets with autodiscovered ones.
func autoTargets(declared []TargetSection, auto bool, discovered func() []string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, t := range declared {
		name := t.Name
		if name == "" && t.Path != "" {
			name = strings.TrimSuffix(filepath.Base(t.Path), ".rs")
		}
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	if auto {
		for _, name := range discovered() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// discover finds <dir>/*.rs and <dir>/*/main.rs targets.
func discover(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		switch {
		case e.IsDir():
			if fileExists(filepath.Join(dir, e.Name(), "main.rs")) {
				names = append(names, e.Name())
			}
		case strings.HasSuffix(e.Name(), ".rs"):
			names = append(names, strings.TrimSuffix(e.Name(), ".rs"))
		}
	}
	return names
}

func hasBuildScript(m *Manifest) bool {
	switch b := m.Package.Build.(type) {
	case bool:
		return b && fileExists(filepath.Join(m.Dir(), "build.rs"))
	case string:
		return b != ""
	}
	return fileExists(filepath.Join(m.Dir(), "build.rs"))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
