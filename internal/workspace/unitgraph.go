package workspace

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
)

// UnitGraphVersion is the only unit-graph format version understood.
const UnitGraphVersion = 1

type unitGraph struct {
	Version int             `json:"version"`
	Units   []unitGraphUnit `json:"units"`
	Roots   []int           `json:"roots"`
}

type unitGraphUnit struct {
	PkgID  string `json:"pkg_id"`
	Target struct {
		Kind []string `json:"kind"`
		Name string   `json:"name"`
	} `json:"target"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	Platform *string `json:"platform"`
	Mode     string  `json:"mode"`
}

// LoadUnitGraph reads a unit-graph file and returns its units as roots.
func LoadUnitGraph(fs fsops.FS, path string) ([]Unit, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read unit graph: %w", err)
	}
	units, err := ParseUnitGraph(data)
	if err != nil {
		return nil, fmt.Errorf("unit graph %s: %w", path, err)
	}
	return units, nil
}

// ParseUnitGraph decodes a version 1 unit graph. Every unit in the graph is
// returned, not just its roots, since the graph is already the resolved
// closure. Doc and example units are dropped; they are never swept.
func ParseUnitGraph(data []byte) ([]Unit, error) {
	var g unitGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, &fingerprint.FormatError{Reason: fmt.Sprintf("malformed unit graph: %v", err)}
	}
	if g.Version != UnitGraphVersion {
		return nil, &fingerprint.FormatError{
			Reason: fmt.Sprintf("unsupported unit graph version %d (want %d)", g.Version, UnitGraphVersion),
		}
	}
	for _, r := range g.Roots {
		if r < 0 || r >= len(g.Units) {
			return nil, &fingerprint.FormatError{Reason: fmt.Sprintf("unit graph root %d out of range", r)}
		}
	}

	var units []Unit
	for _, gu := range g.Units {
		u, ok := gu.toUnit()
		if ok {
			units = append(units, u)
		}
	}
	return sortUnits(units), nil
}

func (gu unitGraphUnit) toUnit() (Unit, bool) {
	name, version := parsePkgID(gu.PkgID)
	u := Unit{
		Package: name,
		Version: version,
		Profile: gu.Profile.Name,
		Target:  gu.Target.Name,
	}

	switch gu.Mode {
	case "doc", "doctest":
		return Unit{}, false
	case "run-custom-build":
		u.Kind = TargetCustomBuild
		return u, true
	}

	kind := targetKind(gu.Target.Kind)
	switch {
	case kind == "" || kind == TargetExample:
		return Unit{}, false
	case gu.Mode == "test" || gu.Mode == "bench":
		if kind == TargetBench {
			u.Kind = TargetBench
		} else {
			u.Kind = TargetTest
		}
	default:
		u.Kind = kind
	}
	return u, true
}

func targetKind(kinds []string) TargetKind {
	for _, k := range kinds {
		switch k {
		case "lib", "rlib", "dylib", "cdylib", "staticlib":
			return TargetLib
		case "proc-macro":
			return TargetProcMacro
		case "bin":
			return TargetBin
		case "test":
			return TargetTest
		case "bench":
			return TargetBench
		case "example":
			return TargetExample
		case "custom-build":
			return TargetCustomBuild
		}
	}
	return ""
}

// parsePkgID understands both package id forms:
// "name 1.0.0 (source)" and "source#name@1.0.0" (or "source#1.0.0").
func parsePkgID(id string) (name, version string) {
	if i := strings.LastIndex(id, "#"); i >= 0 {
		frag := id[i+1:]
		if at := strings.LastIndex(frag, "@"); at >= 0 {
			return frag[:at], frag[at+1:]
		}
		src := strings.TrimRight(id[:i], "/")
		return src[strings.LastIndex(src, "/")+1:], frag
	}
	fields := strings.Fields(id)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], fields[1]
	}
}
