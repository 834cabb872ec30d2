package workspace

import (
	"fmt"
	"sort"
	"strings"
)

// TargetKind is a manifest target kind.
type TargetKind string

const (
	TargetLib         TargetKind = "lib"
	TargetProcMacro   TargetKind = "proc-macro"
	TargetBin         TargetKind = "bin"
	TargetTest        TargetKind = "test"
	TargetBench       TargetKind = "bench"
	TargetExample     TargetKind = "example"
	TargetCustomBuild TargetKind = "custom-build"
)

// Unit is a workspace target the collector must keep alive.
// Empty fields match anything.
type Unit struct {
	Package string `json:"package" yaml:"package"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
	// Profile is the profile name ("dev", "release", ...).
	Profile string     `json:"profile,omitempty" yaml:"profile,omitempty"`
	Kind    TargetKind `json:"kind" yaml:"kind"`
	Target  string     `json:"target,omitempty" yaml:"target,omitempty"`
	// ConfigHash pins the unit to one record hash.
	ConfigHash string `json:"config_hash,omitempty" yaml:"config_hash,omitempty"`
}

func (u Unit) String() string {
	var b strings.Builder
	b.WriteString(u.Package)
	if u.Version != "" {
		b.WriteString("@" + u.Version)
	}
	fmt.Fprintf(&b, " %s", u.Kind)
	if u.Target != "" {
		b.WriteString(" " + u.Target)
	}
	if u.Profile != "" {
		b.WriteString(" [" + u.Profile + "]")
	}
	return b.String()
}

func sortUnits(units []Unit) []Unit {
	seen := make(map[Unit]bool, len(units))
	out := units[:0]
	for _, u := range units {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String()+out[i].ConfigHash < out[j].String()+out[j].ConfigHash
	})
	return out
}
