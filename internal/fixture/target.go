// Package fixture builds cargo target directories on disk for tests.
package fixture

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/hash"
)

// Target is a target directory under construction.
type Target struct {
	t   testing.TB
	Dir string
}

// NewTarget creates dir (and parents) and returns a builder for it.
func NewTarget(t testing.TB, dir string) *Target {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create target dir: %v", err)
	}
	return &Target{t: t, Dir: dir}
}

// UnitSpec describes one unit to write.
type UnitSpec struct {
	// Area defaults to "debug".
	Area    string
	Package string
	Kind    fingerprint.Kind
	Flavor  fingerprint.Flavor
	// Target defaults to the package name.
	Target string
	// Hash is the record directory hash; derived from the other fields
	// when empty.
	Hash string
	// Fingerprint is the unit hash value; derived from Hash when zero.
	Fingerprint uint64
	Deps        []*Unit
	// NoOutputs skips writing deps/ and build/ artifacts.
	NoOutputs bool
	// Uplift writes the final artifact copies at the area root.
	Uplift bool
}

// Unit is a unit that has been written.
type Unit struct {
	Spec      UnitSpec
	Name      fingerprint.UnitName
	Key       string
	RecordDir string
	// Outputs lists every artifact written for the unit, absolute.
	Outputs []string
}

// HashOf derives a stable 16-digit hash from parts.
func HashOf(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:8])
}

// Crate converts a target name to its crate name.
func Crate(target string) string {
	return strings.ReplaceAll(target, "-", "_")
}

// AreaDir returns the absolute directory of an area, creating its
// .fingerprint directory.
func (tg *Target) AreaDir(area string) string {
	tg.t.Helper()
	dir := filepath.Join(tg.Dir, filepath.FromSlash(area))
	tg.mkdir(filepath.Join(dir, fingerprint.FingerprintDir))
	return dir
}

// AddUnit writes a record directory with hash file, metadata and companion,
// plus the unit's artifacts unless NoOutputs is set.
func (tg *Target) AddUnit(spec UnitSpec) *Unit {
	tg.t.Helper()
	if spec.Area == "" {
		spec.Area = "debug"
	}
	if spec.Target == "" {
		spec.Target = spec.Package
		if spec.Kind == fingerprint.KindBuildScript {
			spec.Target = "build-script-build"
		}
	}
	if spec.Hash == "" {
		spec.Hash = HashOf(spec.Area, spec.Package, string(spec.Kind), string(spec.Flavor), spec.Target)
	}
	if spec.Fingerprint == 0 {
		v, err := hash.ToU64(spec.Hash)
		if err != nil {
			tg.t.Fatalf("invalid fixture hash %q: %v", spec.Hash, err)
		}
		spec.Fingerprint = ^v
	}

	areaDir := tg.AreaDir(spec.Area)
	recordName := spec.Package + "-" + spec.Hash
	u := &Unit{
		Spec:      spec,
		Name:      fingerprint.UnitName{Flavor: spec.Flavor, Kind: spec.Kind, Target: spec.Target},
		Key:       fingerprint.Key(spec.Area, recordName),
		RecordDir: filepath.Join(areaDir, fingerprint.FingerprintDir, recordName),
	}
	unitName := u.Name.String()

	tg.write(filepath.Join(u.RecordDir, unitName), []byte(hash.FromU64(spec.Fingerprint)))
	tg.write(filepath.Join(u.RecordDir, unitName+".json"), MetadataJSON(tg.t, spec))
	tg.write(filepath.Join(u.RecordDir, "dep-"+unitName), fingerprint.EncodeDepInfo(&fingerprint.DepInfo{
		Files: []fingerprint.DepFile{{Kind: fingerprint.PackageRelative, Path: "src/lib.rs"}},
	}))
	tg.write(filepath.Join(u.RecordDir, "invoked.timestamp"), nil)

	if !spec.NoOutputs {
		tg.writeOutputs(u, areaDir)
	}
	return u
}

// MetadataJSON renders the metadata file content for spec.
func MetadataJSON(t testing.TB, spec UnitSpec) []byte {
	t.Helper()
	meta := fingerprint.Metadata{
		Rustc:     1,
		Features:  "[]",
		Target:    2,
		Profile:   3,
		Path:      4,
		Deps:      []fingerprint.DepTuple{},
		Local:     []json.RawMessage{},
		Rustflags: []string{},
		Metadata:  5,
		Config:    6,
	}
	for _, d := range spec.Deps {
		meta.Deps = append(meta.Deps, fingerprint.DepTuple{
			PkgID:       7,
			Name:        Crate(d.Spec.Target),
			Fingerprint: d.Spec.Fingerprint,
		})
	}
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("failed to encode metadata: %v", err)
	}
	return data
}

func (tg *Target) writeOutputs(u *Unit, areaDir string) {
	spec := u.Spec
	crate := Crate(spec.Target)
	depsDir := filepath.Join(areaDir, fingerprint.DepsDir)

	var outputs []string
	switch {
	case spec.Kind == fingerprint.KindBuildScript && spec.Flavor == fingerprint.FlavorRun:
		dir := filepath.Join(areaDir, fingerprint.BuildDir, spec.Package+"-"+spec.Hash)
		tg.write(filepath.Join(dir, "output"), []byte("cargo:rerun-if-changed=build.rs\n"))
		tg.write(filepath.Join(dir, "out", "generated.rs"), []byte("// generated\n"))
		u.Outputs = append(u.Outputs, dir)
		return
	case spec.Kind == fingerprint.KindBuildScript:
		dir := filepath.Join(areaDir, fingerprint.BuildDir, spec.Package+"-"+spec.Hash)
		tg.write(filepath.Join(dir, "build-script-build"), []byte("ELF"))
		tg.write(filepath.Join(dir, "build_script_build-"+spec.Hash), []byte("ELF"))
		u.Outputs = append(u.Outputs, dir)
		return
	case spec.Flavor == fingerprint.FlavorBuild && (spec.Kind == fingerprint.KindLib || spec.Kind == fingerprint.KindProcMacro):
		outputs = []string{
			filepath.Join(depsDir, "lib"+crate+"-"+spec.Hash+".rlib"),
			filepath.Join(depsDir, "lib"+crate+"-"+spec.Hash+".rmeta"),
		}
	default:
		outputs = []string{filepath.Join(depsDir, crate+"-"+spec.Hash)}
	}

	for _, o := range outputs {
		tg.write(o, []byte("artifact "+filepath.Base(o)))
	}
	dfile := filepath.Join(depsDir, crate+"-"+spec.Hash+".d")
	var rule strings.Builder
	for _, o := range append(outputs, dfile) {
		rule.WriteString(o)
		rule.WriteString(": /src/" + spec.Package + "/src/lib.rs\n")
	}
	rule.WriteString("\n/src/" + spec.Package + "/src/lib.rs:\n")
	tg.write(dfile, []byte(rule.String()))
	u.Outputs = append(u.Outputs, append(outputs, dfile)...)

	if spec.Uplift && spec.Flavor == fingerprint.FlavorBuild {
		var names []string
		switch spec.Kind {
		case fingerprint.KindBin:
			names = []string{spec.Target, spec.Target + ".d"}
		case fingerprint.KindLib:
			names = []string{"lib" + crate + ".rlib", "lib" + crate + ".d"}
		}
		for _, n := range names {
			p := filepath.Join(areaDir, n)
			tg.write(p, []byte("uplifted "+n))
			u.Outputs = append(u.Outputs, p)
		}
	}
}

// WriteFile writes an arbitrary file relative to the target directory.
func (tg *Target) WriteFile(rel string, data []byte) string {
	tg.t.Helper()
	p := filepath.Join(tg.Dir, filepath.FromSlash(rel))
	tg.write(p, data)
	return p
}

// CorruptMetadata truncates the unit's JSON metadata file.
func (tg *Target) CorruptMetadata(u *Unit) {
	tg.t.Helper()
	p := filepath.Join(u.RecordDir, u.Name.String()+".json")
	data, err := os.ReadFile(p)
	if err != nil {
		tg.t.Fatalf("failed to read metadata: %v", err)
	}
	tg.write(p, data[:len(data)/2])
}

// CorruptCompanion appends garbage to the unit's dep-info companion.
func (tg *Target) CorruptCompanion(u *Unit) {
	tg.t.Helper()
	p := filepath.Join(u.RecordDir, "dep-"+u.Name.String())
	data, err := os.ReadFile(p)
	if err != nil {
		tg.t.Fatalf("failed to read companion: %v", err)
	}
	tg.write(p, append(data, 0xde, 0xad))
}

func (tg *Target) mkdir(dir string) {
	tg.t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		tg.t.Fatalf("failed to create %s: %v", dir, err)
	}
}

func (tg *Target) write(path string, data []byte) {
	tg.t.Helper()
	tg.mkdir(filepath.Dir(path))
	if err := os.WriteFile(path, data, 0644); err != nil {
		tg.t.Fatalf("failed to write %s: %v", path, err)
	}
}
