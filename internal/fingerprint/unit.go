package fingerprint

import "strings"

// Kind is a cargo target kind as it appears in unit file names.
type Kind string

const (
	KindLib             Kind = "lib"
	KindBin             Kind = "bin"
	KindIntegrationTest Kind = "integration-test"
	KindBench           Kind = "bench"
	KindExample         Kind = "example"
	KindBuildScript     Kind = "build-script"
	KindProcMacro       Kind = "proc-macro"
)

// Longest first so that no kind shadows another sharing its prefix.
var kinds = []Kind{
	KindIntegrationTest,
	KindBuildScript,
	KindProcMacro,
	KindExample,
	KindBench,
	KindLib,
	KindBin,
}

// Flavor is the compile mode prefix of a unit file name.
type Flavor string

const (
	FlavorBuild Flavor = ""
	FlavorTest  Flavor = "test"
	FlavorRun   Flavor = "run"
	FlavorDoc   Flavor = "doc"
)

var flavors = []Flavor{FlavorTest, FlavorRun, FlavorDoc}

// UnitName is the parsed form of <flavor><kind>-<target>.
type UnitName struct {
	Flavor Flavor
	Kind   Kind
	Target string
}

// String renders the name back to its file form.
func (u UnitName) String() string {
	var b strings.Builder
	if u.Flavor != FlavorBuild {
		b.WriteString(string(u.Flavor))
		b.WriteByte('-')
	}
	b.WriteString(string(u.Kind))
	b.WriteByte('-')
	b.WriteString(u.Target)
	return b.String()
}

// Unsupported reports whether the unit belongs to a category that is never
// swept: examples and documentation.
func (u UnitName) Unsupported() bool {
	return u.Kind == KindExample || u.Flavor == FlavorDoc
}

// ParseUnitName parses a unit hash file name.
func ParseUnitName(name string) (UnitName, bool) {
	var u UnitName
	rest := name
	for _, f := range flavors {
		if p := string(f) + "-"; strings.HasPrefix(rest, p) {
			u.Flavor = f
			rest = rest[len(p):]
			break
		}
	}
	for _, k := range kinds {
		p := string(k) + "-"
		if strings.HasPrefix(rest, p) && len(rest) > len(p) {
			u.Kind = k
			u.Target = rest[len(p):]
			return u, true
		}
	}
	return UnitName{}, false
}
