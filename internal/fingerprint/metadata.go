package fingerprint

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Metadata is the JSON file cargo writes next to each unit hash file.
// Only the fields listed here are accepted; anything else means the file was
// written by a cargo this tool does not understand.
type Metadata struct {
	Rustc            uint64            `json:"rustc"`
	Features         string            `json:"features"`
	DeclaredFeatures string            `json:"declared_features,omitempty"`
	Target           uint64            `json:"target"`
	Profile          uint64            `json:"profile"`
	Path             uint64            `json:"path"`
	Deps             []DepTuple        `json:"deps"`
	Local            []json.RawMessage `json:"local"`
	Rustflags        []string          `json:"rustflags"`
	Metadata         uint64            `json:"metadata"`
	Config           uint64            `json:"config"`
	CompileKind      uint64            `json:"compile_kind"`
}

var (
	requiredKeys = []string{
		"rustc", "features", "target", "profile", "path", "deps",
		"local", "rustflags", "metadata", "config", "compile_kind",
	}
	optionalKeys = []string{"declared_features"}
)

// DepTuple is one upstream unit: [pkg_id, name, public, fingerprint].
type DepTuple struct {
	PkgID       uint64
	Name        string
	Public      bool
	Fingerprint uint64
}

// UnmarshalJSON decodes the four-element array form.
func (d *DepTuple) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("dep tuple: %w", err)
	}
	if len(parts) != 4 {
		return fmt.Errorf("dep tuple: want 4 elements, got %d", len(parts))
	}

	pkgID, err := strconv.ParseUint(string(parts[0]), 10, 64)
	if err != nil {
		return fmt.Errorf("dep tuple pkg_id: %w", err)
	}
	var name string
	if err := json.Unmarshal(parts[1], &name); err != nil {
		return fmt.Errorf("dep tuple name: %w", err)
	}
	var public bool
	if err := json.Unmarshal(parts[2], &public); err != nil {
		return fmt.Errorf("dep tuple public: %w", err)
	}
	fp, err := strconv.ParseUint(string(parts[3]), 10, 64)
	if err != nil {
		return fmt.Errorf("dep tuple fingerprint: %w", err)
	}

	*d = DepTuple{PkgID: pkgID, Name: name, Public: public, Fingerprint: fp}
	return nil
}

// MarshalJSON encodes the four-element array form.
func (d DepTuple) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{d.PkgID, d.Name, d.Public, d.Fingerprint})
}

// ParseMetadata decodes a metadata file, rejecting unknown or missing keys.
func ParseMetadata(data []byte) (*Metadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid metadata JSON: %w", err)
	}

	var unknown []string
	for k := range raw {
		if !knownKey(k) {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown metadata keys: %s", strings.Join(unknown, ", "))
	}
	for _, k := range requiredKeys {
		if _, ok := raw[k]; !ok {
			return nil, fmt.Errorf("missing metadata key %q", k)
		}
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	return &m, nil
}

func knownKey(k string) bool {
	for _, r := range requiredKeys {
		if r == k {
			return true
		}
	}
	for _, o := range optionalKeys {
		if o == k {
			return true
		}
	}
	return false
}
