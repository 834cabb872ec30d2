package fingerprint

import (
	"sort"
)

// Unit is one unit flavor recorded in a record directory.
type Unit struct {
	Name UnitName
	// Hash is the content of the unit hash file.
	Hash string
	// Metadata is nil when the JSON file was missing or unreadable.
	Metadata *Metadata
}

// Record is one .fingerprint entry.
type Record struct {
	// Key is <area>/<pkg>-<hash16>, unique across the target directory.
	Key     string
	Area    string
	Name    string
	Package string
	Hash    string
	Dir     string

	Units []Unit

	// Deps are resolved upstream keys, sorted. NewStore fills them from
	// UnitRefs and ArtifactRefs.
	Deps []string
	// Outputs are absolute paths the compiler declared as outputs.
	Outputs []string

	// UnitRefs are unit hashes taken from the metadata dep tuples.
	UnitRefs []string
	// ArtifactRefs are hashed deps/build entries the unit read from.
	ArtifactRefs []ArtifactRef

	Unparseable bool
	// Reason explains why the record is unparseable.
	Reason string
	// Opaque is set when the record is unparseable and no edge information
	// could be recovered from it.
	Opaque bool
	// Unsupported records belong to never-swept categories.
	Unsupported bool
}

// Unparseable describes a record that could not be fully read.
type Unparseable struct {
	Key    string `json:"key" yaml:"key"`
	Path   string `json:"path" yaml:"path"`
	Reason string `json:"reason" yaml:"reason"`
	Opaque bool   `json:"opaque,omitempty" yaml:"opaque,omitempty"`
}

// Key builds a record identity key.
func Key(area, name string) string {
	return area + "/" + name
}

// Store is the immutable arena of records read from one target directory.
type Store struct {
	TargetDir string
	Areas     []Area

	records    map[string]*Record
	keys       []string
	byArea     map[string][]string
	byAreaHash map[string]map[string][]string
	byHash     map[string][]string
	byUnitHash map[string][]string

	unparseable []Unparseable
	vanished    int
}

// NewStore indexes records and resolves their references into Deps.
// References to unknown records are dropped; a record never depends on
// itself.
func NewStore(targetDir string, areas []Area, records []*Record) *Store {
	s := &Store{
		TargetDir:  targetDir,
		Areas:      areas,
		records:    make(map[string]*Record, len(records)),
		byArea:     make(map[string][]string),
		byAreaHash: make(map[string]map[string][]string),
		byHash:     make(map[string][]string),
		byUnitHash: make(map[string][]string),
	}

	for _, rec := range records {
		s.records[rec.Key] = rec
		s.keys = append(s.keys, rec.Key)
	}
	sort.Strings(s.keys)

	for _, key := range s.keys {
		rec := s.records[key]
		s.byArea[rec.Area] = append(s.byArea[rec.Area], key)
		if s.byAreaHash[rec.Area] == nil {
			s.byAreaHash[rec.Area] = make(map[string][]string)
		}
		s.byAreaHash[rec.Area][rec.Hash] = append(s.byAreaHash[rec.Area][rec.Hash], key)
		s.byHash[rec.Hash] = append(s.byHash[rec.Hash], key)
		for _, u := range rec.Units {
			if u.Hash != "" {
				s.byUnitHash[u.Hash] = appendUnique(s.byUnitHash[u.Hash], key)
			}
		}
		if rec.Unparseable {
			s.unparseable = append(s.unparseable, Unparseable{Key: key, Path: rec.Dir, Reason: rec.Reason, Opaque: rec.Opaque})
		}
	}

	for _, key := range s.keys {
		s.resolve(s.records[key])
	}
	return s
}

func (s *Store) resolve(rec *Record) {
	deps := make(map[string]bool, len(rec.Deps))
	for _, d := range rec.Deps {
		deps[d] = true
	}
	for _, h := range rec.UnitRefs {
		for _, k := range s.byUnitHash[h] {
			deps[k] = true
		}
	}
	for _, ref := range rec.ArtifactRefs {
		if ref.Hash == rec.Hash {
			continue
		}
		for _, k := range s.artifactOwners(rec.Area, ref) {
			deps[k] = true
		}
	}
	delete(deps, rec.Key)

	rec.Deps = rec.Deps[:0]
	for k := range deps {
		if _, ok := s.records[k]; ok {
			rec.Deps = append(rec.Deps, k)
		}
	}
	sort.Strings(rec.Deps)
}

func (s *Store) artifactOwners(ownArea string, ref ArtifactRef) []string {
	if ref.Area != "" {
		if m, ok := s.byAreaHash[ref.Area]; ok {
			return m[ref.Hash]
		}
	}
	if keys := s.byAreaHash[ownArea][ref.Hash]; len(keys) > 0 {
		return keys
	}
	return s.byHash[ref.Hash]
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// Record returns the record with the given key.
func (s *Store) Record(key string) (*Record, bool) {
	r, ok := s.records[key]
	return r, ok
}

// Keys returns every record key, sorted.
func (s *Store) Keys() []string {
	return s.keys
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.keys)
}

// AreaKeys returns the sorted keys of one area.
func (s *Store) AreaKeys(area string) []string {
	return s.byArea[area]
}

// KeysByHash returns the records of an area whose directory hash is h.
// Artifacts in deps and build share that hash with their record.
func (s *Store) KeysByHash(area, h string) []string {
	return s.byAreaHash[area][h]
}

// Unparseable lists unparseable records in key order, with reasons.
func (s *Store) Unparseable() []Unparseable {
	return s.unparseable
}

// Vanished is the number of record directories that disappeared while
// being read.
func (s *Store) Vanished() int {
	return s.vanished
}
