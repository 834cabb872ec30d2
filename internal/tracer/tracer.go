// Package tracer marks the fingerprint records still reachable from the
// workspace.
//
// The store is an arena keyed by record identity; tracing is an iterative
// depth-first walk with an explicit stack so that deep graphs and cycles are
// handled without recursion. Anything the tracer cannot vouch for stays live:
// unparseable records are roots, and an opaque record keeps its whole area.
package tracer

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/danieljhkim/cargo-gc-target/internal/config"
	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/workspace"
)

// Reason says why a record is live.
type Reason string

const (
	ReasonRoot        Reason = "root"
	ReasonReachable   Reason = "reachable"
	ReasonUnparseable Reason = "unparseable"
	ReasonOpaqueArea  Reason = "opaque-area"
)

// Anomaly is a graph irregularity found while tracing.
type Anomaly struct {
	Kind string   `json:"kind" yaml:"kind"`
	Keys []string `json:"keys" yaml:"keys"`
}

func (a Anomaly) String() string {
	return a.Kind + ": " + strings.Join(a.Keys, " -> ")
}

// Result is the outcome of one trace.
type Result struct {
	Live *LiveSet
	// Roots are the record keys matched by workspace units, sorted.
	Roots []string
	// UnmatchedRoots are workspace units with no record on disk.
	UnmatchedRoots []workspace.Unit
	Anomalies      []Anomaly
	// OpaqueAreas are areas kept whole because of an opaque record.
	OpaqueAreas []string
}

// Tracer computes live sets.
type Tracer struct {
	logger *zap.Logger
}

// New creates a Tracer.
func New(logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{logger: logger}
}

// Trace marks every record reachable from roots, plus every record that
// cannot be safely judged dead.
func (t *Tracer) Trace(store *fingerprint.Store, roots []workspace.Unit) *Result {
	res := &Result{Live: newLiveSet()}

	rootKeys := make(map[string]bool)
	for _, u := range roots {
		matched := MatchRoot(store, u)
		if len(matched) == 0 {
			res.UnmatchedRoots = append(res.UnmatchedRoots, u)
			t.logger.Debug("workspace unit has no fingerprint record", zap.Stringer("unit", u))
			continue
		}
		for _, k := range matched {
			rootKeys[k] = true
		}
	}
	res.Roots = sortedKeys(rootKeys)

	opaque := make(map[string]bool)
	var unparseable []string
	for _, key := range store.Keys() {
		rec, _ := store.Record(key)
		if rec.Unparseable {
			unparseable = append(unparseable, key)
		}
		if rec.Opaque {
			opaque[rec.Area] = true
		}
	}
	res.OpaqueAreas = sortedKeys(opaque)

	var seeds []string
	for _, k := range res.Roots {
		res.Live.mark(k, ReasonRoot)
		seeds = append(seeds, k)
	}
	for _, k := range unparseable {
		res.Live.mark(k, ReasonUnparseable)
		seeds = append(seeds, k)
	}
	for _, area := range res.OpaqueAreas {
		t.logger.Warn("opaque fingerprint record, keeping whole area", zap.String("area", area))
		for _, k := range store.AreaKeys(area) {
			res.Live.mark(k, ReasonOpaqueArea)
			seeds = append(seeds, k)
		}
	}

	res.Anomalies = t.walk(store, seeds, res.Live)
	for _, a := range res.Anomalies {
		t.logger.Warn("dependency cycle in fingerprint records", zap.Strings("keys", a.Keys))
	}

	t.logger.Debug("trace complete",
		zap.Int("roots", len(res.Roots)),
		zap.Int("live", res.Live.Len()),
		zap.Int("records", store.Len()),
		zap.Int("unmatched_roots", len(res.UnmatchedRoots)))
	return res
}

const (
	white = iota
	gray
	black
)

type frame struct {
	key  string
	next int
}

// walk runs an iterative DFS from every seed in order, marking discovered
// records reachable and reporting back edges as cycles. Edges to keys not in
// the store are ignored.
func (t *Tracer) walk(store *fingerprint.Store, seeds []string, live *LiveSet) []Anomaly {
	color := make(map[string]int, store.Len())
	var anomalies []Anomaly

	for _, seed := range seeds {
		if color[seed] != white {
			continue
		}
		if _, ok := store.Record(seed); !ok {
			continue
		}
		color[seed] = gray
		stack := []frame{{key: seed}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			rec, _ := store.Record(top.key)
			if top.next >= len(rec.Deps) {
				color[top.key] = black
				stack = stack[:len(stack)-1]
				continue
			}
			dep := rec.Deps[top.next]
			top.next++

			if _, ok := store.Record(dep); !ok {
				continue
			}
			switch color[dep] {
			case white:
				color[dep] = gray
				live.mark(dep, ReasonReachable)
				stack = append(stack, frame{key: dep})
			case gray:
				anomalies = append(anomalies, Anomaly{Kind: "cycle", Keys: cyclePath(stack, dep)})
			}
		}
	}
	return anomalies
}

func cyclePath(stack []frame, dep string) []string {
	start := 0
	for i, f := range stack {
		if f.key == dep {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		path = append(path, f.key)
	}
	return append(path, dep)
}

// MatchRoot returns the keys of every record that may belong to u, sorted.
// Every matching variant is returned; picking one would risk sweeping a
// configuration that is still in use.
func MatchRoot(store *fingerprint.Store, u workspace.Unit) []string {
	profileDir := ""
	if u.Profile != "" {
		profileDir = config.ProfileDir(u.Profile)
	}

	var keys []string
	for _, area := range store.Areas {
		if profileDir != "" && area.Profile != profileDir {
			continue
		}
		for _, key := range store.AreaKeys(area.Name) {
			rec, _ := store.Record(key)
			if matchesRecord(rec, u) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func matchesRecord(rec *fingerprint.Record, u workspace.Unit) bool {
	if normalize(rec.Package) != normalize(u.Package) {
		return false
	}
	if u.ConfigHash != "" && rec.Hash != u.ConfigHash {
		return false
	}
	for _, unit := range rec.Units {
		if !kindMatches(unit.Name, u.Kind) {
			continue
		}
		if u.Target != "" && u.Kind != workspace.TargetCustomBuild && normalize(unit.Name.Target) != normalize(u.Target) {
			continue
		}
		return true
	}
	return false
}

func kindMatches(name fingerprint.UnitName, kind workspace.TargetKind) bool {
	switch kind {
	case workspace.TargetLib, workspace.TargetProcMacro:
		return name.Flavor == fingerprint.FlavorBuild &&
			(name.Kind == fingerprint.KindLib || name.Kind == fingerprint.KindProcMacro)
	case workspace.TargetBin:
		return name.Flavor == fingerprint.FlavorBuild && name.Kind == fingerprint.KindBin
	case workspace.TargetTest:
		return name.Flavor == fingerprint.FlavorTest || name.Kind == fingerprint.KindIntegrationTest
	case workspace.TargetBench:
		return name.Kind == fingerprint.KindBench
	case workspace.TargetCustomBuild:
		return name.Kind == fingerprint.KindBuildScript
	default:
		return false
	}
}

func normalize(s string) string {
	return strings.ReplaceAll(s, "-", "_")
}
