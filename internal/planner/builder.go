package planner

import (
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
	"github.com/danieljhkim/cargo-gc-target/internal/hash"
	"github.com/danieljhkim/cargo-gc-target/internal/inventory"
	"github.com/danieljhkim/cargo-gc-target/internal/tracer"
)

// Request is everything one plan is built from.
type Request struct {
	Store         *fingerprint.Store
	Live          *tracer.LiveSet
	Inventory     *inventory.Inventory
	TargetDir     string
	WorkspaceRoot string
	Force         bool
}

// Planner builds sweep plans.
type Planner struct {
	fs     fsops.FS
	logger *zap.Logger
}

// New creates a Planner.
func New(fs fsops.FS, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{fs: fs, logger: logger}
}

// Build runs the containment guard and then decides every inventory entry.
// A containment failure returns no plan at all.
func (p *Planner) Build(req Request) (*SweepPlan, error) {
	warning, err := NewContainmentChecker(p.fs, req.Force).Check(req.TargetDir, req.WorkspaceRoot)
	if err != nil {
		return nil, err
	}

	plan := BuildSweepPlan(req.Store, req.Live, req.Inventory)
	plan.TargetDir = req.TargetDir
	if warning != nil {
		p.logger.Warn("sweeping outside the workspace", zap.String("target_dir", req.TargetDir))
		plan.AddWarning(*warning)
	}

	p.logger.Debug("plan built",
		zap.Int("keep", len(plan.Keep)),
		zap.Int("delete", len(plan.Delete)),
		zap.Int("skipped", len(plan.Skipped)))
	return plan, nil
}

// BuildSweepPlan decides every inventory entry against the live set. It is
// pure: the same inputs always give the same plan.
func BuildSweepPlan(store *fingerprint.Store, live *tracer.LiveSet, inv *inventory.Inventory) *SweepPlan {
	plan := NewSweepPlan(store.TargetDir)
	a := newAttributor(store)
	a.noteUnrecorded(inv.Entries)

	for _, e := range inv.Entries {
		plan.Add(a.decide(e, live))
	}
	return plan
}

type attributor struct {
	store *fingerprint.Store
	// outputs maps declared output paths to the records declaring them.
	outputs map[string][]string
	// uplifts maps area -> uplift stem -> records.
	uplifts map[string]map[string][]string
	// unrecorded holds area -> hash of record directories present on disk
	// but missing from the store.
	unrecorded map[string]map[string]bool
}

func newAttributor(store *fingerprint.Store) *attributor {
	a := &attributor{
		store:   store,
		outputs: make(map[string][]string),
		uplifts: make(map[string]map[string][]string),
	}
	for _, key := range store.Keys() {
		rec, _ := store.Record(key)
		for _, o := range rec.Outputs {
			a.outputs[o] = append(a.outputs[o], key)
		}
		for _, stem := range upliftStems(rec) {
			if a.uplifts[rec.Area] == nil {
				a.uplifts[rec.Area] = make(map[string][]string)
			}
			a.uplifts[rec.Area][stem] = append(a.uplifts[rec.Area][stem], key)
		}
	}
	return a
}

// noteUnrecorded remembers the hashes of record directories written after
// the store was read, so their artifacts are kept with them.
func (a *attributor) noteUnrecorded(entries []inventory.Entry) {
	a.unrecorded = make(map[string]map[string]bool)
	for _, e := range entries {
		if e.Category != inventory.CategoryFingerprint {
			continue
		}
		n, ok := hash.SplitName(e.Name)
		if !ok || n.Ext != "" {
			continue
		}
		if _, ok := a.store.Record(fingerprint.Key(e.Area, e.Name)); ok {
			continue
		}
		if a.unrecorded[e.Area] == nil {
			a.unrecorded[e.Area] = make(map[string]bool)
		}
		a.unrecorded[e.Area][n.Hash] = true
	}
}

// upliftStems lists the file stems cargo uses when copying a record's final
// artifacts to the area root.
func upliftStems(rec *fingerprint.Record) []string {
	var stems []string
	for _, u := range rec.Units {
		if u.Name.Flavor != fingerprint.FlavorBuild {
			continue
		}
		crate := strings.ReplaceAll(u.Name.Target, "-", "_")
		switch u.Name.Kind {
		case fingerprint.KindBin:
			stems = append(stems, u.Name.Target)
		case fingerprint.KindLib, fingerprint.KindProcMacro:
			stems = append(stems, "lib"+crate, crate)
		}
	}
	return stems
}

func (a *attributor) decide(e inventory.Entry, live *tracer.LiveSet) Decision {
	d := Decision{Entry: e}

	switch e.Category {
	case inventory.CategoryUnsupported:
		d.Action, d.Reason = ActionSkip, ReasonUnsupported
		return d

	case inventory.CategoryFingerprint:
		n, ok := hash.SplitName(e.Name)
		if !ok || n.Ext != "" {
			d.Action, d.Reason = ActionKeep, ReasonUnrecognized
			return d
		}
		key := fingerprint.Key(e.Area, e.Name)
		d.Owners = []string{key}
		rec, ok := a.store.Record(key)
		switch {
		case !ok:
			// Written after the store was read.
			d.Action, d.Reason = ActionKeep, ReasonUnrecorded
		case rec.Unsupported:
			d.Action, d.Reason = ActionSkip, ReasonUnsupported
		case live.Contains(key):
			d.Action, d.Reason = ActionKeep, ReasonLive
		default:
			d.Action, d.Reason = ActionDelete, ReasonDead
		}
		return d

	case inventory.CategoryDeps, inventory.CategoryBuild:
		n, ok := hash.SplitName(e.Name)
		if !ok {
			d.Action, d.Reason = ActionKeep, ReasonUnrecognized
			return d
		}
		d.Owners = a.owners(a.store.KeysByHash(e.Area, n.Hash), a.outputs[e.Path])
		if a.unrecorded[e.Area][n.Hash] {
			d.Action, d.Reason = ActionKeep, ReasonUnrecorded
			return d
		}
		if len(d.Owners) == 0 {
			d.Action, d.Reason = ActionDelete, ReasonOrphaned
			return d
		}
		d.Action, d.Reason = a.judge(d.Owners, live)
		return d

	case inventory.CategoryRoot:
		stem := strings.TrimSuffix(e.Name, filepath.Ext(e.Name))
		d.Owners = a.owners(a.uplifts[e.Area][stem], a.outputs[e.Path])
		if len(d.Owners) == 0 {
			d.Action, d.Reason = ActionKeep, ReasonUnrecognized
			return d
		}
		d.Action, d.Reason = a.judge(d.Owners, live)
		return d
	}

	d.Action, d.Reason = ActionKeep, ReasonUnrecognized
	return d
}

// judge decides an attributed entry: any live owner keeps it, any
// unsupported owner skips it, otherwise it is dead.
func (a *attributor) judge(owners []string, live *tracer.LiveSet) (Action, string) {
	unsupported := false
	for _, k := range owners {
		if live.Contains(k) {
			return ActionKeep, ReasonLive
		}
		if rec, ok := a.store.Record(k); ok && rec.Unsupported {
			unsupported = true
		}
	}
	if unsupported {
		return ActionSkip, ReasonUnsupported
	}
	return ActionDelete, ReasonDead
}

func (a *attributor) owners(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lists {
		for _, k := range l {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sort.Strings(out)
	return out
}
