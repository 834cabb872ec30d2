package planner

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/inventory"
	"github.com/danieljhkim/cargo-gc-target/internal/tracer"
)

func TestNewSweepPlan(t *testing.T) {
	plan := NewSweepPlan("/t")

	if plan.TargetDir != "/t" {
		t.Errorf("TargetDir = %q", plan.TargetDir)
	}
	if plan.Keep == nil || plan.Delete == nil || plan.Skipped == nil || plan.Warnings == nil {
		t.Error("expected decision lists to be initialized")
	}
	if plan.Len() != 0 {
		t.Errorf("expected empty plan, got %d", plan.Len())
	}
}

func TestSweepPlan_Add(t *testing.T) {
	plan := NewSweepPlan("/t")
	plan.Add(Decision{Entry: inventory.Entry{Path: "/t/a"}, Action: ActionKeep})
	plan.Add(Decision{Entry: inventory.Entry{Path: "/t/b"}, Action: ActionDelete})
	plan.Add(Decision{Entry: inventory.Entry{Path: "/t/c"}, Action: ActionSkip})
	plan.Add(Decision{Entry: inventory.Entry{Path: "/t/d"}})

	assert.Len(t, plan.Keep, 2)
	assert.Equal(t, ActionKeep, plan.Keep[1].Action)
	assert.Len(t, plan.Delete, 1)
	assert.Len(t, plan.Skipped, 1)
	assert.Equal(t, 4, plan.Len())
}

func TestSweepPlan_HasWarnings(t *testing.T) {
	plan := NewSweepPlan("/t")
	assert.False(t, plan.HasWarnings())

	plan.AddWarning(Warning{Code: WarningOutsideWorkspace, Message: "forced"})
	assert.True(t, plan.HasWarnings())
}

const (
	target = "/t"
	hApp   = "00000000000000a1"
	hLib   = "00000000000000b2"
	hOld   = "00000000000000c3"
	hEx    = "00000000000000d4"
	hOldB  = "00000000000000e5"
)

func record(area, pkg, h, unit string, deps ...string) *fingerprint.Record {
	un, ok := fingerprint.ParseUnitName(unit)
	if !ok {
		panic(unit)
	}
	name := pkg + "-" + h
	return &fingerprint.Record{
		Key:         fingerprint.Key(area, name),
		Area:        area,
		Name:        name,
		Package:     pkg,
		Hash:        h,
		Units:       []fingerprint.Unit{{Name: un}},
		Deps:        deps,
		Unsupported: un.Unsupported(),
	}
}

func entry(cat inventory.Category, rel string) inventory.Entry {
	p := filepath.Join(target, filepath.FromSlash(rel))
	return inventory.Entry{Path: p, Area: "debug", Name: filepath.Base(p), Category: cat, Size: 10}
}

func fixtureStore() *fingerprint.Store {
	lib := record("debug", "lib", hLib, "lib-lib")
	lib.Outputs = []string{filepath.Join(target, "debug", "deps", "liblib.so")}
	return fingerprint.NewStore(target, []fingerprint.Area{{Name: "debug", Dir: "/t/debug", Profile: "debug"}}, []*fingerprint.Record{
		record("debug", "app", hApp, "bin-app", "debug/lib-"+hLib),
		lib,
		record("debug", "old", hOld, "lib-old"),
		record("debug", "demo", hEx, "example-demo"),
		record("debug", "app", hOldB, "bin-app"),
	})
}

func TestBuildSweepPlan(t *testing.T) {
	store := fixtureStore()
	live := tracer.NewLiveSet(map[string]tracer.Reason{
		"debug/app-" + hApp: tracer.ReasonRoot,
		"debug/lib-" + hLib: tracer.ReasonReachable,
	})

	tests := []struct {
		entry      inventory.Entry
		wantAction Action
		wantReason string
	}{
		{entry(inventory.CategoryFingerprint, "debug/.fingerprint/app-"+hApp), ActionKeep, ReasonLive},
		{entry(inventory.CategoryFingerprint, "debug/.fingerprint/old-"+hOld), ActionDelete, ReasonDead},
		{entry(inventory.CategoryFingerprint, "debug/.fingerprint/demo-"+hEx), ActionSkip, ReasonUnsupported},
		{entry(inventory.CategoryFingerprint, "debug/.fingerprint/new-00000000000000ff"), ActionKeep, ReasonUnrecorded},
		{entry(inventory.CategoryFingerprint, "debug/.fingerprint/README"), ActionKeep, ReasonUnrecognized},
		{entry(inventory.CategoryDeps, "debug/deps/liblib-"+hLib+".rlib"), ActionKeep, ReasonLive},
		{entry(inventory.CategoryDeps, "debug/deps/lib-"+hLib+".d"), ActionKeep, ReasonLive},
		{entry(inventory.CategoryDeps, "debug/deps/libold-"+hOld+".rlib"), ActionDelete, ReasonDead},
		{entry(inventory.CategoryDeps, "debug/deps/demo-"+hEx), ActionSkip, ReasonUnsupported},
		{entry(inventory.CategoryDeps, "debug/deps/libgone-00000000000000ee.rlib"), ActionDelete, ReasonOrphaned},
		{entry(inventory.CategoryDeps, "debug/deps/libnew-00000000000000ff.rlib"), ActionKeep, ReasonUnrecorded},
		{entry(inventory.CategoryDeps, "debug/deps/liblib.so"), ActionKeep, ReasonUnrecognized},
		{entry(inventory.CategoryDeps, "debug/deps/libmystery.so"), ActionKeep, ReasonUnrecognized},
		{entry(inventory.CategoryBuild, "debug/build/old-"+hOld), ActionDelete, ReasonDead},
		{entry(inventory.CategoryRoot, "debug/app"), ActionKeep, ReasonLive},
		{entry(inventory.CategoryRoot, "debug/app.d"), ActionKeep, ReasonLive},
		{entry(inventory.CategoryRoot, "debug/libold.rlib"), ActionDelete, ReasonDead},
		{entry(inventory.CategoryRoot, "debug/liblib.rlib"), ActionKeep, ReasonLive},
		{entry(inventory.CategoryRoot, "debug/notes.txt"), ActionKeep, ReasonUnrecognized},
		{entry(inventory.CategoryUnsupported, "debug/incremental"), ActionSkip, ReasonUnsupported},
	}

	inv := &inventory.Inventory{}
	for _, tt := range tests {
		inv.Entries = append(inv.Entries, tt.entry)
	}
	plan := BuildSweepPlan(store, live, inv)

	got := make(map[string]Decision)
	for _, list := range [][]Decision{plan.Keep, plan.Delete, plan.Skipped} {
		for _, d := range list {
			got[d.Entry.Path] = d
		}
	}

	for _, tt := range tests {
		t.Run(tt.entry.Name, func(t *testing.T) {
			d, ok := got[tt.entry.Path]
			require.True(t, ok)
			assert.Equal(t, tt.wantAction, d.Action)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}

	// Partition: every entry exactly once.
	assert.Equal(t, len(inv.Entries), plan.Len())
	assert.Len(t, got, len(inv.Entries))
}

func TestBuildSweepPlan_SoundnessForLiveOwners(t *testing.T) {
	store := fixtureStore()
	live := tracer.NewLiveSet(map[string]tracer.Reason{
		"debug/app-" + hApp: tracer.ReasonRoot,
		"debug/lib-" + hLib: tracer.ReasonReachable,
	})
	inv := &inventory.Inventory{Entries: []inventory.Entry{
		entry(inventory.CategoryFingerprint, "debug/.fingerprint/lib-"+hLib),
		entry(inventory.CategoryDeps, "debug/deps/liblib-"+hLib+".rlib"),
		entry(inventory.CategoryDeps, "debug/deps/liblib-"+hLib+".rmeta"),
		entry(inventory.CategoryDeps, "debug/deps/app-"+hApp),
		entry(inventory.CategoryRoot, "debug/app"),
	}}

	plan := BuildSweepPlan(store, live, inv)
	assert.Empty(t, plan.Delete)
	assert.Len(t, plan.Keep, 5)
}

func TestBuildSweepPlan_DeclaredOutputKeepsForeignHash(t *testing.T) {
	lib := record("debug", "lib", hLib, "lib-lib")
	lib.Outputs = []string{filepath.Join(target, "debug", "deps", "libshared-00000000000000ab.so")}
	store := fingerprint.NewStore(target, nil, []*fingerprint.Record{lib})
	live := tracer.NewLiveSet(map[string]tracer.Reason{lib.Key: tracer.ReasonRoot})

	inv := &inventory.Inventory{Entries: []inventory.Entry{
		entry(inventory.CategoryDeps, "debug/deps/libshared-00000000000000ab.so"),
	}}
	plan := BuildSweepPlan(store, live, inv)
	require.Len(t, plan.Keep, 1)
	assert.Equal(t, []string{lib.Key}, plan.Keep[0].Owners)
}

func TestBuildSweepPlan_RecordWrittenAfterRead(t *testing.T) {
	store := fingerprint.NewStore(target, nil, nil)
	inv := &inventory.Inventory{Entries: []inventory.Entry{
		entry(inventory.CategoryFingerprint, "debug/.fingerprint/foo-0123456789abcdef"),
		entry(inventory.CategoryDeps, "debug/deps/libfoo-0123456789abcdef.rlib"),
		entry(inventory.CategoryBuild, "debug/build/foo-0123456789abcdef"),
		entry(inventory.CategoryDeps, "debug/deps/libbar-0123456789abcdee.rlib"),
	}}

	plan := BuildSweepPlan(store, tracer.NewLiveSet(nil), inv)

	require.Len(t, plan.Keep, 3)
	for _, d := range plan.Keep {
		assert.Equal(t, ReasonUnrecorded, d.Reason, d.Entry.Name)
	}
	require.Len(t, plan.Delete, 1)
	assert.Equal(t, "libbar-0123456789abcdee.rlib", plan.Delete[0].Entry.Name)
}

func TestEntries(t *testing.T) {
	ds := []Decision{{Entry: inventory.Entry{Path: "/a"}}, {Entry: inventory.Entry{Path: "/b"}}}
	got := Entries(ds)
	require.Len(t, got, 2)
	assert.Equal(t, "/b", got[1].Path)
}
