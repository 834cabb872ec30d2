package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/fixture"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
	"github.com/danieljhkim/cargo-gc-target/internal/workspace"
)

type gcFixture struct {
	root   string
	target *fixture.Target
	app    *fixture.Unit
	lib    *fixture.Unit
	stale  *fixture.Unit
}

// newGCFixture builds <ws>/target with a live app -> lib chain and one stale
// lib nothing reaches.
func newGCFixture(t *testing.T) *gcFixture {
	t.Helper()
	root := t.TempDir()
	tg := fixture.NewTarget(t, filepath.Join(root, "target"))
	lib := tg.AddUnit(fixture.UnitSpec{Package: "lib", Kind: fingerprint.KindLib})
	app := tg.AddUnit(fixture.UnitSpec{Package: "app", Kind: fingerprint.KindBin, Deps: []*fixture.Unit{lib}, Uplift: true})
	stale := tg.AddUnit(fixture.UnitSpec{Package: "lib", Kind: fingerprint.KindLib, Hash: "00000000000000aa"})
	return &gcFixture{root: root, target: tg, app: app, lib: lib, stale: stale}
}

func (f *gcFixture) resolver() *workspace.Static {
	return &workspace.Static{
		Root:  f.root,
		Units: []workspace.Unit{{Package: "app", Kind: workspace.TargetBin}},
	}
}

func newEngine(fs fsops.FS) *Engine {
	return New(fs, nil, nil, 4)
}

func TestGC_DeletesUnreachable(t *testing.T) {
	f := newGCFixture(t)

	result, err := newEngine(fsops.NewRealFS()).GC(context.Background(), &GCRequest{Resolver: f.resolver()})
	require.NoError(t, err)
	require.NotNil(t, result.Report)

	assert.NotEmpty(t, result.Report.RunID)
	assert.Equal(t, f.target.Dir, result.TargetDir)
	assert.Equal(t, []string{f.app.Key}, result.Trace.Roots)
	assert.True(t, result.Trace.Live.Contains(f.lib.Key))
	assert.False(t, result.Trace.Live.Contains(f.stale.Key))

	assert.False(t, fixture.Exists(t, f.stale.RecordDir))
	for _, o := range f.stale.Outputs {
		assert.False(t, fixture.Exists(t, o), o)
	}
	for _, u := range []*fixture.Unit{f.app, f.lib} {
		assert.True(t, fixture.Exists(t, u.RecordDir))
		for _, o := range u.Outputs {
			assert.True(t, fixture.Exists(t, o), o)
		}
	}
	assert.Positive(t, result.Report.Reclaimed())
}

func TestGC_DryRunMutatesNothing(t *testing.T) {
	f := newGCFixture(t)
	before := fixture.Snapshot(t, f.target.Dir)

	result, err := newEngine(fsops.NewRealFS()).GC(context.Background(), &GCRequest{
		Resolver: f.resolver(),
		DryRun:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, before, fixture.Snapshot(t, f.target.Dir))
	assert.True(t, result.Report.DryRun)
	assert.Contains(t, result.Report.DeletedPaths, f.stale.RecordDir)
}

func TestGC_Idempotent(t *testing.T) {
	f := newGCFixture(t)
	eng := newEngine(fsops.NewRealFS())

	_, err := eng.GC(context.Background(), &GCRequest{Resolver: f.resolver()})
	require.NoError(t, err)
	after := fixture.Snapshot(t, f.target.Dir)

	second, err := eng.GC(context.Background(), &GCRequest{Resolver: f.resolver()})
	require.NoError(t, err)
	assert.Zero(t, second.Report.Deleted.Count)
	assert.Equal(t, after, fixture.Snapshot(t, f.target.Dir))
}

func TestGC_ContainmentRefusal(t *testing.T) {
	f := newGCFixture(t)
	before := fixture.Snapshot(t, f.target.Dir)
	r := f.resolver()
	r.Root = t.TempDir()
	r.Target = f.target.Dir

	_, err := newEngine(fsops.NewRealFS()).GC(context.Background(), &GCRequest{Resolver: r})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContainment))
	assert.Equal(t, before, fixture.Snapshot(t, f.target.Dir))

	result, err := newEngine(fsops.NewRealFS()).GC(context.Background(), &GCRequest{Resolver: r, Force: true})
	require.NoError(t, err)
	require.Len(t, result.Report.Warnings, 1)
	assert.False(t, fixture.Exists(t, f.stale.RecordDir))
}

func TestGC_FormatError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "target", "debug", "deps"), 0o755))

	_, err := newEngine(fsops.NewRealFS()).GC(context.Background(), &GCRequest{
		Resolver: &workspace.Static{Root: root},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))
}

// failingFS fails RemoveAll under one prefix.
type failingFS struct {
	fsops.FS
	prefix string
}

func (f *failingFS) RemoveAll(path string) error {
	if fsops.IsWithin(f.prefix, path) {
		return &os.PathError{Op: "unlinkat", Path: path, Err: os.ErrPermission}
	}
	return f.FS.RemoveAll(path)
}

func TestGC_DeletionFailure(t *testing.T) {
	f := newGCFixture(t)
	fs := &failingFS{FS: fsops.NewRealFS(), prefix: f.stale.RecordDir}

	result, err := newEngine(fs).GC(context.Background(), &GCRequest{Resolver: f.resolver()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeletionFailed))
	require.NotNil(t, result)
	require.Len(t, result.Report.Failures, 1)
	assert.Equal(t, f.stale.RecordDir, result.Report.Failures[0].Path)

	// The rest of the plan still ran.
	for _, o := range f.stale.Outputs {
		assert.False(t, fixture.Exists(t, o), o)
	}
}

func TestGC_ProfileSelection(t *testing.T) {
	f := newGCFixture(t)
	rel := f.target.AddUnit(fixture.UnitSpec{Area: "release", Package: "old", Kind: fingerprint.KindLib})

	_, err := newEngine(fsops.NewRealFS()).GC(context.Background(), &GCRequest{
		Resolver: f.resolver(),
		Profiles: []string{"release"},
	})
	require.NoError(t, err)

	assert.False(t, fixture.Exists(t, rel.RecordDir))
	// debug was not selected
	assert.True(t, fixture.Exists(t, f.stale.RecordDir))
}

func TestGC_MetricsFile(t *testing.T) {
	f := newGCFixture(t)
	path := filepath.Join(t.TempDir(), "gc.prom")

	_, err := newEngine(fsops.NewRealFS()).GC(context.Background(), &GCRequest{
		Resolver:    f.resolver(),
		MetricsFile: path,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cargo_gc_target_entries")
}

func TestGC_NoResolver(t *testing.T) {
	_, err := newEngine(fsops.NewRealFS()).GC(context.Background(), &GCRequest{})
	assert.Error(t, err)
}
