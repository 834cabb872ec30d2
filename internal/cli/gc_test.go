package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/fixture"
	"github.com/danieljhkim/cargo-gc-target/internal/sweep"
)

// resetFlags clears flag state left behind by earlier Execute calls.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		jsonOutput, yamlOutput, quiet = false, false, false
		verbosity = 0
		logFormat = "console"
		gcProfiles = nil
		gcForce, gcDryRun = false, false
		gcManifestPath, gcTargetDir, gcUnitGraph, gcMetricsFile = "", "", "", ""
	})
}

// newWorkspace writes a one-binary package with a target directory holding
// its live unit and a stale one.
func newWorkspace(t *testing.T) (root string, app, stale *fixture.Unit) {
	t.Helper()
	root = t.TempDir()
	manifest := "[package]\nname = \"app\"\nversion = \"0.1.0\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte(manifest), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.rs"), []byte("fn main() {}\n"), 0o644))

	tg := fixture.NewTarget(t, filepath.Join(root, "target"))
	app = tg.AddUnit(fixture.UnitSpec{Package: "app", Kind: fingerprint.KindBin, Uplift: true})
	stale = tg.AddUnit(fixture.UnitSpec{Package: "old-tool", Kind: fingerprint.KindLib})
	return root, app, stale
}

func runGC(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)
	t.Setenv("CARGO_TARGET_DIR", "")
	t.Setenv("CARGO_GC_TARGET_LOG", "")
	t.Setenv("CARGO_GC_TARGET_JOBS", "2")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"gc-target"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestGCCommand_DryRunJSON(t *testing.T) {
	root, app, stale := newWorkspace(t)
	before := fixture.Snapshot(t, filepath.Join(root, "target"))

	out, err := runGC(t, "--manifest-path", filepath.Join(root, "Cargo.toml"), "--dry-run", "--json", "-q")
	require.NoError(t, err)

	var report sweep.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.DryRun)
	assert.Equal(t, filepath.Join(root, "target"), report.TargetDir)
	assert.Contains(t, report.DeletedPaths, stale.RecordDir)
	assert.NotContains(t, report.DeletedPaths, app.RecordDir)
	assert.Equal(t, before, fixture.Snapshot(t, filepath.Join(root, "target")))
}

func TestGCCommand_Deletes(t *testing.T) {
	root, app, stale := newWorkspace(t)

	out, err := runGC(t, "--manifest-path", filepath.Join(root, "Cargo.toml"))
	require.NoError(t, err)

	assert.Contains(t, out, "Finished")
	assert.False(t, fixture.Exists(t, stale.RecordDir))
	assert.True(t, fixture.Exists(t, app.RecordDir))
}

func TestGCCommand_ContainmentExitCode(t *testing.T) {
	root, _, stale := newWorkspace(t)
	outside := fixture.NewTarget(t, filepath.Join(t.TempDir(), "elsewhere"))
	outside.AddUnit(fixture.UnitSpec{Package: "app", Kind: fingerprint.KindBin})

	_, err := runGC(t, "--manifest-path", filepath.Join(root, "Cargo.toml"), "--target-dir", outside.Dir, "-q")
	require.Error(t, err)
	assert.Equal(t, ExitContainment, ExitCode(err))
	assert.True(t, fixture.Exists(t, stale.RecordDir))
}

func TestGCCommand_JSONAndYAMLConflict(t *testing.T) {
	root, _, _ := newWorkspace(t)

	_, err := runGC(t, "--manifest-path", filepath.Join(root, "Cargo.toml"), "--json", "--yaml")
	assert.Error(t, err)
}

func TestGCCommand_NoManifest(t *testing.T) {
	_, err := runGC(t, "--manifest-path", filepath.Join(t.TempDir(), "Cargo.toml"), "-q")
	require.Error(t, err)
	assert.Equal(t, ExitError, ExitCode(err))
}
