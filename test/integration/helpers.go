package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/danieljhkim/cargo-gc-target/internal/clock"
	"github.com/danieljhkim/cargo-gc-target/internal/engine"
	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/fixture"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
	"github.com/danieljhkim/cargo-gc-target/internal/planner"
	"github.com/danieljhkim/cargo-gc-target/internal/workspace"
)

// testWorkspace is a cargo workspace on disk with one member binary "app"
// depending on the registry library "serde".
type testWorkspace struct {
	root   string
	target *fixture.Target
	app    *fixture.Unit
	lib    *fixture.Unit
}

func newTestWorkspace(t *testing.T) *testWorkspace {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Cargo.toml"), "[workspace]\nmembers = [\"app\"]\nresolver = \"2\"\n")
	writeFile(t, filepath.Join(root, "app", "Cargo.toml"), "[package]\nname = \"app\"\nversion = \"0.1.0\"\nedition = \"2021\"\n")
	writeFile(t, filepath.Join(root, "app", "src", "main.rs"), "fn main() {}\n")

	tg := fixture.NewTarget(t, filepath.Join(root, "target"))
	lib := tg.AddUnit(fixture.UnitSpec{Package: "serde", Kind: fingerprint.KindLib})
	app := tg.AddUnit(fixture.UnitSpec{
		Package: "app",
		Kind:    fingerprint.KindBin,
		Deps:    []*fixture.Unit{lib},
		Uplift:  true,
	})
	return &testWorkspace{root: root, target: tg, app: app, lib: lib}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// resolver discovers the workspace the way the CLI does, from the root
// manifest.
func (w *testWorkspace) resolver(t *testing.T, targetDir string) workspace.Resolver {
	t.Helper()
	r, err := workspace.Discover(fsops.NewRealFS(), nil, workspace.Options{
		WorkDir:   w.root,
		TargetDir: targetDir,
		Getenv:    func(string) string { return "" },
	})
	if err != nil {
		t.Fatalf("failed to discover workspace: %v", err)
	}
	return r
}

func (w *testWorkspace) gc(t *testing.T, req engine.GCRequest) (*engine.GCResult, error) {
	t.Helper()
	if req.Resolver == nil {
		req.Resolver = w.resolver(t, "")
	}
	eng := engine.New(fsops.NewRealFS(), nil, clock.RealClock{}, 4)
	return eng.GC(context.Background(), &req)
}

// unitPaths lists a unit's record directory and outputs.
func unitPaths(u *fixture.Unit) []string {
	return append([]string{u.RecordDir}, u.Outputs...)
}

func deletePaths(plan *planner.SweepPlan) []string {
	var out []string
	for _, d := range plan.Delete {
		out = append(out, d.Entry.Path)
	}
	return out
}
