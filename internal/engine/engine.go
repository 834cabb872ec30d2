// Package engine provides the core orchestration of a cargo-gc-target run.
//
// The engine sits between the CLI and the collector's components. One run
// resolves the workspace, reads the fingerprint store, traces the live set
// from the workspace's units, inventories the target directory, builds a
// sweep plan and executes it.
//
// Key components:
//   - Engine: Main orchestrator called by the CLI
//   - GC: The read, trace, plan and sweep pipeline
//   - Sentinel errors the CLI maps to exit codes
package engine

import (
	"go.uber.org/zap"

	"github.com/danieljhkim/cargo-gc-target/internal/clock"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
)

// Engine orchestrates collection runs.
// It is the main API surface called by the CLI.
type Engine struct {
	fs     fsops.FS
	logger *zap.Logger
	clock  clock.Clock
	jobs   int
}

// New creates a new Engine with the given dependencies.
func New(fs fsops.FS, logger *zap.Logger, clk clock.Clock, jobs int) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if jobs < 1 {
		jobs = 1
	}
	return &Engine{
		fs:     fs,
		logger: logger,
		clock:  clk,
		jobs:   jobs,
	}
}
