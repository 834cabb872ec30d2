package engine

import (
	"github.com/danieljhkim/cargo-gc-target/internal/planner"
	"github.com/danieljhkim/cargo-gc-target/internal/sweep"
	"github.com/danieljhkim/cargo-gc-target/internal/tracer"
	"github.com/danieljhkim/cargo-gc-target/internal/workspace"
)

// GCRequest represents a request to collect a target directory.
type GCRequest struct {
	// Resolver describes the workspace being collected
	Resolver workspace.Resolver

	// Profiles narrows the sweep to these profiles; empty means all present
	Profiles []string

	// Force allows sweeping a target directory outside the workspace
	Force bool

	// DryRun reports the plan without deleting anything
	DryRun bool

	// MetricsFile, when set, receives a Prometheus textfile after the run
	MetricsFile string
}

// GCResult represents the result of a collection run.
type GCResult struct {
	// WorkspaceRoot is the resolved workspace root
	WorkspaceRoot string

	// TargetDir is the resolved target directory
	TargetDir string

	// Trace is the reachability result
	Trace *tracer.Result

	// Plan is the sweep plan that was executed
	Plan *planner.SweepPlan

	// Report summarizes what was (or would be) deleted
	Report *sweep.Report
}
