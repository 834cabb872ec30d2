package sweep

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/cargo-gc-target/internal/clock"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
	"github.com/danieljhkim/cargo-gc-target/internal/planner"
)

// Outcome is what happened to one planned deletion.
type Outcome string

const (
	OutcomeDeleted  Outcome = "deleted"
	OutcomeVanished Outcome = "vanished"
	OutcomeFailed   Outcome = "failed"
	// OutcomeNotRun means the run was cancelled before the entry.
	OutcomeNotRun Outcome = "not-run"
)

type result struct {
	outcome Outcome
	err     error
}

// Executor applies plans.
type Executor struct {
	fs     fsops.FS
	logger *zap.Logger
	clock  clock.Clock
	jobs   int
}

// NewExecutor creates an Executor removing at most jobs entries at once.
func NewExecutor(fs fsops.FS, logger *zap.Logger, clk clock.Clock, jobs int) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if jobs < 1 {
		jobs = 1
	}
	return &Executor{fs: fs, logger: logger, clock: clk, jobs: jobs}
}

// Execute deletes every entry of plan.Delete, or only tallies them when
// dryRun is set. Per-entry failures are recorded in the report and never
// stop the run. The returned error is non-nil only when ctx is cancelled;
// the report is returned either way.
func (e *Executor) Execute(ctx context.Context, plan *planner.SweepPlan, dryRun bool) (*Report, error) {
	start := e.clock.Now()
	report := &Report{
		DryRun:       dryRun,
		TargetDir:    plan.TargetDir,
		StartedAt:    start,
		DeletedPaths: []string{},
		Failures:     []Failure{},
		Warnings:     plan.Warnings,
	}

	for _, d := range plan.Keep {
		report.Kept.add(d.Entry.Size)
	}
	for _, d := range plan.Skipped {
		report.Skipped.add(d.Entry.Size)
	}

	if dryRun {
		for _, d := range plan.Delete {
			report.Deleted.add(d.Entry.Size)
			report.DeletedPaths = append(report.DeletedPaths, d.Entry.Path)
		}
		report.Duration = clock.Since(e.clock, start)
		return report, nil
	}

	targetDir := filepath.Clean(plan.TargetDir)
	results := make([]result, len(plan.Delete))

	var g errgroup.Group
	g.SetLimit(e.jobs)
	for i, d := range plan.Delete {
		i, d := i, d
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = result{outcome: OutcomeNotRun}
				return nil
			}
			results[i] = e.remove(targetDir, d.Entry.Path)
			return nil
		})
	}
	_ = g.Wait()

	for i, d := range plan.Delete {
		r := results[i]
		switch r.outcome {
		case OutcomeDeleted:
			report.Deleted.add(d.Entry.Size)
			report.DeletedPaths = append(report.DeletedPaths, d.Entry.Path)
		case OutcomeVanished:
			report.Vanished.add(d.Entry.Size)
		case OutcomeFailed:
			report.Failed.add(d.Entry.Size)
			report.Failures = append(report.Failures, Failure{Path: d.Entry.Path, Err: r.err.Error()})
		}
	}

	report.Duration = clock.Since(e.clock, start)
	e.logger.Debug("sweep applied",
		zap.Int("deleted", report.Deleted.Count),
		zap.Int("vanished", report.Vanished.Count),
		zap.Int("failed", report.Failed.Count),
		zap.Duration("duration", report.Duration))

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("sweep interrupted: %w", err)
	}
	return report, nil
}

// remove deletes one planned entry. A path that no longer exists is a
// successful no-op.
func (e *Executor) remove(targetDir, path string) result {
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(targetDir, clean)
	if err == nil {
		err = e.fs.ValidateRelPath(rel)
	}
	if err != nil {
		err = fmt.Errorf("refusing to delete %s: not inside %s: %w", path, targetDir, err)
		e.logger.Error("deletion refused", zap.String("path", path), zap.Error(err))
		return result{outcome: OutcomeFailed, err: err}
	}

	if _, err := e.fs.Lstat(clean); err != nil {
		if fsops.IsVanished(err) {
			e.logger.Warn("entry vanished before deletion", zap.String("path", clean))
			return result{outcome: OutcomeVanished}
		}
		return result{outcome: OutcomeFailed, err: err}
	}

	e.logger.Debug("removing", zap.String("path", clean))
	if err := e.fs.RemoveAll(clean); err != nil {
		if fsops.IsVanished(err) {
			return result{outcome: OutcomeVanished}
		}
		e.logger.Warn("deletion failed", zap.String("path", clean), zap.Error(err))
		return result{outcome: OutcomeFailed, err: err}
	}
	return result{outcome: OutcomeDeleted}
}
