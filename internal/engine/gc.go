package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danieljhkim/cargo-gc-target/internal/config"
	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/inventory"
	"github.com/danieljhkim/cargo-gc-target/internal/metrics"
	"github.com/danieljhkim/cargo-gc-target/internal/planner"
	"github.com/danieljhkim/cargo-gc-target/internal/sweep"
	"github.com/danieljhkim/cargo-gc-target/internal/tracer"
)

// GC collects the workspace's target directory.
//
// The read phase (store and inventory) completes before anything is
// deleted. When some deletions fail the result is returned together with an
// error wrapping ErrDeletionFailed.
func (e *Engine) GC(ctx context.Context, req *GCRequest) (*GCResult, error) {
	if req.Resolver == nil {
		return nil, errors.New("no workspace resolver")
	}

	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID))

	root := req.Resolver.WorkspaceRoot()
	targetDir, err := req.Resolver.TargetDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target directory: %w", err)
	}
	result := &GCResult{WorkspaceRoot: root, TargetDir: targetDir}
	logger.Info("collecting target directory",
		zap.String("target_dir", targetDir),
		zap.String("workspace_root", root),
		zap.Bool("dry_run", req.DryRun))

	// Refuse before reading anything.
	if _, err := planner.NewContainmentChecker(e.fs, req.Force).Check(targetDir, root); err != nil {
		return nil, err
	}

	store, err := fingerprint.NewReader(e.fs, logger, e.jobs).Read(ctx, targetDir)
	if err != nil {
		return nil, err
	}

	units, err := req.Resolver.RootUnits(req.Profiles)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace units: %w", err)
	}

	trace := tracer.New(logger).Trace(store, units)
	result.Trace = trace

	opts := config.Options{Profiles: req.Profiles}
	areas := fingerprint.SelectAreas(store.Areas, opts.ProfileDirs())
	if len(areas) == 0 {
		logger.Warn("no area matches the selected profiles", zap.Strings("profiles", req.Profiles))
	}

	inv, err := inventory.NewScanner(e.fs, logger, e.jobs).Scan(ctx, targetDir, areas)
	if err != nil {
		return nil, err
	}
	logger.Debug("inventory scanned",
		zap.Int("entries", len(inv.Entries)),
		zap.Int64("bytes", inventory.Bytes(inv.Entries)))

	plan, err := planner.New(e.fs, logger).Build(planner.Request{
		Store:         store,
		Live:          trace.Live,
		Inventory:     inv,
		TargetDir:     targetDir,
		WorkspaceRoot: root,
		Force:         req.Force,
	})
	if err != nil {
		return nil, err
	}
	result.Plan = plan

	report, err := sweep.NewExecutor(e.fs, logger, e.clock, e.jobs).Execute(ctx, plan, req.DryRun)
	if report != nil {
		report.RunID = runID
		report.Unparseable = store.Unparseable()
		for _, a := range trace.Anomalies {
			report.Anomalies = append(report.Anomalies, a.String())
		}
		if report.Unparseable == nil {
			report.Unparseable = []fingerprint.Unparseable{}
		}
		if report.Anomalies == nil {
			report.Anomalies = []string{}
		}
		result.Report = report
	}
	if err != nil {
		return result, err
	}

	if req.MetricsFile != "" {
		m := metrics.New()
		m.Observe(report)
		if err := m.WriteTextfile(req.MetricsFile); err != nil {
			logger.Warn("metrics not written", zap.Error(err))
		}
	}

	logger.Info("collection finished",
		zap.Int("deleted", report.Deleted.Count),
		zap.Int64("reclaimed_bytes", report.Reclaimed()),
		zap.Int("failed", report.Failed.Count))

	if report.HasFailures() {
		return result, fmt.Errorf("%w: %d of %d entries could not be removed",
			ErrDeletionFailed, len(report.Failures), len(plan.Delete))
	}
	return result, nil
}
