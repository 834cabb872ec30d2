package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danieljhkim/cargo-gc-target/internal/config"
	"github.com/danieljhkim/cargo-gc-target/internal/engine"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
	"github.com/danieljhkim/cargo-gc-target/internal/workspace"
)

var (
	gcProfiles     []string
	gcForce        bool
	gcDryRun       bool
	gcManifestPath string
	gcTargetDir    string
	gcUnitGraph    string
	gcJobs         int
	gcMetricsFile  string
)

var gcCmd = &cobra.Command{
	Use:   "gc-target",
	Short: "Delete artifacts the workspace can no longer reach",
	Long: `Trace the fingerprint records in the target directory from the workspace's
targets and delete every artifact nothing reaches.

Records that cannot be parsed are kept, along with everything they reference.
Incremental, example and documentation output is never touched.

The target directory must lie inside the workspace root unless --force is
given. Use --dry-run to preview what would be deleted.

Exit codes: 0 success, 2 unrecognized target directory format,
3 target directory outside the workspace, 4 some deletions failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := gcOptions(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(opts)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		resolver, err := workspace.Discover(fsops.NewRealFS(), logger, workspace.Options{
			ManifestPath: opts.ManifestPath,
			WorkDir:      cwd,
			TargetDir:    opts.TargetDir,
			UnitGraph:    opts.UnitGraph,
			Getenv:       os.Getenv,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		result, gcErr := newEngine(opts, logger).GC(ctx, &engine.GCRequest{
			Resolver:    resolver,
			Profiles:    opts.Profiles,
			Force:       opts.Force,
			DryRun:      opts.DryRun,
			MetricsFile: opts.MetricsFile,
		})
		if result == nil || result.Report == nil {
			return gcErr
		}

		done, err := machineOutput(result.Report)
		if err != nil {
			return err
		}
		if !done && !quiet {
			renderResult(result)
		}
		if gcErr != nil {
			logger.Debug("run finished with errors", zap.Error(gcErr))
		}
		return gcErr
	},
}

// gcOptions layers the flags that were set over the environment defaults.
func gcOptions(cmd *cobra.Command) (config.Options, error) {
	opts, err := config.FromEnv()
	if err != nil {
		return config.Options{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("jobs") {
		opts.Jobs = gcJobs
	}
	opts.Profiles = gcProfiles
	opts.Force = gcForce
	opts.DryRun = gcDryRun
	opts.ManifestPath = gcManifestPath
	opts.TargetDir = gcTargetDir
	opts.UnitGraph = gcUnitGraph
	opts.MetricsFile = gcMetricsFile
	if err := opts.Validate(); err != nil {
		return config.Options{}, err
	}
	return opts, nil
}

func init() {
	gcCmd.Flags().StringArrayVar(&gcProfiles, "profile", nil, "Profile to collect (repeatable; default all present)")
	gcCmd.Flags().BoolVar(&gcForce, "force", false, "Collect a target directory outside the workspace root")
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "Report what would be deleted without deleting")
	gcCmd.Flags().StringVar(&gcManifestPath, "manifest-path", "", "Path to Cargo.toml")
	gcCmd.Flags().StringVar(&gcTargetDir, "target-dir", "", "Target directory to collect")
	gcCmd.Flags().StringVar(&gcUnitGraph, "unit-graph", "", "Read roots from a cargo --unit-graph JSON file")
	gcCmd.Flags().IntVarP(&gcJobs, "jobs", "j", 0, "Parallel filesystem operations (default: number of CPUs)")
	gcCmd.Flags().StringVar(&gcMetricsFile, "metrics-file", "", "Write a Prometheus textfile with run metrics")
}
