// Package config manages cargo-gc-target run configuration.
//
// Everything the collector needs is resolved once at startup into an Options
// value: environment defaults first (FromEnv), then command-line flags on
// top. Nothing is persisted between runs.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

const (
	// EnvJobs overrides the default parallelism.
	EnvJobs = "CARGO_GC_TARGET_JOBS"

	// EnvLog sets the log level (debug, info, warn, error).
	EnvLog = "CARGO_GC_TARGET_LOG"

	// EnvTargetDir is cargo's own target directory override.
	EnvTargetDir = "CARGO_TARGET_DIR"
)

// Options contains the resolved configuration of a single run.
type Options struct {
	// ManifestPath points at a Cargo.toml; empty means discover from the
	// working directory.
	ManifestPath string

	// TargetDir overrides every other target directory source.
	TargetDir string

	// UnitGraph is a unit-graph JSON file that supplies roots instead of
	// the manifests.
	UnitGraph string

	// Profiles selects which profiles are swept; empty means all present.
	Profiles []string

	// Force bypasses the workspace containment check.
	Force bool

	// DryRun reports the plan without deleting anything.
	DryRun bool

	// Jobs bounds read and delete parallelism.
	Jobs int

	// MetricsFile, when set, receives a Prometheus textfile after the run.
	MetricsFile string

	// LogLevel is the zap level name.
	LogLevel string
}

// Default returns options with built-in defaults only.
func Default() Options {
	return Options{
		Jobs:     runtime.NumCPU(),
		LogLevel: "warn",
	}
}

// FromEnv returns the defaults with environment overrides applied.
// Environment variables:
// - CARGO_GC_TARGET_JOBS: Override the default parallelism
// - CARGO_GC_TARGET_LOG: Override the default log level
func FromEnv() (Options, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Options, error) {
	opts := Default()

	if v, ok := lookup(EnvJobs); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Options{}, fmt.Errorf("invalid %s %q: %w", EnvJobs, v, err)
		}
		opts.Jobs = n
	}

	if v, ok := lookup(EnvLog); ok && strings.TrimSpace(v) != "" {
		opts.LogLevel = strings.ToLower(strings.TrimSpace(v))
	}

	return opts, opts.Validate()
}

// Validate checks that the options are usable.
func (o Options) Validate() error {
	if o.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", o.Jobs)
	}
	for _, p := range o.Profiles {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("profile name must not be empty")
		}
		if strings.ContainsAny(p, `/\`) {
			return fmt.Errorf("invalid profile name %q", p)
		}
	}
	return nil
}

// ProfileDirs maps the selected profile names to their directory names,
// dropping duplicates. Nil means every profile present.
func (o Options) ProfileDirs() []string {
	if len(o.Profiles) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(o.Profiles))
	var dirs []string
	for _, p := range o.Profiles {
		d := ProfileDir(p)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return dirs
}
