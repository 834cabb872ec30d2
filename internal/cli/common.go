package cli

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/danieljhkim/cargo-gc-target/internal/clock"
	"github.com/danieljhkim/cargo-gc-target/internal/config"
	"github.com/danieljhkim/cargo-gc-target/internal/engine"
	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
	"github.com/danieljhkim/cargo-gc-target/internal/logging"
)

// newLogger builds the diagnostics logger from the environment and the
// global flags.
func newLogger(opts config.Options) (*zap.Logger, error) {
	base, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  logging.LevelFromFlags(base, verbosity, quiet),
		Format: format,
		Output: stderr,
	}), nil
}

// newEngine creates a new engine with real implementations of all dependencies.
func newEngine(opts config.Options, logger *zap.Logger) *engine.Engine {
	return engine.New(fsops.NewRealFS(), logger, clock.RealClock{}, opts.Jobs)
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatError formats an error for display.
func formatError(err error) string {
	initColors()
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML outputs a value as YAML to stdout.
func outputYAML(v interface{}) error {
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// machineOutput writes v in the format selected by --json or --yaml and
// reports whether one was selected.
func machineOutput(v interface{}) (bool, error) {
	switch {
	case jsonOutput:
		return true, outputJSON(v)
	case yamlOutput:
		return true, outputYAML(v)
	}
	return false, nil
}
