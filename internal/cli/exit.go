package cli

import (
	"errors"

	"github.com/danieljhkim/cargo-gc-target/internal/engine"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitError          = 1
	ExitFormat         = 2
	ExitContainment    = 3
	ExitDeletionFailed = 4
)

// ExitCode maps a run error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, engine.ErrFormat):
		return ExitFormat
	case errors.Is(err, engine.ErrContainment):
		return ExitContainment
	case errors.Is(err, engine.ErrDeletionFailed):
		return ExitDeletionFailed
	default:
		return ExitError
	}
}

// FormatError renders err for stderr.
func FormatError(err error) string {
	return formatError(err)
}
