package engine

import (
	"errors"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/planner"
	"github.com/danieljhkim/cargo-gc-target/internal/workspace"
)

var (
	// ErrFormat indicates the target directory is not in the supported format.
	ErrFormat = fingerprint.ErrFormat

	// ErrContainment indicates the target directory lies outside the
	// workspace root and --force was not given.
	ErrContainment = planner.ErrContainment

	// ErrDeletionFailed indicates at least one planned deletion failed.
	ErrDeletionFailed = errors.New("deletion failed")

	// ErrNoWorkspace indicates no Cargo.toml could be found.
	ErrNoWorkspace = workspace.ErrNoManifest
)
