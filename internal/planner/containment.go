package planner

import (
	"errors"
	"fmt"

	"github.com/danieljhkim/cargo-gc-target/internal/fsops"
)

// ErrContainment is matched by every ContainmentError.
var ErrContainment = errors.New("target directory is outside the workspace root")

// ContainmentError reports a target directory that resolves outside the
// workspace root.
type ContainmentError struct {
	TargetDir     string
	WorkspaceRoot string
}

func (e *ContainmentError) Error() string {
	return fmt.Sprintf("target directory %s is outside the workspace root %s; nothing was deleted. Re-run with --force to collect it anyway",
		e.TargetDir, e.WorkspaceRoot)
}

// Is makes errors.Is(err, ErrContainment) true.
func (e *ContainmentError) Is(target error) bool {
	return target == ErrContainment
}

// ContainmentChecker verifies that the target directory lies inside the
// workspace before anything is planned.
type ContainmentChecker struct {
	fs    fsops.FS
	force bool
}

// NewContainmentChecker creates a new ContainmentChecker.
func NewContainmentChecker(fs fsops.FS, force bool) *ContainmentChecker {
	return &ContainmentChecker{fs: fs, force: force}
}

// Check resolves both paths (symlinks evaluated) and compares them.
// Outside and not forced returns a *ContainmentError. Outside and forced
// returns a warning for the plan. Inside returns neither.
func (c *ContainmentChecker) Check(targetDir, workspaceRoot string) (*Warning, error) {
	target, err := fsops.Resolve(c.fs, targetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target directory: %w", err)
	}
	root, err := fsops.Resolve(c.fs, workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}

	if fsops.IsWithin(root, target) {
		return nil, nil
	}

	if !c.force {
		return nil, &ContainmentError{TargetDir: target, WorkspaceRoot: root}
	}

	return &Warning{
		Code:    WarningOutsideWorkspace,
		Message: fmt.Sprintf("target directory %s is outside the workspace root %s (forced)", target, root),
	}, nil
}
