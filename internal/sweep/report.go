// Package sweep applies sweep plans and reports what happened.
package sweep

import (
	"time"

	"github.com/danieljhkim/cargo-gc-target/internal/fingerprint"
	"github.com/danieljhkim/cargo-gc-target/internal/planner"
)

// Tally counts entries and their bytes.
type Tally struct {
	Count int   `json:"count" yaml:"count"`
	Bytes int64 `json:"bytes" yaml:"bytes"`
}

func (t *Tally) add(size int64) {
	t.Count++
	t.Bytes += size
}

// Failure is one entry that could not be deleted.
type Failure struct {
	Path string `json:"path" yaml:"path"`
	Err  string `json:"error" yaml:"error"`
}

// Report is the summary of one run. In a dry run Deleted holds what would
// have been deleted.
type Report struct {
	RunID     string        `json:"run_id" yaml:"run_id"`
	DryRun    bool          `json:"dry_run" yaml:"dry_run"`
	TargetDir string        `json:"target_dir" yaml:"target_dir"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration_ns" yaml:"duration_ns"`

	Kept     Tally `json:"kept" yaml:"kept"`
	Deleted  Tally `json:"deleted" yaml:"deleted"`
	Skipped  Tally `json:"skipped" yaml:"skipped"`
	Failed   Tally `json:"failed" yaml:"failed"`
	Vanished Tally `json:"vanished" yaml:"vanished"`

	DeletedPaths []string                  `json:"deleted_paths" yaml:"deleted_paths"`
	Failures     []Failure                 `json:"failures" yaml:"failures"`
	Unparseable  []fingerprint.Unparseable `json:"unparseable" yaml:"unparseable"`
	Anomalies    []string                  `json:"anomalies" yaml:"anomalies"`
	Warnings     []planner.Warning         `json:"warnings" yaml:"warnings"`
}

// HasFailures reports whether any deletion failed.
func (r *Report) HasFailures() bool {
	return len(r.Failures) > 0
}

// Reclaimed is the number of bytes freed (or that would be freed).
func (r *Report) Reclaimed() int64 {
	return r.Deleted.Bytes
}
