package planner

import (
	"github.com/danieljhkim/cargo-gc-target/internal/inventory"
)

// Action is what happens to an entry.
type Action string

// Action constants
const (
	ActionKeep   Action = "keep"
	ActionDelete Action = "delete"
	ActionSkip   Action = "skip"
)

// Reason constants explain a decision.
const (
	ReasonLive         = "live"
	ReasonUnrecognized = "unrecognized"
	ReasonUnrecorded   = "unrecorded"
	ReasonUnsupported  = "unsupported"
	ReasonDead         = "dead"
	ReasonOrphaned     = "orphaned"
)

// Decision is the planner's verdict on one inventory entry.
type Decision struct {
	Entry inventory.Entry `json:"entry" yaml:"entry"`

	Action Action `json:"action" yaml:"action"`

	// Reason is a short machine-readable explanation
	Reason string `json:"reason" yaml:"reason"`

	// Owners are the record keys the entry was attributed to
	Owners []string `json:"owners,omitempty" yaml:"owners,omitempty"`
}

// Warning is a non-fatal condition attached to a plan.
type Warning struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// WarningOutsideWorkspace marks a forced sweep of a target directory outside
// the workspace root.
const WarningOutsideWorkspace = "outside-workspace"

// SweepPlan partitions an inventory.
type SweepPlan struct {
	// TargetDir is the resolved target directory the plan applies to
	TargetDir string

	Keep    []Decision
	Delete  []Decision
	Skipped []Decision

	// Warnings is a list of attached warnings (empty if none)
	Warnings []Warning
}

// NewSweepPlan creates a new empty SweepPlan.
func NewSweepPlan(targetDir string) *SweepPlan {
	return &SweepPlan{
		TargetDir: targetDir,
		Keep:      []Decision{},
		Delete:    []Decision{},
		Skipped:   []Decision{},
		Warnings:  []Warning{},
	}
}

// Add files a decision under its action.
func (p *SweepPlan) Add(d Decision) {
	switch d.Action {
	case ActionDelete:
		p.Delete = append(p.Delete, d)
	case ActionSkip:
		p.Skipped = append(p.Skipped, d)
	default:
		d.Action = ActionKeep
		p.Keep = append(p.Keep, d)
	}
}

// AddWarning adds a warning to the plan.
func (p *SweepPlan) AddWarning(w Warning) {
	p.Warnings = append(p.Warnings, w)
}

// HasWarnings returns true if the plan has any warnings.
func (p *SweepPlan) HasWarnings() bool {
	return len(p.Warnings) > 0
}

// Len returns the number of decisions.
func (p *SweepPlan) Len() int {
	return len(p.Keep) + len(p.Delete) + len(p.Skipped)
}

// Entries returns the entries of a decision list.
func Entries(ds []Decision) []inventory.Entry {
	out := make([]inventory.Entry, len(ds))
	for i, d := range ds {
		out[i] = d.Entry
	}
	return out
}
