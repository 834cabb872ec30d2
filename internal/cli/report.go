package cli

import (
	"fmt"

	"github.com/danieljhkim/cargo-gc-target/internal/engine"
	"github.com/danieljhkim/cargo-gc-target/internal/sweep"
)

// maxListed caps path lists on a terminal unless -v is given.
const maxListed = 20

func tallyString(t sweep.Tally) string {
	return fmt.Sprintf("%s (%s)", PrintCount(t.Count, "entry", "entries"), FormatBytes(t.Bytes))
}

// renderResult prints the human-readable summary of a run.
func renderResult(result *engine.GCResult) {
	r := result.Report

	if r.DryRun {
		PrintSection("Dry Run")
	} else {
		PrintSection("Collected")
	}
	PrintLabelValue("Target directory", result.TargetDir)
	PrintLabelValue("Workspace root", result.WorkspaceRoot)
	if result.Trace != nil {
		PrintLabelValue("Live records", fmt.Sprintf("%d (%d roots)", result.Trace.Live.Len(), len(result.Trace.Roots)))
	}
	fmt.Fprintln(stdout)

	PrintLabelValue("Kept", tallyString(r.Kept))
	if r.DryRun {
		PrintLabelValueWithColor("Would delete", tallyString(r.Deleted), deleteColor)
	} else {
		PrintLabelValueWithColor("Deleted", tallyString(r.Deleted), deleteColor)
	}
	PrintLabelValue("Skipped", tallyString(r.Skipped))
	if r.Vanished.Count > 0 {
		PrintLabelValue("Vanished", tallyString(r.Vanished))
	}
	if r.Failed.Count > 0 {
		PrintLabelValueWithColor("Failed", tallyString(r.Failed), errorColor)
	}

	for _, w := range r.Warnings {
		fmt.Fprintln(stdout)
		PrintWarning(w.Message)
	}

	if len(r.Unparseable) > 0 {
		PrintSection("Unparseable Records (kept)")
		rows := make([][]string, 0, len(r.Unparseable))
		for _, u := range r.Unparseable {
			rows = append(rows, []string{u.Key, u.Reason})
		}
		PrintTable([]string{"RECORD", "REASON"}, rows)
	}

	if len(r.Anomalies) > 0 {
		PrintSection("Anomalies")
		PrintList(r.Anomalies, 1)
	}

	if verbosity > 0 && len(r.DeletedPaths) > 0 {
		if r.DryRun {
			PrintSection("Would Delete")
		} else {
			PrintSection("Deleted")
		}
		PrintList(r.DeletedPaths, 1)
	} else if r.DryRun && len(r.DeletedPaths) > 0 {
		PrintSection("Would Delete")
		listed := r.DeletedPaths
		if isTerminal() && len(listed) > maxListed {
			listed = listed[:maxListed]
		}
		PrintList(listed, 1)
		if len(listed) < len(r.DeletedPaths) {
			PrintEmptyState(fmt.Sprintf("... and %d more (use -v to list all)", len(r.DeletedPaths)-len(listed)))
		}
	}

	if len(r.Failures) > 0 {
		PrintSection("Failures")
		rows := make([][]string, 0, len(r.Failures))
		for _, f := range r.Failures {
			rows = append(rows, []string{f.Path, f.Err})
		}
		PrintTable([]string{"PATH", "ERROR"}, rows)
	}

	fmt.Fprintln(stdout)
	switch {
	case r.DryRun:
		PrintWarning(fmt.Sprintf("Would free %s. Run without --dry-run to delete.", FormatBytes(r.Reclaimed())))
	case len(r.Failures) > 0:
		PrintError(fmt.Sprintf("Freed %s, %s could not be removed", FormatBytes(r.Reclaimed()),
			PrintCount(len(r.Failures), "entry", "entries")))
	default:
		PrintSuccess(fmt.Sprintf("Finished: %s freed", FormatBytes(r.Reclaimed())))
	}
}
