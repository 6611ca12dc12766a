package branchkeeper

import (
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/skaphos/branchkeeper/internal/cliio"
	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/sortutil"
	"github.com/skaphos/branchkeeper/internal/termstyle"
)

// logOutputWriteFailure records non-fatal output write/flush failures.
// CLI consumers frequently pipe to tools that close early (for example `head`),
// so we log and continue instead of treating these as command failures.
func logOutputWriteFailure(cmd *cobra.Command, context string, err error) {
	if err == nil {
		return
	}
	debugf(cmd, "ignored output write failure (%s): %v", context, err)
}

// writeOperation renders the report for one workflow run: per-branch rows,
// warnings, the outcome line, any held save-point, and next steps.
func writeOperation(cmd *cobra.Command, op *model.SyncOperation, err error) {
	if op == nil {
		if err != nil {
			warnf(cmd, "error: %v", err)
		}
		return
	}
	out := cmd.OutOrStdout()

	if op.Classification != nil {
		writeClassificationTable(cmd, *op.Classification)
	}
	if len(op.Reports) > 0 {
		writeReportTable(cmd, op.Reports)
	}
	for _, w := range op.Warnings {
		warnf(cmd, "%s", termstyle.Colorize(colorOutputEnabled, "warning: "+w, termstyle.Warn))
	}

	msg := op.Message
	if msg == "" && err != nil {
		msg = err.Error()
	}
	outcome := termstyle.Colorize(colorOutputEnabled, string(op.Outcome), termstyle.ForOutcome(op.Outcome))
	_, werr := fmt.Fprintf(out, "%s: %s\n", outcome, msg)
	logOutputWriteFailure(cmd, "outcome", werr)
	if err != nil && err.Error() != msg {
		warnf(cmd, "error: %v", err)
	}
	if op.SavePoint != nil {
		_, werr = fmt.Fprintf(out, "save-point: %s (%s)\n", op.SavePoint.Reference, op.SavePoint.Message)
		logOutputWriteFailure(cmd, "save-point", werr)
	}
	if len(op.Remediation) > 0 {
		logOutputWriteFailure(cmd, "remediation", cliio.WriteSteps(out, "Next steps:", op.Remediation))
	}
	debugf(cmd, "phases: %v", op.Phases)
}

func writeReportTable(cmd *cobra.Command, reports []model.BranchReport) {
	rows := slices.Clone(reports)
	sortutil.SortReports(rows)
	limit := adaptiveCellLimit(cmd, 0, 48, 32)
	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		result := string(r.Result)
		if r.Conflict {
			result += " (conflict)"
		}
		table = append(table, []string{
			r.Branch,
			termstyle.Colorize(colorOutputEnabled, result, termstyle.ForResult(r.Result)),
			truncateCell(r.Detail, limit),
		})
	}
	err := cliio.WriteTable(cmd.OutOrStdout(), colorOutputEnabled, false, []string{"BRANCH", "RESULT", "DETAIL"}, table)
	logOutputWriteFailure(cmd, "report table", err)
}

func writeClassificationTable(cmd *cobra.Command, cls model.Classification) {
	var table [][]string
	for _, row := range sortutil.ClassificationRows(cls) {
		table = append(table, []string{
			row.Name,
			termstyle.Colorize(colorOutputEnabled, string(row.Category), termstyle.ForCategory(row.Category)),
		})
	}
	for _, name := range cls.Protected {
		table = append(table, []string{name, termstyle.Colorize(colorOutputEnabled, "protected", termstyle.Muted)})
	}
	err := cliio.WriteTable(cmd.OutOrStdout(), colorOutputEnabled, false, []string{"BRANCH", "CATEGORY"}, table)
	logOutputWriteFailure(cmd, "classification table", err)
}

// truncateCell shortens value to limit runes so multi-byte text is never
// split mid-character.
func truncateCell(value string, limit int) string {
	if limit <= 3 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit-3]) + "..."
}
