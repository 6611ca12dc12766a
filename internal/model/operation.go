package model

import "sort"

// OperationKind names a user-facing workflow.
type OperationKind string

const (
	OpCheckout  OperationKind = "checkout"
	OpUpdate    OperationKind = "update"
	OpUpdateAll OperationKind = "update-all"
	OpMergeFrom OperationKind = "merge-from"
	OpPrune     OperationKind = "prune"
	OpReset     OperationKind = "reset"
)

// Outcome is the terminal result of a SyncOperation.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeConflict  Outcome = "conflict"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeDeclined is a user "no" at a confirmation. It exits cleanly.
	OutcomeDeclined Outcome = "declined"
)

// Phase is a state in the per-mutation state machine:
//
//	Idle → Guarding → Mutating → {Succeeded, Conflicted, Failed} → Restoring → Done
//
// A mutation that cannot be restored ends in NeedsRecovery instead of Done.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseGuarding      Phase = "guarding"
	PhaseMutating      Phase = "mutating"
	PhaseSucceeded     Phase = "succeeded"
	PhaseConflicted    Phase = "conflicted"
	PhaseFailed        Phase = "failed"
	PhaseRestoring     Phase = "restoring"
	PhaseDone          Phase = "done"
	PhaseNeedsRecovery Phase = "needs-recovery"
)

// BranchResult is the per-branch outcome of a fleet update.
type BranchResult string

const (
	BranchUpdated  BranchResult = "updated"
	BranchUpToDate BranchResult = "up-to-date"
	BranchSkipped  BranchResult = "skipped"
	BranchFailed   BranchResult = "failed"
	BranchDeleted  BranchResult = "deleted"
)

// BranchReport is one row of a fleet update or prune report.
type BranchReport struct {
	Branch string
	Result BranchResult
	// Conflict is true when a failure was a rebase/merge conflict that was
	// aborted.
	Conflict bool
	Detail   string
}

// SyncOperation records one command invocation. It lives only for the
// duration of the command.
type SyncOperation struct {
	Kind         OperationKind
	SourceBranch string
	TargetBranch string
	// Branches is the branch set for update-all and prune.
	Branches []string
	// SavePoint is set while a save-point is held by this operation, and
	// stays set when it could not be restored.
	SavePoint *SavePoint
	Outcome   Outcome
	Phases    []Phase
	// Message is a short human summary of the outcome.
	Message string
	// Remediation lists the commands the user must run to finish or recover.
	Remediation []string
	// Warnings holds non-fatal problems, including rollback failures.
	Warnings []string
	// Reports holds per-branch rows for fleet commands.
	Reports []BranchReport
	// Classification is the classifier result prune acted on.
	Classification *Classification
}

// Enter appends a phase transition.
func (op *SyncOperation) Enter(p Phase) {
	op.Phases = append(op.Phases, p)
}

// Phase returns the most recent phase.
func (op *SyncOperation) Phase() Phase {
	if len(op.Phases) == 0 {
		return PhaseIdle
	}
	return op.Phases[len(op.Phases)-1]
}

// Warn records a non-fatal warning.
func (op *SyncOperation) Warn(msg string) {
	if msg == "" {
		return
	}
	op.Warnings = append(op.Warnings, msg)
}

// Count returns the number of reports with the given result.
func (op *SyncOperation) Count(r BranchResult) int {
	n := 0
	for _, rep := range op.Reports {
		if rep.Result == r {
			n++
		}
	}
	return n
}

func sortStrings(values []string) {
	sort.Strings(values)
}
