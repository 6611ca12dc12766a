package engine

import (
	"context"
	"fmt"

	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/stash"
)

// ResetOptions configures reset.
type ResetOptions struct {
	// Force discards uncommitted changes instead of saving them.
	Force bool
	// ClearStashes also drops save-points left behind by earlier runs.
	ClearStashes bool
}

// Reset points the current branch at its upstream, discarding local
// commits. Uncommitted changes are saved first unless Force is set, and the
// save-point is left in the stash for the user to pop.
func (e *Engine) Reset(ctx context.Context, wt *Worktree, opts ResetOptions) (*model.SyncOperation, error) {
	op := newOperation(model.OpReset)

	current, err := e.currentBranch(ctx, wt)
	if err != nil {
		return refuse(op, err)
	}
	op.SourceBranch = current
	upstream, err := e.upstreamOf(ctx, wt, current)
	if err != nil {
		return refuse(op, err)
	}
	op.TargetBranch = upstream

	question := fmt.Sprintf("Reset %s to %s? Local commits not on %s will be lost", current, upstream, upstream)
	if opts.Force {
		question += " and uncommitted changes will be discarded."
	} else {
		question += "; uncommitted changes will be saved to the stash."
	}
	ok, err := e.decider.Confirm(ctx, question)
	if err != nil {
		return refuse(op, err)
	}
	if !ok {
		op.Outcome = model.OutcomeDeclined
		op.Message = fmt.Sprintf("%s was not reset", current)
		return op, nil
	}

	coord := e.coordinator(wt)
	var sp *model.SavePoint
	if !opts.Force {
		op.Enter(model.PhaseGuarding)
		sp, err = coord.Guard(ctx, "reset "+current)
		if err != nil {
			op.Outcome = model.OutcomeFailure
			op.Message = err.Error()
			op.Enter(model.PhaseFailed)
			endGuardFailure(op, err)
			return op, err
		}
		op.SavePoint = sp
		if sp != nil {
			e.step(op, "saved local changes as %s", sp.Reference)
		}
	}

	op.Enter(model.PhaseMutating)
	if res := wt.VCS.Fetch(ctx, wt.Dir, e.remoteFor(ctx, wt, upstream)); !res.OK {
		op.Warn(fmt.Sprintf("fetch failed; resetting to the last fetched %s", upstream))
	}
	if res := wt.VCS.ResetHard(ctx, wt.Dir, upstream); !res.OK {
		op.Outcome = model.OutcomeFailure
		op.Enter(model.PhaseFailed)
		oe := newOperationError("reset", res)
		op.Message = oe.Error()
		if sp == nil {
			op.Enter(model.PhaseDone)
			return op, oe
		}
		op.Enter(model.PhaseRestoring)
		rr := coord.Restore(ctx, sp)
		if rr.OK() {
			op.SavePoint = nil
			op.Enter(model.PhaseDone)
			return op, oe
		}
		warning := restoreWarning(rr)
		op.Warn(warning)
		oe.RollbackWarnings = append(oe.RollbackWarnings, warning)
		op.Remediation = append(op.Remediation, restoreSteps(rr, sp)...)
		op.Enter(model.PhaseNeedsRecovery)
		return op, oe
	}
	op.Enter(model.PhaseSucceeded)
	op.Outcome = model.OutcomeSuccess
	op.Message = fmt.Sprintf("reset %s to %s", current, upstream)
	if sp != nil {
		op.Remediation = []string{
			fmt.Sprintf("git stash pop %s  (brings back the uncommitted changes saved before the reset)", sp.Reference),
		}
	}

	if opts.ClearStashes {
		e.clearStashes(ctx, op, coord, sp)
	}
	op.Enter(model.PhaseDone)
	return op, nil
}

// clearStashes drops every earlier save-point except keep, after asking.
func (e *Engine) clearStashes(ctx context.Context, op *model.SyncOperation, coord *stash.Coordinator, keep *model.SavePoint) {
	entries, err := coord.Owned(ctx)
	if err != nil {
		op.Warn("could not list save-points: " + err.Error())
		return
	}
	n := len(entries)
	if keep != nil {
		n--
	}
	if n <= 0 {
		return
	}
	ok, err := e.decider.Confirm(ctx, fmt.Sprintf("Drop %d save-point(s) left by earlier runs?", n))
	if err != nil || !ok {
		return
	}
	dropped, err := coord.Clear(ctx, keep)
	if err != nil {
		op.Warn(fmt.Sprintf("dropped %d of %d save-points: %v", dropped, n, err))
		return
	}
	e.step(op, "dropped %d old save-point(s)", dropped)
}
