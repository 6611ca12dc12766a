package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaphos/branchkeeper/internal/classify"
	"github.com/skaphos/branchkeeper/internal/model"
)

// PruneOptions configures prune.
type PruneOptions struct {
	// Force deletes branches git considers unmerged.
	Force bool
	// Remote overrides the configured remote.
	Remote string
	// IncludeOrphaned also offers local branches that never had an upstream.
	IncludeOrphaned bool
}

// PrunePlan splits a classification into branches to delete and branches
// held back, with the reason for each.
type PrunePlan struct {
	Delete []string
	Held   []model.BranchReport
}

// PlanPrune decides which classified branches prune may delete. current and
// protected branches are never deleted. Stale-tracking branches are held
// back when the classification is degraded, since cached data cannot prove
// the remote branch is gone.
func PlanPrune(cls model.Classification, current string, protected []string, includeOrphaned bool) PrunePlan {
	var plan PrunePlan
	consider := func(name, reason string) {
		switch {
		case name == current:
			plan.Held = append(plan.Held, model.BranchReport{Branch: name, Result: model.BranchSkipped, Detail: "current branch"})
		case classify.IsProtected(name, protected):
			plan.Held = append(plan.Held, model.BranchReport{Branch: name, Result: model.BranchSkipped, Detail: "protected"})
		case reason != "":
			plan.Held = append(plan.Held, model.BranchReport{Branch: name, Result: model.BranchSkipped, Detail: reason})
		default:
			plan.Delete = append(plan.Delete, name)
		}
	}
	for _, name := range cls.Names(model.CategoryUpstreamGone) {
		consider(name, "")
	}
	for _, name := range cls.Names(model.CategoryStaleTracking) {
		if cls.Degraded {
			consider(name, "remote unreachable; not deleting on cached data")
			continue
		}
		consider(name, "")
	}
	if includeOrphaned {
		for _, name := range cls.Names(model.CategoryOrphaned) {
			consider(name, "")
		}
	}
	return plan
}

// Prune deletes local branches whose upstream is gone or no longer on the
// remote, after confirmation. It fetches nothing: deletion decisions rest
// on the live remote query made by the classifier.
func (e *Engine) Prune(ctx context.Context, wt *Worktree, opts PruneOptions) (*model.SyncOperation, error) {
	op := newOperation(model.OpPrune)
	remote := opts.Remote
	if remote == "" {
		remote = e.cfg.Remote
	}

	current, _ := wt.VCS.CurrentBranch(ctx, wt.Dir)
	op.SourceBranch = current
	if err := e.requireRemote(ctx, wt, remote); err != nil {
		return refuse(op, err)
	}

	in, err := classify.Gather(ctx, wt.VCS, wt.Dir, remote, current, e.cfg.ProtectedBranches)
	if err != nil {
		return refuse(op, err)
	}
	cls := classify.Classify(in)
	op.Classification = &cls
	if cls.Degraded {
		op.Warn(cls.DegradedReason + "; stale-tracking branches are listed but not deleted")
	}

	plan := PlanPrune(cls, current, e.cfg.ProtectedBranches, opts.IncludeOrphaned)
	op.Reports = append(op.Reports, plan.Held...)
	if len(plan.Delete) == 0 {
		op.Outcome = model.OutcomeSuccess
		op.Message = "nothing to prune"
		return op, nil
	}
	op.Branches = plan.Delete

	question := fmt.Sprintf("Delete %d local branch(es): %s?", len(plan.Delete), strings.Join(plan.Delete, ", "))
	ok, err := e.decider.Confirm(ctx, question)
	if err != nil {
		return refuse(op, err)
	}
	if !ok {
		op.Outcome = model.OutcomeDeclined
		op.Message = "no branches deleted"
		return op, nil
	}

	op.Enter(model.PhaseMutating)
	for _, name := range plan.Delete {
		res := wt.VCS.DeleteBranch(ctx, wt.Dir, name, opts.Force)
		if res.OK {
			e.step(op, "deleted %s", name)
			op.Reports = append(op.Reports, model.BranchReport{Branch: name, Result: model.BranchDeleted})
			continue
		}
		detail := firstLine(res.Output)
		if !opts.Force && newOperationError("branch", res).Class() == "unmerged" {
			detail = "not fully merged; rerun with --force to delete anyway"
		}
		op.Reports = append(op.Reports, model.BranchReport{Branch: name, Result: model.BranchFailed, Detail: detail})
	}

	deleted, failures := op.Count(model.BranchDeleted), op.Count(model.BranchFailed)
	op.Message = fmt.Sprintf("deleted %d branch(es)", deleted)
	if failures > 0 {
		op.Message += fmt.Sprintf(", %d could not be deleted", failures)
		op.Outcome = model.OutcomeFailure
		op.Enter(model.PhaseFailed)
	} else {
		op.Outcome = model.OutcomeSuccess
		op.Enter(model.PhaseSucceeded)
	}
	op.Enter(model.PhaseDone)
	return op, nil
}
