package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/skaphos/branchkeeper/internal/config"
	"github.com/skaphos/branchkeeper/internal/model"
)

// MergeFromOptions configures merge-from.
type MergeFromOptions struct {
	// Rebase replays the current branch onto the source instead of merging.
	Rebase bool
}

// MergeFrom brings source into the current branch. Both branches are first
// brought up to date with their upstreams, so the result matches what the
// remote would produce.
func (e *Engine) MergeFrom(ctx context.Context, wt *Worktree, source string, opts MergeFromOptions) (*model.SyncOperation, error) {
	op := newOperation(model.OpMergeFrom)
	if trimmed, ok := strings.CutPrefix(source, e.cfg.Remote+"/"); ok && !wt.VCS.BranchExists(ctx, wt.Dir, source) {
		source = trimmed
	}
	op.SourceBranch = source

	current, err := e.currentBranch(ctx, wt)
	if err != nil {
		return refuse(op, err)
	}
	op.TargetBranch = current
	if source == current {
		return refuse(op, fmt.Errorf("cannot merge %s into itself", source))
	}
	if err := e.requireRemote(ctx, wt, e.cfg.Remote); err != nil {
		return refuse(op, err)
	}

	sourceRef := source
	localSource := wt.VCS.BranchExists(ctx, wt.Dir, source)
	if !localSource {
		cached, err := wt.VCS.ListRemoteTrackingBranches(ctx, wt.Dir, e.cfg.Remote)
		if err != nil {
			return refuse(op, err)
		}
		if !slices.Contains(cached, source) {
			return refuse(op, fmt.Errorf("%w: %s is neither local nor on %s", ErrBranchNotFound, source, e.cfg.Remote))
		}
		sourceRef = e.cfg.Remote + "/" + source
	}

	pull := e.cfg.StrategyFor(false)
	absorb := config.StrategyMerge
	if opts.Rebase {
		absorb = config.StrategyRebase
	}

	err = e.guarded(ctx, wt, op, fmt.Sprintf("merge-from %s into %s", source, current), func(ctx context.Context) mutation {
		if res := wt.VCS.Fetch(ctx, wt.Dir, e.cfg.Remote); !res.OK {
			return failed(newOperationError("fetch", res))
		}

		if m, done := e.catchUp(ctx, wt, op, current, pull); done {
			return m
		}
		if localSource {
			if m, done := e.catchUpOther(ctx, wt, op, source, current, pull); done {
				return m
			}
		}

		e.step(op, "%s %s into %s", absorb, sourceRef, current)
		res, conflicted := e.integrate(ctx, wt, absorb, sourceRef)
		switch {
		case res.OK:
			if absorb == config.StrategyMerge {
				op.Message = fmt.Sprintf("merged %s into %s", source, current)
			} else {
				op.Message = fmt.Sprintf("rebased %s onto %s", current, source)
			}
			return succeeded()
		case conflicted:
			op.Message = fmt.Sprintf("%s of %s into %s stopped on conflicts", absorb, source, current)
			op.Remediation = conflictSteps(absorb)
			return mutation{outcome: model.OutcomeConflict, stuck: true}
		default:
			return failed(newOperationError(string(absorb), res))
		}
	})
	return op, err
}

// catchUp integrates the upstream of the checked-out branch when it is
// behind. done is true when the caller must return m.
func (e *Engine) catchUp(ctx context.Context, wt *Worktree, op *model.SyncOperation, branch string, strategy config.Strategy) (m mutation, done bool) {
	upstream, err := wt.VCS.UpstreamOf(ctx, wt.Dir, branch)
	if err != nil {
		return mutation{}, false
	}
	behind, err := wt.VCS.BehindCount(ctx, wt.Dir, branch, upstream)
	if err != nil {
		return failed(err), true
	}
	if behind == 0 {
		return mutation{}, false
	}
	e.step(op, "updating %s from %s", branch, upstream)
	res, conflicted := e.integrate(ctx, wt, strategy, upstream)
	switch {
	case res.OK:
		return mutation{}, false
	case conflicted:
		op.Message = fmt.Sprintf("updating %s from %s stopped on conflicts; %s was not touched", branch, upstream, op.SourceBranch)
		op.Remediation = conflictSteps(strategy)
		return mutation{outcome: model.OutcomeConflict, stuck: true}, true
	default:
		return failed(newOperationError(string(strategy), res)), true
	}
}

// catchUpOther updates branch from its upstream by visiting it, then
// returns to home. On conflict the integration is aborted so the user is
// back on home with a clean tree.
func (e *Engine) catchUpOther(ctx context.Context, wt *Worktree, op *model.SyncOperation, branch, home string, strategy config.Strategy) (m mutation, done bool) {
	upstream, err := wt.VCS.UpstreamOf(ctx, wt.Dir, branch)
	if err != nil {
		return mutation{}, false
	}
	behind, err := wt.VCS.BehindCount(ctx, wt.Dir, branch, upstream)
	if err != nil {
		return failed(err), true
	}
	if behind == 0 {
		return mutation{}, false
	}
	if res := wt.VCS.Checkout(ctx, wt.Dir, branch); !res.OK {
		return failed(newOperationError("checkout", res)), true
	}
	e.step(op, "updating %s from %s", branch, upstream)
	res, conflicted := e.integrate(ctx, wt, strategy, upstream)
	if res.OK {
		if back := wt.VCS.Checkout(ctx, wt.Dir, home); !back.OK {
			op.Remediation = append(op.Remediation, "git checkout "+home)
			return mutation{outcome: model.OutcomeFailure, stuck: true, err: newOperationError("checkout", back)}, true
		}
		return mutation{}, false
	}

	if conflicted {
		if ab := e.abort(ctx, wt, strategy); !ab.OK {
			op.Message = fmt.Sprintf("updating %s from %s stopped on conflicts and could not be aborted", branch, upstream)
			op.Remediation = append(conflictSteps(strategy), "git checkout "+home)
			return mutation{outcome: model.OutcomeConflict, stuck: true}, true
		}
	}
	if back := wt.VCS.Checkout(ctx, wt.Dir, home); !back.OK {
		warning := fmt.Sprintf("could not return to %s: %s", home, firstLine(back.Output))
		op.Warn(warning)
		op.Remediation = append(op.Remediation, "git checkout "+home)
		oe := newOperationError(string(strategy), res)
		oe.RollbackWarnings = []string{warning}
		return mutation{outcome: model.OutcomeFailure, stuck: true, err: oe}, true
	}
	if conflicted {
		op.Message = fmt.Sprintf("%s conflicts with %s; nothing was merged into %s", branch, upstream, home)
		op.Remediation = []string{
			"git checkout " + branch,
			fmt.Sprintf("git %s %s  and resolve the conflicts", strategy, upstream),
			fmt.Sprintf("git checkout %s && branchkeeper merge-from %s", home, branch),
		}
		return mutation{outcome: model.OutcomeConflict}, true
	}
	return failed(newOperationError(string(strategy), res)), true
}
