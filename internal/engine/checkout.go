package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/prompt"
)

// Checkout switches to the branch named by query, offering close matches
// when it does not name one exactly. Uncommitted work is carried across the
// switch in a save-point.
func (e *Engine) Checkout(ctx context.Context, wt *Worktree, query string) (*model.SyncOperation, error) {
	op := newOperation(model.OpCheckout)

	// A detached HEAD is a fine place to check out from.
	current, err := wt.VCS.CurrentBranch(ctx, wt.Dir)
	if err == nil {
		op.SourceBranch = current
	}

	target, err := e.resolveTarget(ctx, wt, query, current)
	switch {
	case errors.Is(err, ErrNoCandidates):
		op.Outcome = model.OutcomeCancelled
		op.Message = err.Error()
		return op, err
	case errors.Is(err, prompt.ErrCancelled):
		op.Outcome = model.OutcomeDeclined
		op.Message = "no branch selected"
		return op, nil
	case err != nil:
		return refuse(op, err)
	}
	op.TargetBranch = target

	if target == current {
		op.Outcome = model.OutcomeSuccess
		op.Message = fmt.Sprintf("already on %s", target)
		return op, nil
	}

	err = e.guarded(ctx, wt, op, "checkout "+target, func(ctx context.Context) mutation {
		if res := wt.VCS.Fetch(ctx, wt.Dir, e.cfg.Remote); !res.OK {
			op.Warn(fmt.Sprintf("fetch %s failed, using cached branches: %s", e.cfg.Remote, firstLine(res.Output)))
		}
		if res := wt.VCS.Checkout(ctx, wt.Dir, target); !res.OK {
			return failed(newOperationError("checkout", res))
		}
		e.step(op, "switched to %s", target)
		op.Message = fmt.Sprintf("switched to %s", target)

		upstream, err := wt.VCS.UpstreamOf(ctx, wt.Dir, target)
		if err != nil {
			return succeeded()
		}
		if res := wt.VCS.FastForward(ctx, wt.Dir, upstream); !res.OK {
			op.Warn(fmt.Sprintf("%s has diverged from %s; run branchkeeper update to integrate", target, upstream))
			return succeeded()
		}
		e.step(op, "fast-forwarded %s to %s", target, upstream)
		return succeeded()
	})
	return op, err
}
