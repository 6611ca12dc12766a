package engine

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/skaphos/branchkeeper/internal/model"
)

// UpdateOptions configures update and update-all.
type UpdateOptions struct {
	// NoRebase integrates with merge instead of the configured strategy.
	NoRebase bool
	// Concurrency bounds the read-only behind-count queries of update-all.
	Concurrency int
}

// Update brings the current branch up to date with its upstream.
func (e *Engine) Update(ctx context.Context, wt *Worktree, opts UpdateOptions) (*model.SyncOperation, error) {
	op := newOperation(model.OpUpdate)

	current, err := e.currentBranch(ctx, wt)
	if err != nil {
		return refuse(op, err)
	}
	op.SourceBranch = current
	if err := e.requireRemote(ctx, wt, e.cfg.Remote); err != nil {
		return refuse(op, err)
	}
	upstream, err := e.upstreamOf(ctx, wt, current)
	if err != nil {
		return refuse(op, err)
	}
	op.TargetBranch = upstream
	strategy := e.cfg.StrategyFor(opts.NoRebase)

	err = e.guarded(ctx, wt, op, "update "+current, func(ctx context.Context) mutation {
		if res := wt.VCS.Fetch(ctx, wt.Dir, e.remoteFor(ctx, wt, upstream)); !res.OK {
			return failed(newOperationError("fetch", res))
		}
		behind, err := wt.VCS.BehindCount(ctx, wt.Dir, current, upstream)
		if err != nil {
			return failed(err)
		}
		if behind == 0 {
			op.Message = fmt.Sprintf("%s is already up to date with %s", current, upstream)
			return succeeded()
		}
		e.step(op, "%s is %d commit(s) behind %s", current, behind, upstream)

		res, conflicted := e.integrate(ctx, wt, strategy, upstream)
		switch {
		case res.OK:
			op.Message = fmt.Sprintf("updated %s from %s (%d new commit(s), %s)", current, upstream, behind, strategy)
			return succeeded()
		case conflicted:
			op.Message = fmt.Sprintf("%s of %s onto %s stopped on conflicts", strategy, current, upstream)
			op.Remediation = conflictSteps(strategy)
			return mutation{outcome: model.OutcomeConflict, stuck: true}
		default:
			return failed(newOperationError(string(strategy), res))
		}
	})
	return op, err
}

// fleetItem is one local branch in an update-all sweep. report is set when
// the branch needs no mutation.
type fleetItem struct {
	name     string
	upstream string
	behind   int
	report   *model.BranchReport
}

func (e *Engine) planFleet(ctx context.Context, wt *Worktree, branches []model.Branch, concurrency int) []fleetItem {
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	items := make([]fleetItem, len(branches))

	if concurrency <= 0 {
		concurrency = 4
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(concurrency)
	for i, b := range branches {
		items[i] = fleetItem{name: b.Name, upstream: b.Upstream}
		switch {
		case !b.HasRemoteTracking || b.Upstream == "":
			items[i].report = &model.BranchReport{Branch: b.Name, Result: model.BranchSkipped, Detail: "no upstream"}
			continue
		case b.UpstreamStatus == model.UpstreamGone:
			items[i].report = &model.BranchReport{Branch: b.Name, Result: model.BranchSkipped, Detail: "upstream gone"}
			continue
		}
		eg.Go(func() error {
			behind, err := wt.VCS.BehindCount(egCtx, wt.Dir, b.Name, b.Upstream)
			switch {
			case err != nil:
				items[i].report = &model.BranchReport{Branch: b.Name, Result: model.BranchFailed, Detail: err.Error()}
			case behind == 0:
				items[i].report = &model.BranchReport{Branch: b.Name, Result: model.BranchUpToDate}
			default:
				items[i].behind = behind
			}
			return nil
		})
	}
	_ = eg.Wait()
	return items
}

// UpdateAll updates every local branch that tracks an upstream, then
// returns to the branch the user started on. Conflicting branches are
// aborted and reported; the sweep continues past them.
func (e *Engine) UpdateAll(ctx context.Context, wt *Worktree, opts UpdateOptions) (*model.SyncOperation, error) {
	op := newOperation(model.OpUpdateAll)

	original, err := e.currentBranch(ctx, wt)
	if err != nil {
		return refuse(op, err)
	}
	op.SourceBranch = original
	if err := e.requireRemote(ctx, wt, e.cfg.Remote); err != nil {
		return refuse(op, err)
	}
	strategy := e.cfg.StrategyFor(opts.NoRebase)

	err = e.guarded(ctx, wt, op, "update-all", func(ctx context.Context) mutation {
		if res := wt.VCS.Fetch(ctx, wt.Dir, e.cfg.Remote); !res.OK {
			return failed(newOperationError("fetch", res))
		}
		branches, err := wt.VCS.ListLocalBranches(ctx, wt.Dir)
		if err != nil {
			return failed(err)
		}

		at := original
		for _, item := range e.planFleet(ctx, wt, branches, opts.Concurrency) {
			op.Branches = append(op.Branches, item.name)
			if item.report != nil {
				op.Reports = append(op.Reports, *item.report)
				continue
			}
			if at != item.name {
				if res := wt.VCS.Checkout(ctx, wt.Dir, item.name); !res.OK {
					op.Reports = append(op.Reports, model.BranchReport{
						Branch: item.name, Result: model.BranchFailed,
						Detail: "checkout failed: " + firstLine(res.Output),
					})
					continue
				}
				at = item.name
			}
			e.step(op, "updating %s from %s", item.name, item.upstream)

			res, conflicted := e.integrate(ctx, wt, strategy, item.upstream)
			switch {
			case res.OK:
				op.Reports = append(op.Reports, model.BranchReport{
					Branch: item.name, Result: model.BranchUpdated,
					Detail: fmt.Sprintf("%d new commit(s)", item.behind),
				})
			case conflicted:
				if ab := e.abort(ctx, wt, strategy); !ab.OK {
					op.Reports = append(op.Reports, model.BranchReport{
						Branch: item.name, Result: model.BranchFailed, Conflict: true,
						Detail: "conflict; abort failed: " + firstLine(ab.Output),
					})
					op.Message = fmt.Sprintf("stopped at %s: %s hit conflicts and could not be aborted", item.name, strategy)
					op.Remediation = append(conflictSteps(strategy), "git checkout "+original)
					return mutation{outcome: model.OutcomeConflict, stuck: true}
				}
				op.Reports = append(op.Reports, model.BranchReport{
					Branch: item.name, Result: model.BranchFailed, Conflict: true,
					Detail: fmt.Sprintf("conflicts with %s; %s aborted", item.upstream, strategy),
				})
			default:
				op.Reports = append(op.Reports, model.BranchReport{
					Branch: item.name, Result: model.BranchFailed,
					Detail: firstLine(res.Output),
				})
			}
		}

		if at != original {
			if res := wt.VCS.Checkout(ctx, wt.Dir, original); !res.OK {
				op.Remediation = append(op.Remediation, "git checkout "+original)
				return mutation{outcome: model.OutcomeFailure, stuck: true, err: newOperationError("checkout", res)}
			}
		}

		op.Message = fleetSummary(op)
		if op.Count(model.BranchFailed) > 0 {
			return mutation{outcome: model.OutcomeFailure}
		}
		return succeeded()
	})
	return op, err
}

func fleetSummary(op *model.SyncOperation) string {
	return fmt.Sprintf("%d updated, %d up to date, %d skipped, %d failed",
		op.Count(model.BranchUpdated),
		op.Count(model.BranchUpToDate),
		op.Count(model.BranchSkipped),
		op.Count(model.BranchFailed))
}
