// Package engine sequences the branch workflows: checkout, update,
// update-all, merge-from, prune, and reset. Each workflow composes the stash
// coordinator and branch classifier around calls to the VCS facade, and
// records what happened in a model.SyncOperation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/skaphos/branchkeeper/internal/config"
	"github.com/skaphos/branchkeeper/internal/gitx"
	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/prompt"
	"github.com/skaphos/branchkeeper/internal/stash"
	"github.com/skaphos/branchkeeper/internal/vcs"
)

// StepCallback is invoked as a workflow makes progress. Callbacks run on the
// workflow goroutine, so callers can write terminal output directly.
type StepCallback func(op *model.SyncOperation, message string)

// Engine is the core orchestrator for BranchKeeper workflows.
type Engine struct {
	cfg       *config.Config
	adapter   vcs.Adapter
	decider   prompt.Decider
	conflicts gitx.ConflictClassifier
	onStep    StepCallback
	now       func() time.Time
}

// New creates an Engine. A nil cfg uses defaults, a nil adapter shells out
// to git, and a nil decider answers yes to every confirmation.
func New(cfg *config.Config, adapter vcs.Adapter, decider prompt.Decider) *Engine {
	if cfg == nil {
		def := config.DefaultConfig()
		cfg = &def
	}
	if adapter == nil {
		adapter = vcs.NewGitAdapter(nil)
	}
	if decider == nil {
		decider = prompt.Auto{}
	}
	return &Engine{
		cfg:       cfg,
		adapter:   adapter,
		decider:   decider,
		conflicts: gitx.NewMarkerClassifier(cfg.ConflictMarkers...),
		now:       time.Now,
	}
}

// Config returns the engine configuration reference.
func (e *Engine) Config() *config.Config { return e.cfg }

// Adapter returns the engine VCS adapter.
func (e *Engine) Adapter() vcs.Adapter { return e.adapter }

// SetConflictClassifier replaces the marker-based conflict detection.
func (e *Engine) SetConflictClassifier(c gitx.ConflictClassifier) {
	if c != nil {
		e.conflicts = c
	}
}

// OnStep registers a progress callback.
func (e *Engine) OnStep(cb StepCallback) { e.onStep = cb }

// SetClock pins the time used for save-point labels.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Open resolves dir to its working tree and returns the handle workflows
// mutate through.
func (e *Engine) Open(ctx context.Context, dir string) (*Worktree, error) {
	ok, err := e.adapter.IsRepository(ctx, dir)
	if err != nil || !ok {
		return nil, &PreflightError{Reason: ReasonNotRepository, Subject: dir, Err: err}
	}
	top, err := e.adapter.TopLevel(ctx, dir)
	if err != nil {
		return nil, &PreflightError{Reason: ReasonNotRepository, Subject: dir, Err: err}
	}
	return newWorktree(top, e.adapter), nil
}

func (e *Engine) coordinator(wt *Worktree) *stash.Coordinator {
	c := stash.NewCoordinator(wt.VCS, wt.Dir)
	c.Prefix = e.cfg.Stash.MessagePrefix
	c.IncludeUntracked = e.cfg.Stash.IncludeUntracked
	c.Conflicts = e.conflicts
	c.Now = e.now
	return c
}

func (e *Engine) step(op *model.SyncOperation, format string, args ...any) {
	if e.onStep != nil {
		e.onStep(op, fmt.Sprintf(format, args...))
	}
}

func newOperation(kind model.OperationKind) *model.SyncOperation {
	op := &model.SyncOperation{Kind: kind}
	op.Enter(model.PhaseIdle)
	return op
}

// refuse ends op before any mutation.
func refuse(op *model.SyncOperation, err error) (*model.SyncOperation, error) {
	op.Outcome = model.OutcomeFailure
	op.Message = err.Error()
	return op, err
}

func (e *Engine) currentBranch(ctx context.Context, wt *Worktree) (string, error) {
	branch, err := wt.VCS.CurrentBranch(ctx, wt.Dir)
	if errors.Is(err, gitx.ErrDetachedHead) {
		return "", &PreflightError{Reason: ReasonDetachedHead, Err: err}
	}
	if err != nil {
		return "", &PreflightError{Reason: ReasonNoCurrentBranch, Err: err}
	}
	return branch, nil
}

func (e *Engine) requireRemote(ctx context.Context, wt *Worktree, name string) error {
	remotes, err := wt.VCS.Remotes(ctx, wt.Dir)
	if err != nil {
		return &PreflightError{Reason: ReasonNoRemote, Subject: name, Err: err}
	}
	for _, r := range remotes {
		if r.Name == name {
			return nil
		}
	}
	return &PreflightError{Reason: ReasonNoRemote, Subject: name}
}

func (e *Engine) upstreamOf(ctx context.Context, wt *Worktree, branch string) (string, error) {
	upstream, err := wt.VCS.UpstreamOf(ctx, wt.Dir, branch)
	if err != nil {
		return "", &PreflightError{Reason: ReasonNoUpstream, Subject: branch, Err: err}
	}
	return upstream, nil
}

// remoteFor picks the remote an upstream ref belongs to, preferring the
// longest matching name, and falls back to the configured remote.
func (e *Engine) remoteFor(ctx context.Context, wt *Worktree, upstream string) string {
	remotes, err := wt.VCS.Remotes(ctx, wt.Dir)
	if err != nil {
		return e.cfg.Remote
	}
	names := make([]string, 0, len(remotes))
	for _, r := range remotes {
		names = append(names, r.Name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	for _, name := range names {
		if strings.HasPrefix(upstream, name+"/") {
			return name
		}
	}
	return e.cfg.Remote
}

// integrate applies strategy to bring onto into the current branch. The
// second result reports a conflict, judged by output text or by git being
// left mid-operation.
func (e *Engine) integrate(ctx context.Context, wt *Worktree, strategy config.Strategy, onto string) (gitx.Result, bool) {
	var res gitx.Result
	if strategy == config.StrategyMerge {
		res = wt.VCS.Merge(ctx, wt.Dir, onto)
	} else {
		res = wt.VCS.Rebase(ctx, wt.Dir, onto)
	}
	if res.OK {
		return res, false
	}
	conflicted := e.conflicts.IsConflict(res.Output) ||
		wt.VCS.RebaseInProgress(ctx, wt.Dir) ||
		wt.VCS.MergeInProgress(ctx, wt.Dir)
	return res, conflicted
}

func (e *Engine) abort(ctx context.Context, wt *Worktree, strategy config.Strategy) gitx.Result {
	if strategy == config.StrategyMerge {
		return wt.VCS.AbortMerge(ctx, wt.Dir)
	}
	return wt.VCS.AbortRebase(ctx, wt.Dir)
}

// mutation is what the work between guard and restore reports.
type mutation struct {
	outcome model.Outcome
	// stuck means the save-point must stay in the stash: git is mid-rebase
	// or mid-merge, or the tree is not where the save-point came from.
	stuck bool
	err   error
}

func succeeded() mutation { return mutation{outcome: model.OutcomeSuccess} }

func failed(err error) mutation { return mutation{outcome: model.OutcomeFailure, err: err} }

// guarded runs fn between a stash guard and its restore, recording the
// state machine in op.Phases.
func (e *Engine) guarded(ctx context.Context, wt *Worktree, op *model.SyncOperation, description string, fn func(context.Context) mutation) error {
	coord := e.coordinator(wt)

	op.Enter(model.PhaseGuarding)
	sp, err := coord.Guard(ctx, description)
	if err != nil {
		op.Outcome = model.OutcomeFailure
		op.Message = err.Error()
		op.Enter(model.PhaseFailed)
		endGuardFailure(op, err)
		return err
	}
	op.SavePoint = sp
	if sp != nil {
		e.step(op, "saved local changes as %s", sp.Reference)
	}

	op.Enter(model.PhaseMutating)
	m := fn(ctx)
	op.Outcome = m.outcome
	switch m.outcome {
	case model.OutcomeSuccess:
		op.Enter(model.PhaseSucceeded)
	case model.OutcomeConflict:
		op.Enter(model.PhaseConflicted)
	default:
		op.Enter(model.PhaseFailed)
	}
	if m.err != nil && op.Message == "" {
		op.Message = m.err.Error()
	}

	if sp == nil {
		if m.stuck {
			op.Enter(model.PhaseNeedsRecovery)
		} else {
			op.Enter(model.PhaseDone)
		}
		return m.err
	}
	if m.stuck {
		op.Remediation = append(op.Remediation, savePointSteps(sp)...)
		op.Enter(model.PhaseNeedsRecovery)
		return m.err
	}

	op.Enter(model.PhaseRestoring)
	rr := coord.Restore(ctx, sp)
	if rr.OK() {
		op.SavePoint = nil
		e.step(op, "restored local changes")
		op.Enter(model.PhaseDone)
		return m.err
	}

	warning := restoreWarning(rr)
	op.Warn(warning)
	op.Remediation = append(op.Remediation, restoreSteps(rr, sp)...)
	op.Enter(model.PhaseNeedsRecovery)
	switch {
	case rr.Outcome == stash.RestoreConflict && op.Outcome == model.OutcomeSuccess:
		op.Outcome = model.OutcomeConflict
	case op.Outcome == model.OutcomeSuccess:
		op.Outcome = model.OutcomeFailure
	}
	var oe *OperationError
	if errors.As(m.err, &oe) {
		oe.RollbackWarnings = append(oe.RollbackWarnings, warning)
	}
	return m.err
}

// endGuardFailure closes an operation whose guard failed. When git accepted
// the push the work may sit in the stash unconfirmed, so the user is told
// how to find it.
func endGuardFailure(op *model.SyncOperation, err error) {
	var ie *stash.IntegrityError
	if errors.As(err, &ie) && ie.Pushed {
		op.Remediation = append(op.Remediation, unverifiedSteps(ie)...)
		op.Enter(model.PhaseNeedsRecovery)
		return
	}
	op.Enter(model.PhaseDone)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
