// Package vcs defines the version-control facade BranchKeeper orchestrates.
// Queries return typed values; mutations return a gitx.Result and never
// treat a non-zero exit as a Go error.
package vcs

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/skaphos/branchkeeper/internal/gitx"
	"github.com/skaphos/branchkeeper/internal/model"
)

// Adapter defines the VCS operations BranchKeeper relies on.
type Adapter interface {
	Name() string

	IsRepository(ctx context.Context, dir string) (bool, error)
	TopLevel(ctx context.Context, dir string) (string, error)
	CurrentBranch(ctx context.Context, dir string) (string, error)
	WorkingTreeStatus(ctx context.Context, dir string) (model.WorkingTreeStatus, error)
	Remotes(ctx context.Context, dir string) ([]model.Remote, error)
	ListLocalBranches(ctx context.Context, dir string) ([]model.Branch, error)
	ListRemoteTrackingBranches(ctx context.Context, dir, remote string) ([]string, error)
	ListLiveRemoteBranches(ctx context.Context, dir, remote string) ([]string, error)
	BranchExists(ctx context.Context, dir, name string) bool
	UpstreamOf(ctx context.Context, dir, branch string) (string, error)
	BehindCount(ctx context.Context, dir, local, upstream string) (int, error)
	ListSavePoints(ctx context.Context, dir string) ([]model.StashEntry, error)
	RebaseInProgress(ctx context.Context, dir string) bool
	MergeInProgress(ctx context.Context, dir string) bool

	Fetch(ctx context.Context, dir, remote string) gitx.Result
	Checkout(ctx context.Context, dir, branch string) gitx.Result
	FastForward(ctx context.Context, dir, upstream string) gitx.Result
	Rebase(ctx context.Context, dir, upstream string) gitx.Result
	Merge(ctx context.Context, dir, upstream string) gitx.Result
	AbortRebase(ctx context.Context, dir string) gitx.Result
	AbortMerge(ctx context.Context, dir string) gitx.Result
	CreateSavePoint(ctx context.Context, dir, message string, includeUntracked bool) gitx.Result
	RestoreSavePoint(ctx context.Context, dir, ref string) gitx.Result
	DropSavePoint(ctx context.Context, dir, ref string) gitx.Result
	DeleteBranch(ctx context.Context, dir, name string, force bool) gitx.Result
	ResetHard(ctx context.Context, dir, target string) gitx.Result
}

// GitAdapter implements Adapter using the git CLI via gitx.
type GitAdapter struct {
	Runner gitx.Runner
}

func NewGitAdapter(runner gitx.Runner) *GitAdapter {
	if runner == nil {
		runner = &gitx.GitRunner{}
	}
	return &GitAdapter{Runner: runner}
}

func (g *GitAdapter) Name() string { return "git" }

func (g *GitAdapter) IsRepository(ctx context.Context, dir string) (bool, error) {
	return gitx.IsRepo(ctx, g.Runner, dir)
}

func (g *GitAdapter) TopLevel(ctx context.Context, dir string) (string, error) {
	return gitx.TopLevel(ctx, g.Runner, dir)
}

func (g *GitAdapter) CurrentBranch(ctx context.Context, dir string) (string, error) {
	return gitx.CurrentBranch(ctx, g.Runner, dir)
}

// WorkingTreeStatus probes unstaged, staged, and untracked state
// concurrently. The probes are read-only and independent.
func (g *GitAdapter) WorkingTreeStatus(ctx context.Context, dir string) (model.WorkingTreeStatus, error) {
	var status model.WorkingTreeStatus
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		v, err := gitx.HasUncommittedChanges(egCtx, g.Runner, dir)
		status.HasUncommittedChanges = v
		return err
	})
	eg.Go(func() error {
		v, err := gitx.HasStagedChanges(egCtx, g.Runner, dir)
		status.HasStagedChanges = v
		return err
	})
	eg.Go(func() error {
		v, err := gitx.HasUntrackedFiles(egCtx, g.Runner, dir)
		status.HasUntrackedFiles = v
		return err
	})
	if err := eg.Wait(); err != nil {
		return model.WorkingTreeStatus{}, err
	}
	return status, nil
}

func (g *GitAdapter) Remotes(ctx context.Context, dir string) ([]model.Remote, error) {
	return gitx.Remotes(ctx, g.Runner, dir)
}

func (g *GitAdapter) ListLocalBranches(ctx context.Context, dir string) ([]model.Branch, error) {
	return gitx.LocalBranches(ctx, g.Runner, dir)
}

func (g *GitAdapter) ListRemoteTrackingBranches(ctx context.Context, dir, remote string) ([]string, error) {
	return gitx.RemoteTrackingBranches(ctx, g.Runner, dir, remote)
}

func (g *GitAdapter) ListLiveRemoteBranches(ctx context.Context, dir, remote string) ([]string, error) {
	return gitx.LiveRemoteBranches(ctx, g.Runner, dir, remote)
}

func (g *GitAdapter) BranchExists(ctx context.Context, dir, name string) bool {
	return gitx.BranchExists(ctx, g.Runner, dir, name)
}

func (g *GitAdapter) UpstreamOf(ctx context.Context, dir, branch string) (string, error) {
	return gitx.UpstreamOf(ctx, g.Runner, dir, branch)
}

func (g *GitAdapter) BehindCount(ctx context.Context, dir, local, upstream string) (int, error) {
	return gitx.BehindCount(ctx, g.Runner, dir, local, upstream)
}

func (g *GitAdapter) ListSavePoints(ctx context.Context, dir string) ([]model.StashEntry, error) {
	return gitx.StashList(ctx, g.Runner, dir)
}

func (g *GitAdapter) RebaseInProgress(ctx context.Context, dir string) bool {
	return gitx.RebaseInProgress(ctx, g.Runner, dir)
}

func (g *GitAdapter) MergeInProgress(ctx context.Context, dir string) bool {
	return gitx.MergeInProgress(ctx, g.Runner, dir)
}

func (g *GitAdapter) Fetch(ctx context.Context, dir, remote string) gitx.Result {
	return gitx.Fetch(ctx, g.Runner, dir, remote)
}

func (g *GitAdapter) Checkout(ctx context.Context, dir, branch string) gitx.Result {
	return gitx.Checkout(ctx, g.Runner, dir, branch)
}

func (g *GitAdapter) FastForward(ctx context.Context, dir, upstream string) gitx.Result {
	return gitx.FastForward(ctx, g.Runner, dir, upstream)
}

func (g *GitAdapter) Rebase(ctx context.Context, dir, upstream string) gitx.Result {
	return gitx.Rebase(ctx, g.Runner, dir, upstream)
}

func (g *GitAdapter) Merge(ctx context.Context, dir, upstream string) gitx.Result {
	return gitx.Merge(ctx, g.Runner, dir, upstream)
}

func (g *GitAdapter) AbortRebase(ctx context.Context, dir string) gitx.Result {
	return gitx.AbortRebase(ctx, g.Runner, dir)
}

func (g *GitAdapter) AbortMerge(ctx context.Context, dir string) gitx.Result {
	return gitx.AbortMerge(ctx, g.Runner, dir)
}

func (g *GitAdapter) CreateSavePoint(ctx context.Context, dir, message string, includeUntracked bool) gitx.Result {
	return gitx.StashPush(ctx, g.Runner, dir, message, includeUntracked)
}

func (g *GitAdapter) RestoreSavePoint(ctx context.Context, dir, ref string) gitx.Result {
	return gitx.StashPop(ctx, g.Runner, dir, ref)
}

func (g *GitAdapter) DropSavePoint(ctx context.Context, dir, ref string) gitx.Result {
	return gitx.StashDrop(ctx, g.Runner, dir, ref)
}

func (g *GitAdapter) DeleteBranch(ctx context.Context, dir, name string, force bool) gitx.Result {
	return gitx.DeleteBranch(ctx, g.Runner, dir, name, force)
}

func (g *GitAdapter) ResetHard(ctx context.Context, dir, target string) gitx.Result {
	return gitx.ResetHard(ctx, g.Runner, dir, target)
}
