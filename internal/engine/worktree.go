package engine

import (
	"context"
	"sync"

	"github.com/skaphos/branchkeeper/internal/gitx"
	"github.com/skaphos/branchkeeper/internal/vcs"
)

// Worktree is the handle to the single working copy a workflow mutates.
// Every mutating call made through VCS holds the handle's lock, so two
// mutations can never overlap. The lock is not reentrant.
type Worktree struct {
	// Dir is the top level of the working tree.
	Dir string
	// VCS is the facade workflows must use for this working copy.
	VCS vcs.Adapter
}

func newWorktree(dir string, adapter vcs.Adapter) *Worktree {
	return &Worktree{Dir: dir, VCS: &serialAdapter{Adapter: adapter}}
}

// serialAdapter passes queries straight through and serializes mutations.
type serialAdapter struct {
	vcs.Adapter
	mu sync.Mutex
}

func (s *serialAdapter) serial(fn func() gitx.Result) gitx.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

func (s *serialAdapter) Fetch(ctx context.Context, dir, remote string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.Fetch(ctx, dir, remote) })
}

func (s *serialAdapter) Checkout(ctx context.Context, dir, branch string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.Checkout(ctx, dir, branch) })
}

func (s *serialAdapter) FastForward(ctx context.Context, dir, upstream string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.FastForward(ctx, dir, upstream) })
}

func (s *serialAdapter) Rebase(ctx context.Context, dir, upstream string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.Rebase(ctx, dir, upstream) })
}

func (s *serialAdapter) Merge(ctx context.Context, dir, upstream string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.Merge(ctx, dir, upstream) })
}

func (s *serialAdapter) AbortRebase(ctx context.Context, dir string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.AbortRebase(ctx, dir) })
}

func (s *serialAdapter) AbortMerge(ctx context.Context, dir string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.AbortMerge(ctx, dir) })
}

func (s *serialAdapter) CreateSavePoint(ctx context.Context, dir, message string, includeUntracked bool) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.CreateSavePoint(ctx, dir, message, includeUntracked) })
}

func (s *serialAdapter) RestoreSavePoint(ctx context.Context, dir, ref string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.RestoreSavePoint(ctx, dir, ref) })
}

func (s *serialAdapter) DropSavePoint(ctx context.Context, dir, ref string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.DropSavePoint(ctx, dir, ref) })
}

func (s *serialAdapter) DeleteBranch(ctx context.Context, dir, name string, force bool) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.DeleteBranch(ctx, dir, name, force) })
}

func (s *serialAdapter) ResetHard(ctx context.Context, dir, target string) gitx.Result {
	return s.serial(func() gitx.Result { return s.Adapter.ResetHard(ctx, dir, target) })
}
