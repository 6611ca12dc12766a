package gitx

import (
	"context"
	"fmt"

	"github.com/skaphos/branchkeeper/internal/model"
)

const stashListFormat = "--format=%gd|%s"

// StashList returns stash entries, newest first.
func StashList(ctx context.Context, r Runner, dir string) ([]model.StashEntry, error) {
	out, err := r.Run(ctx, dir, "stash", "list", stashListFormat)
	if err != nil {
		return nil, fmt.Errorf("git stash list: %w", err)
	}
	return ParseStashList(out), nil
}

// StashPush stores local changes under message. With includeUntracked the
// stash also captures untracked files.
func StashPush(ctx context.Context, r Runner, dir, message string, includeUntracked bool) Result {
	args := []string{"stash", "push"}
	if includeUntracked {
		args = append(args, "--include-untracked")
	}
	args = append(args, "-m", message)
	return Exec(ctx, r, dir, args...)
}

// StashPop applies ref and drops it when the apply is clean. On conflict git
// keeps the entry.
func StashPop(ctx context.Context, r Runner, dir, ref string) Result {
	return Exec(ctx, r, dir, "stash", "pop", ref)
}

// StashDrop deletes ref without applying it.
func StashDrop(ctx context.Context, r Runner, dir, ref string) Result {
	return Exec(ctx, r, dir, "stash", "drop", ref)
}
