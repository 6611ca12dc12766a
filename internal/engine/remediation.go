package engine

import (
	"fmt"

	"github.com/skaphos/branchkeeper/internal/config"
	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/stash"
)

// conflictSteps tells the user how to finish or abandon a stopped rebase or
// merge.
func conflictSteps(strategy config.Strategy) []string {
	steps := []string{
		"git status  (lists the conflicted files)",
		"edit each conflicted file, then git add <file>",
	}
	if strategy == config.StrategyMerge {
		return append(steps, "git commit  (or git merge --abort to give up)")
	}
	return append(steps, "git rebase --continue  (or git rebase --abort to give up)")
}

// savePointSteps tells the user how to bring back work held in sp once the
// branch is clean again.
func savePointSteps(sp *model.SavePoint) []string {
	if sp == nil {
		return nil
	}
	return []string{
		fmt.Sprintf("git stash list  (your uncommitted changes are saved as %q)", sp.Message),
		fmt.Sprintf("git stash pop %s  once the branch is clean", sp.Reference),
	}
}

func restoreWarning(rr stash.RestoreResult) string {
	switch rr.Outcome {
	case stash.RestoreConflict:
		return fmt.Sprintf("restoring %s hit conflicts; the save-point was kept", rr.Reference)
	default:
		detail := firstLine(rr.Output)
		if detail == "" && rr.Err != nil {
			detail = rr.Err.Error()
		}
		if detail == "" {
			return "restoring local changes failed"
		}
		return "restoring local changes failed: " + detail
	}
}

func restoreSteps(rr stash.RestoreResult, sp *model.SavePoint) []string {
	ref := rr.Reference
	if ref == "" {
		ref = sp.Reference
	}
	if rr.Outcome == stash.RestoreConflict {
		return []string{
			"git status  (lists files where your changes collided)",
			"edit each conflicted file, then git add <file>",
			fmt.Sprintf("git stash drop %s  once your changes are back in place", ref),
		}
	}
	return []string{
		fmt.Sprintf("git stash list  (look for %q)", sp.Message),
		fmt.Sprintf("git stash pop %s", ref),
	}
}

// unverifiedSteps tells the user how to find work pushed to the stash by a
// save-point that could not be confirmed.
func unverifiedSteps(ie *stash.IntegrityError) []string {
	return []string{
		fmt.Sprintf("git stash list  (look for an entry labelled %q)", ie.Message),
		"git stash pop <ref>  of that entry to bring your uncommitted changes back",
	}
}
