package branchkeeper

import "github.com/spf13/cobra"

const (
	noRebaseUsage        = "integrate with merge instead of rebase"
	forceDeleteUsage     = "delete branches even when git reports them unmerged"
	forceResetUsage      = "discard uncommitted changes instead of saving them"
	remoteUsage          = "remote to classify against (defaults to the configured remote)"
	includeOrphanedUsage = "also offer local branches that never had an upstream"
	protectedUsage       = "comma-separated glob patterns to protect for this run, in addition to the configured ones"
	clearStashesUsage    = "also drop save-points left behind by earlier runs"
	rebaseUsage          = "rebase the current branch onto the source instead of merging"
)

func addNoRebaseFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-rebase", false, noRebaseUsage)
}
