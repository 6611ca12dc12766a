package branchkeeper

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skaphos/branchkeeper/internal/engine"
	"github.com/skaphos/branchkeeper/internal/model"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Bring the current branch up to date with its upstream",
	Long:  "Fetches, then rebases (or merges with --no-rebase) the current branch onto its upstream with local changes saved around it.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		noRebase, _ := cmd.Flags().GetBool("no-rebase")
		return runWorkflow(cmd, nil, func(ctx context.Context, eng *engine.Engine, wt *engine.Worktree) (*model.SyncOperation, error) {
			return eng.Update(ctx, wt, engine.UpdateOptions{NoRebase: noRebase})
		})
	},
}

var updateAllCmd = &cobra.Command{
	Use:   "update-all",
	Short: "Update every local branch that tracks an upstream",
	Long: "Fetches once, then walks each branch that is behind its upstream. Branches that conflict are aborted and " +
		"reported, and the original branch is checked out again at the end.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		noRebase, _ := cmd.Flags().GetBool("no-rebase")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		return runWorkflow(cmd, nil, func(ctx context.Context, eng *engine.Engine, wt *engine.Worktree) (*model.SyncOperation, error) {
			return eng.UpdateAll(ctx, wt, engine.UpdateOptions{NoRebase: noRebase, Concurrency: concurrency})
		})
	},
}

func init() {
	addNoRebaseFlag(updateCmd)
	addNoRebaseFlag(updateAllCmd)
	updateAllCmd.Flags().Int("concurrency", 0, "max concurrent read-only branch queries (0 = default)")

	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(updateAllCmd)
}
