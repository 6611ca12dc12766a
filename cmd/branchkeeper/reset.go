package branchkeeper

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skaphos/branchkeeper/internal/engine"
	"github.com/skaphos/branchkeeper/internal/model"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Point the current branch at its upstream",
	Long: "Hard-resets the current branch to its upstream after confirmation. Uncommitted changes are saved to the " +
		"stash first unless --force is given; the save-point is kept for you to pop.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")
		clearStashes, _ := cmd.Flags().GetBool("clear-stashes")
		return runWorkflow(cmd, nil, func(ctx context.Context, eng *engine.Engine, wt *engine.Worktree) (*model.SyncOperation, error) {
			return eng.Reset(ctx, wt, engine.ResetOptions{Force: force, ClearStashes: clearStashes})
		})
	},
}

func init() {
	resetCmd.Flags().Bool("force", false, forceResetUsage)
	resetCmd.Flags().Bool("clear-stashes", false, clearStashesUsage)

	rootCmd.AddCommand(resetCmd)
}
