package branchkeeper

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skaphos/branchkeeper/internal/engine"
	"github.com/skaphos/branchkeeper/internal/model"
)

var mergeFromCmd = &cobra.Command{
	Use:     "merge-from <branch>",
	Aliases: []string{"absorb", "pull-from"},
	Short:   "Bring another branch into the current one",
	Long: "Updates the current branch and the source branch from their upstreams, then merges the source into the " +
		"current branch (or rebases onto it with --rebase). Local changes are saved around the whole sequence.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rebase, _ := cmd.Flags().GetBool("rebase")
		source := args[0]
		return runWorkflow(cmd, nil, func(ctx context.Context, eng *engine.Engine, wt *engine.Worktree) (*model.SyncOperation, error) {
			return eng.MergeFrom(ctx, wt, source, engine.MergeFromOptions{Rebase: rebase})
		})
	},
}

func init() {
	mergeFromCmd.Flags().Bool("rebase", false, rebaseUsage)

	rootCmd.AddCommand(mergeFromCmd)
}
