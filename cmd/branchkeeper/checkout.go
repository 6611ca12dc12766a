package branchkeeper

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skaphos/branchkeeper/internal/engine"
	"github.com/skaphos/branchkeeper/internal/model"
)

var checkoutCmd = &cobra.Command{
	Use:     "checkout [branch]",
	Aliases: []string{"co", "switch"},
	Short:   "Switch branches, keeping uncommitted work",
	Long: "Saves local changes, switches to the named branch, fast-forwards it when possible, and puts the changes back. " +
		"An unknown or missing name offers the closest matches to pick from.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		return runWorkflow(cmd, nil, func(ctx context.Context, eng *engine.Engine, wt *engine.Worktree) (*model.SyncOperation, error) {
			return eng.Checkout(ctx, wt, query)
		})
	},
}

func init() {
	rootCmd.AddCommand(checkoutCmd)
}
