package branchkeeper

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skaphos/branchkeeper/internal/config"
	"github.com/skaphos/branchkeeper/internal/engine"
	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/strutil"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete local branches whose upstream is gone",
	Long: "Classifies local branches against the live remote and, after confirmation, deletes the ones whose upstream " +
		"no longer exists. Protected branches and the current branch are never deleted. When the remote cannot be " +
		"reached, stale branches are listed but left alone.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")
		remote, _ := cmd.Flags().GetString("remote")
		orphaned, _ := cmd.Flags().GetBool("include-orphaned")
		protected, _ := cmd.Flags().GetString("protected")
		extra := strutil.SplitCSV(protected)

		configure := func(cfg *config.Config) {
			cfg.ProtectedBranches = append(cfg.ProtectedBranches, extra...)
		}
		return runWorkflow(cmd, configure, func(ctx context.Context, eng *engine.Engine, wt *engine.Worktree) (*model.SyncOperation, error) {
			return eng.Prune(ctx, wt, engine.PruneOptions{Force: force, Remote: remote, IncludeOrphaned: orphaned})
		})
	},
}

func init() {
	pruneCmd.Flags().Bool("force", false, forceDeleteUsage)
	pruneCmd.Flags().String("remote", "", remoteUsage)
	pruneCmd.Flags().Bool("include-orphaned", false, includeOrphanedUsage)
	pruneCmd.Flags().String("protected", "", protectedUsage)

	rootCmd.AddCommand(pruneCmd)
}
