// Package branchkeeper contains the Cobra command tree for the BranchKeeper CLI.
package branchkeeper

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skaphos/branchkeeper/internal/config"
	"github.com/skaphos/branchkeeper/internal/engine"
	"github.com/skaphos/branchkeeper/internal/gitx"
	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/prompt"
	"github.com/skaphos/branchkeeper/internal/vcs"
)

var (
	// Global flags
	flagVerbose int
	flagQuiet   bool
	flagConfig  string
	flagNoColor bool
	flagYes     bool
	// colorOutputEnabled is set per command execution based on TTY detection.
	colorOutputEnabled bool
	// exitCode tracks the highest severity observed during a command run.
	exitCode int
	// isTerminalFD is overridable in tests.
	isTerminalFD = term.IsTerminal
	// exitFunc is overridable in tests.
	exitFunc = os.Exit
	// newRunner, stdin, and getwd are overridable in tests.
	newRunner = defaultRunner
	stdin     io.Reader = os.Stdin
	getwd               = os.Getwd
)

var rootCmd = &cobra.Command{
	Use:   "branchkeeper",
	Short: "Safe branch switching, syncing, and cleanup for one git working copy",
	Long: "BranchKeeper wraps checkout, update, merge, reset, and prune so that uncommitted work is saved before git " +
		"touches the tree and put back afterwards. Conflicts are left in place with the exact commands to finish them.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// `NO_COLOR` is a standard opt-out and should behave like --no-color.
		if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
			flagNoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase output verbosity (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "override config file path")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "answer yes to every confirmation")
}

// Execute runs the root command.
func Execute() {
	exitFunc(ExecuteWithExitCode())
}

// ExecuteWithExitCode runs the root command and returns a shell-friendly
// exit code: 0 for success or a declined no-op, 1 otherwise.
func ExecuteWithExitCode() int {
	exitCode = 0
	colorOutputEnabled = false
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return exitCode
}

func raiseExitCode(code int) {
	if code > exitCode {
		exitCode = code
	}
}

func exitCodeFor(op *model.SyncOperation, err error) int {
	if err == nil && op != nil && (op.Outcome == model.OutcomeSuccess || op.Outcome == model.OutcomeDeclined) {
		return 0
	}
	return 1
}

func infof(cmd *cobra.Command, format string, args ...any) {
	if flagQuiet {
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func debugf(cmd *cobra.Command, format string, args ...any) {
	if flagQuiet || flagVerbose <= 0 {
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func warnf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func setColorOutputMode(cmd *cobra.Command) {
	colorOutputEnabled = shouldUseColorOutput(cmd)
}

func shouldUseColorOutput(cmd *cobra.Command) bool {
	if flagNoColor {
		return false
	}
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return isTerminalFD(int(file.Fd()))
}

func defaultRunner(cmd *cobra.Command) gitx.Runner {
	return &gitx.GitRunner{Trace: func(_ string, args []string) {
		debugf(cmd, "$ git %s", strings.Join(args, " "))
	}}
}

func loadConfig() (*config.Config, error) {
	cwd, err := getwd()
	if err != nil {
		return nil, err
	}
	path, err := config.ResolveConfigPath(flagConfig, cwd)
	if err != nil {
		return nil, err
	}
	return config.LoadOrDefault(path)
}

// deciderFor picks how questions are answered: --yes answers them, a
// terminal gets the interactive prompt, anything else reads lines.
func deciderFor(cmd *cobra.Command, cfg *config.Config) prompt.Decider {
	if flagYes {
		return prompt.Auto{}
	}
	if f, ok := stdin.(*os.File); ok && isTerminalFD(int(f.Fd())) {
		return &prompt.Terminal{In: f, Out: cmd.ErrOrStderr(), PageSize: cfg.Checkout.PageSize}
	}
	return &prompt.Line{In: stdin, Out: cmd.ErrOrStderr(), PageSize: cfg.Checkout.PageSize}
}

// workflow runs one engine operation against the opened working copy.
type workflow func(ctx context.Context, eng *engine.Engine, wt *engine.Worktree) (*model.SyncOperation, error)

// runWorkflow loads config, opens the working copy containing the current
// directory, runs fn, and renders its report. Failures of the operation
// itself are reported through the exit code rather than returned.
func runWorkflow(cmd *cobra.Command, configure func(*config.Config), fn workflow) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if configure != nil {
		configure(cfg)
	}
	eng := engine.New(cfg, vcs.NewGitAdapter(newRunner(cmd)), deciderFor(cmd, cfg))
	eng.OnStep(func(_ *model.SyncOperation, msg string) { infof(cmd, "%s", msg) })

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cwd, err := getwd()
	if err != nil {
		return err
	}
	wt, err := eng.Open(ctx, cwd)
	if err != nil {
		return err
	}
	debugf(cmd, "working tree %s", wt.Dir)

	setColorOutputMode(cmd)
	op, err := fn(ctx, eng, wt)
	writeOperation(cmd, op, err)
	raiseExitCode(exitCodeFor(op, err))
	return nil
}
