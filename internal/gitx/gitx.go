// Package gitx provides helpers for executing git commands and parsing
// their output. It shells out to the installed git binary.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/skaphos/branchkeeper/internal/model"
)

var (
	// ErrDetachedHead is returned when HEAD does not point at a branch.
	ErrDetachedHead = errors.New("HEAD is detached")
	// ErrNoUpstream is returned when a branch has no configured upstream.
	ErrNoUpstream = errors.New("no upstream configured")
)

// Runner executes git commands in a given repo directory.
// This interface allows mocking in tests.
type Runner interface {
	// Run executes a git command in the given directory and returns
	// combined stdout/stderr output. A non-zero exit is reported as an
	// error whose ExitCode method returns the exit status.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// GitRunner is the default Runner implementation that shells out to git.
type GitRunner struct {
	// GitBin is the path to the git binary. Defaults to "git".
	GitBin string
	// Trace, when set, is called before every invocation.
	Trace func(dir string, args []string)
}

// Run executes a git command.
func (g *GitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := g.GitBin
	if bin == "" {
		bin = "git"
	}
	if g.Trace != nil {
		g.Trace(dir, args)
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Conflict and error classification match on English output.
	cmd.Env = append(os.Environ(), "LC_ALL=C")
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Result is the structured outcome of a mutating git call. A non-zero exit
// is a normal, expected outcome and is never returned as a Go error.
type Result struct {
	OK       bool
	Output   string
	ExitCode int
	// Err holds the underlying process error when OK is false.
	Err error
}

// Exec runs git and folds the outcome into a Result.
func Exec(ctx context.Context, r Runner, dir string, args ...string) Result {
	out, err := r.Run(ctx, dir, args...)
	if err == nil {
		return Result{OK: true, Output: out}
	}
	return Result{Output: out, ExitCode: ExitCode(err), Err: err}
}

// ExitCode extracts the process exit status from err. It returns 0 for nil,
// -1 for cancellation, and 1 when no status is available.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return -1
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

// ExitError is a Runner error carrying an exit status. Test runners use it
// to simulate git failures.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode returns the simulated exit status.
func (e *ExitError) ExitCode() int { return e.Code }

// IsRepo checks whether the given path is inside a git working tree.
func IsRepo(ctx context.Context, r Runner, dir string) (bool, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false, nil
	}
	return strings.TrimSpace(out) == "true", nil
}

// TopLevel returns the root of the working tree containing dir.
func TopLevel(ctx context.Context, r Runner, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("git rev-parse --show-toplevel: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Remotes returns all configured remotes for the repo.
func Remotes(ctx context.Context, r Runner, dir string) ([]model.Remote, error) {
	out, err := r.Run(ctx, dir, "remote")
	if err != nil {
		return nil, fmt.Errorf("git remote: %w", err)
	}
	if strings.TrimSpace(out) == "" {
		return nil, nil
	}
	names := strings.Split(strings.TrimSpace(out), "\n")
	var remotes []model.Remote
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		url, err := r.Run(ctx, dir, "remote", "get-url", name)
		if err != nil {
			continue
		}
		remotes = append(remotes, model.Remote{
			Name: name,
			URL:  strings.TrimSpace(url),
		})
	}
	return remotes, nil
}

// CurrentBranch returns the checked-out branch name. A detached HEAD is
// reported as ErrDetachedHead.
func CurrentBranch(ctx context.Context, r Runner, dir string) (string, error) {
	out, err := r.Run(ctx, dir, "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		return "", ErrDetachedHead
	}
	branch := strings.TrimSpace(out)
	if branch == "" {
		return "", ErrDetachedHead
	}
	return branch, nil
}

// HasUncommittedChanges reports unstaged modifications to tracked files.
func HasUncommittedChanges(ctx context.Context, r Runner, dir string) (bool, error) {
	return diffQuiet(ctx, r, dir, "diff", "--quiet")
}

// HasStagedChanges reports changes staged in the index.
func HasStagedChanges(ctx context.Context, r Runner, dir string) (bool, error) {
	return diffQuiet(ctx, r, dir, "diff", "--cached", "--quiet")
}

// HasUntrackedFiles reports untracked, non-ignored files.
func HasUntrackedFiles(ctx context.Context, r Runner, dir string) (bool, error) {
	out, err := r.Run(ctx, dir, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return false, fmt.Errorf("git ls-files: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}

// diffQuiet interprets `git diff --quiet` exit codes: 0 clean, 1 changed.
func diffQuiet(ctx context.Context, r Runner, dir string, args ...string) (bool, error) {
	_, err := r.Run(ctx, dir, args...)
	if err == nil {
		return false, nil
	}
	if ExitCode(err) == 1 {
		return true, nil
	}
	return false, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
}

// RebaseInProgress reports whether a rebase stopped mid-way.
func RebaseInProgress(ctx context.Context, r Runner, dir string) bool {
	_, err := r.Run(ctx, dir, "rev-parse", "-q", "--verify", "REBASE_HEAD")
	return err == nil
}

// MergeInProgress reports whether a merge is awaiting a commit.
func MergeInProgress(ctx context.Context, r Runner, dir string) bool {
	_, err := r.Run(ctx, dir, "rev-parse", "-q", "--verify", "MERGE_HEAD")
	return err == nil
}

// Fetch runs a fetch of a single remote with submodule recursion disabled.
// Stale remote-tracking refs are kept so classification can report them.
func Fetch(ctx context.Context, r Runner, dir, remote string) Result {
	return Exec(ctx, r, dir, "-c", "fetch.recurseSubmodules=false", "fetch", "--no-recurse-submodules", remote)
}

// Checkout switches to branch. Remote-only names are resolved by git's
// checkout DWIM into a new tracking branch.
func Checkout(ctx context.Context, r Runner, dir, branch string) Result {
	return Exec(ctx, r, dir, "checkout", branch)
}

// FastForward advances the current branch to upstream without a merge commit.
func FastForward(ctx context.Context, r Runner, dir, upstream string) Result {
	return Exec(ctx, r, dir, "merge", "--ff-only", upstream)
}

// Rebase rebases the current branch onto upstream.
func Rebase(ctx context.Context, r Runner, dir, upstream string) Result {
	return Exec(ctx, r, dir, "rebase", upstream)
}

// Merge merges upstream into the current branch.
func Merge(ctx context.Context, r Runner, dir, upstream string) Result {
	return Exec(ctx, r, dir, "merge", "--no-edit", upstream)
}

// AbortRebase abandons an in-progress rebase.
func AbortRebase(ctx context.Context, r Runner, dir string) Result {
	return Exec(ctx, r, dir, "rebase", "--abort")
}

// AbortMerge abandons an in-progress merge.
func AbortMerge(ctx context.Context, r Runner, dir string) Result {
	return Exec(ctx, r, dir, "merge", "--abort")
}

// ResetHard moves the current branch and working tree to target.
func ResetHard(ctx context.Context, r Runner, dir, target string) Result {
	return Exec(ctx, r, dir, "reset", "--hard", target)
}
