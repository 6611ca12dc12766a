package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/skaphos/branchkeeper/internal/gitx"
)

var (
	// ErrNoCandidates means checkout found nothing to offer the user.
	ErrNoCandidates = errors.New("no matching branches")
	// ErrBranchNotFound means a named branch exists neither locally nor on
	// the remote.
	ErrBranchNotFound = errors.New("branch not found")
)

// PreflightReason names why a workflow refused to start.
type PreflightReason string

const (
	ReasonNotRepository   PreflightReason = "not-repository"
	ReasonNoCurrentBranch PreflightReason = "no-current-branch"
	ReasonDetachedHead    PreflightReason = "detached-head"
	ReasonNoRemote        PreflightReason = "no-remote"
	ReasonNoUpstream      PreflightReason = "no-upstream"
)

// PreflightError is returned before any mutation has been attempted.
type PreflightError struct {
	Reason PreflightReason
	// Subject is the directory, branch, or remote the check was about.
	Subject string
	Err     error
}

func (e *PreflightError) Error() string {
	var msg string
	switch e.Reason {
	case ReasonNotRepository:
		msg = fmt.Sprintf("%s is not inside a git working tree", e.Subject)
	case ReasonNoCurrentBranch:
		msg = "could not determine the current branch"
	case ReasonDetachedHead:
		msg = "HEAD is detached; check out a branch first"
	case ReasonNoRemote:
		msg = fmt.Sprintf("remote %q is not configured", e.Subject)
	case ReasonNoUpstream:
		msg = fmt.Sprintf("branch %q has no upstream; set one with git branch --set-upstream-to", e.Subject)
	default:
		msg = string(e.Reason)
	}
	if e.Err != nil && e.Reason == ReasonNoCurrentBranch {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *PreflightError) Unwrap() error { return e.Err }

// OperationError is a mutating git call that failed for a reason other than
// a content conflict.
type OperationError struct {
	// Op is the git subcommand, for example "checkout" or "rebase".
	Op       string
	Output   string
	ExitCode int
	Err      error
	// RollbackWarnings lists problems hit while undoing partial work.
	RollbackWarnings []string
}

func newOperationError(op string, res gitx.Result) *OperationError {
	return &OperationError{Op: op, Output: res.Output, ExitCode: res.ExitCode, Err: res.Err}
}

func (e *OperationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "git %s failed", e.Op)
	if e.ExitCode != 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, ": %s", out)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, w := range e.RollbackWarnings {
		fmt.Fprintf(&b, "; rollback: %s", w)
	}
	return b.String()
}

func (e *OperationError) Unwrap() error { return e.Err }

// Class buckets the failure using the same heuristics as fetch errors.
func (e *OperationError) Class() string {
	text := e.Output
	if e.Err != nil {
		text += " " + e.Err.Error()
	}
	return gitx.ClassifyError(errors.New(text))
}
