// Package stash makes risky working-copy mutations safe for uncommitted
// work. A Coordinator snapshots local changes into a verified save-point
// before the mutation and restores it afterwards.
package stash

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/skaphos/branchkeeper/internal/gitx"
	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/vcs"
)

// DefaultPrefix starts every save-point message this tool writes.
const DefaultPrefix = "branchkeeper-autostash"

var (
	// ErrUnverified is wrapped by every IntegrityError.
	ErrUnverified = errors.New("save-point could not be verified")
	// ErrSavePointMissing is returned when a save-point can no longer be
	// found by its message.
	ErrSavePointMissing = errors.New("save-point not found")
)

// IntegrityError reports that a save-point was not created or could not be
// confirmed. The guarded mutation must not run.
type IntegrityError struct {
	Message string
	Before  int
	After   int
	Output  string
	Err     error
	// Pushed is true when git accepted the push, so the work may already be
	// in the stash even though it could not be confirmed.
	Pushed bool
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "save-point %q could not be verified", e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	} else {
		fmt.Fprintf(&b, " (stash count %d -> %d)", e.Before, e.After)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, ": %s", out)
	}
	return b.String()
}

func (e *IntegrityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUnverified}
	}
	return []error{ErrUnverified, e.Err}
}

// RestoreOutcome classifies a restore attempt.
type RestoreOutcome string

const (
	RestoreSkipped  RestoreOutcome = "skipped"
	RestoreSuccess  RestoreOutcome = "success"
	RestoreConflict RestoreOutcome = "conflict"
	RestoreFailure  RestoreOutcome = "failure"
)

// RestoreResult is the outcome of Restore.
type RestoreResult struct {
	Outcome RestoreOutcome
	// Reference is the stash ref that was popped, resolved at restore time.
	Reference string
	Output    string
	Err       error
}

// OK reports whether the caller can consider local work back in place.
func (r RestoreResult) OK() bool {
	return r.Outcome == RestoreSuccess || r.Outcome == RestoreSkipped
}

// Coordinator guards mutations of a single working copy.
type Coordinator struct {
	Adapter vcs.Adapter
	Dir     string
	// Prefix starts every save-point message. Defaults to DefaultPrefix.
	Prefix string
	// IncludeUntracked asks for untracked files to be captured too.
	IncludeUntracked bool
	// Conflicts decides whether a failed restore is a conflict.
	Conflicts gitx.ConflictClassifier
	// Now and PID feed the save-point message; tests pin them.
	Now func() time.Time
	PID int
}

// NewCoordinator returns a Coordinator with production defaults.
func NewCoordinator(adapter vcs.Adapter, dir string) *Coordinator {
	return &Coordinator{
		Adapter:          adapter,
		Dir:              dir,
		Prefix:           DefaultPrefix,
		IncludeUntracked: true,
		Conflicts:        gitx.NewMarkerClassifier(),
		Now:              time.Now,
		PID:              os.Getpid(),
	}
}

func (c *Coordinator) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

func (c *Coordinator) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c *Coordinator) conflicts() gitx.ConflictClassifier {
	if c.Conflicts == nil {
		return gitx.NewMarkerClassifier()
	}
	return c.Conflicts
}

// Message builds the save-point label for an operation. The nanosecond
// timestamp and process id keep two close invocations apart.
func (c *Coordinator) Message(description string, at time.Time) string {
	msg := fmt.Sprintf("%s %s pid=%d", c.prefix(), at.UTC().Format(time.RFC3339Nano), c.PID)
	if d := strings.TrimSpace(description); d != "" {
		msg += ": " + d
	}
	return msg
}

// Guard saves uncommitted work before the operation described by
// description. It returns a nil save-point when the working tree is clean.
// Any error means the mutation must not proceed.
func (c *Coordinator) Guard(ctx context.Context, description string) (*model.SavePoint, error) {
	status, err := c.Adapter.WorkingTreeStatus(ctx, c.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading working tree status: %w", err)
	}
	if !c.needsGuard(status) {
		return nil, nil
	}

	createdAt := c.now()
	msg := c.Message(description, createdAt)
	before, err := c.Adapter.ListSavePoints(ctx, c.Dir)
	if err != nil {
		return nil, &IntegrityError{Message: msg, Err: err}
	}

	includeUntracked := c.IncludeUntracked
	res := c.Adapter.CreateSavePoint(ctx, c.Dir, msg, includeUntracked)
	if !res.OK && includeUntracked {
		// Unmergeable untracked paths can make -u fail; retry once without.
		includeUntracked = false
		res = c.Adapter.CreateSavePoint(ctx, c.Dir, msg, false)
	}
	if !res.OK {
		return nil, &IntegrityError{Message: msg, Before: len(before), After: len(before), Output: res.Output, Err: res.Err}
	}

	after, err := c.Adapter.ListSavePoints(ctx, c.Dir)
	if err != nil {
		return nil, &IntegrityError{Message: msg, Before: len(before), Err: err, Pushed: true}
	}
	if len(after) != len(before)+1 || !strings.Contains(after[0].Message, msg) {
		return nil, &IntegrityError{Message: msg, Before: len(before), After: len(after), Output: res.Output, Pushed: true}
	}
	return &model.SavePoint{
		Reference:         after[0].Reference,
		Message:           msg,
		CreatedAt:         createdAt,
		IncludesUntracked: includeUntracked,
	}, nil
}

// needsGuard ignores untracked-only trees when untracked files are not
// captured; checkout and merge leave them alone or refuse to run.
func (c *Coordinator) needsGuard(s model.WorkingTreeStatus) bool {
	if c.IncludeUntracked {
		return s.HasChanges()
	}
	return s.HasUncommittedChanges || s.HasStagedChanges
}

// Resolve finds the current reference of sp by message. Other stashes
// created in the meantime shift references, so the stored one is not
// trusted.
func (c *Coordinator) Resolve(ctx context.Context, sp *model.SavePoint) (string, error) {
	entries, err := c.Adapter.ListSavePoints(ctx, c.Dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.Contains(e.Message, sp.Message) {
			return e.Reference, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSavePointMissing, sp.Message)
}

// Restore pops sp back into the working tree. A nil sp is skipped. On
// conflict or failure git keeps the stash entry, so the work stays
// recoverable by hand.
func (c *Coordinator) Restore(ctx context.Context, sp *model.SavePoint) RestoreResult {
	if sp == nil {
		return RestoreResult{Outcome: RestoreSkipped}
	}
	ref, err := c.Resolve(ctx, sp)
	if err != nil {
		return RestoreResult{Outcome: RestoreFailure, Err: err}
	}
	res := c.Adapter.RestoreSavePoint(ctx, c.Dir, ref)
	switch {
	case res.OK:
		return RestoreResult{Outcome: RestoreSuccess, Reference: ref, Output: res.Output}
	case c.conflicts().IsConflict(res.Output):
		return RestoreResult{Outcome: RestoreConflict, Reference: ref, Output: res.Output, Err: res.Err}
	default:
		return RestoreResult{Outcome: RestoreFailure, Reference: ref, Output: res.Output, Err: res.Err}
	}
}

// Owned lists save-points whose message carries this coordinator's prefix.
func (c *Coordinator) Owned(ctx context.Context) ([]model.StashEntry, error) {
	entries, err := c.Adapter.ListSavePoints(ctx, c.Dir)
	if err != nil {
		return nil, err
	}
	var owned []model.StashEntry
	for _, e := range entries {
		if strings.Contains(e.Message, c.prefix()) {
			owned = append(owned, e)
		}
	}
	return owned, nil
}

// Clear drops every owned save-point except keep, which may be nil, and
// returns how many were dropped. References are re-resolved after each drop
// because indices shift.
func (c *Coordinator) Clear(ctx context.Context, keep *model.SavePoint) (int, error) {
	droppable := func() ([]model.StashEntry, error) {
		owned, err := c.Owned(ctx)
		if err != nil || keep == nil {
			return owned, err
		}
		var out []model.StashEntry
		for _, e := range owned {
			if !strings.Contains(e.Message, keep.Message) {
				out = append(out, e)
			}
		}
		return out, nil
	}
	initial, err := droppable()
	if err != nil {
		return 0, err
	}
	dropped := 0
	for range initial {
		current, err := droppable()
		if err != nil {
			return dropped, err
		}
		if len(current) == 0 {
			break
		}
		res := c.Adapter.DropSavePoint(ctx, c.Dir, current[0].Reference)
		if !res.OK {
			return dropped, fmt.Errorf("dropping %s: %s", current[0].Reference, strings.TrimSpace(res.Output))
		}
		dropped++
	}
	return dropped, nil
}
