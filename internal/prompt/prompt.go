// Package prompt provides the decision providers that gate destructive
// steps. Workflows depend only on Decider so tests can script answers.
package prompt

import (
	"context"
	"errors"
)

// ErrCancelled is returned by Select when the user backs out.
var ErrCancelled = errors.New("selection cancelled")

// ErrNonInteractive is returned when a choice is needed but no one can
// make it.
var ErrNonInteractive = errors.New("a choice is required but input is not interactive")

// Decider answers the questions a workflow asks before mutating.
type Decider interface {
	// Confirm asks a yes/no question. Declining is (false, nil).
	Confirm(ctx context.Context, question string) (bool, error)
	// Select asks the user to pick one of options and returns its index.
	Select(ctx context.Context, title string, options []string) (int, error)
}

// Auto confirms everything. It selects only when there is exactly one
// option, since guessing a branch is never safe.
type Auto struct{}

func (Auto) Confirm(context.Context, string) (bool, error) { return true, nil }

func (Auto) Select(_ context.Context, _ string, options []string) (int, error) {
	switch len(options) {
	case 0:
		return -1, ErrCancelled
	case 1:
		return 0, nil
	default:
		return -1, ErrNonInteractive
	}
}
