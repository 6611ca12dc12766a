// SPDX-License-Identifier: MIT
package termstyle

import (
	"strings"

	"github.com/fatih/color"
	"github.com/liggitt/tabwriter"

	"github.com/skaphos/branchkeeper/internal/model"
)

// Style is a set of SGR attributes.
type Style []color.Attribute

var (
	Healthy = Style{color.FgGreen}
	Warn    = Style{color.FgYellow}
	Error   = Style{color.FgRed, color.Bold}
	Info    = Style{color.FgCyan}
	Muted   = Style{color.Faint}
)

// Colorize wraps a value in ANSI escapes when color output is enabled.
func Colorize(enabled bool, value string, style Style) string {
	if !enabled || value == "" || len(style) == 0 {
		return value
	}
	c := color.New(style...)
	c.EnableColor()
	open, closing, _ := strings.Cut(c.Sprint("\x00"), "\x00")
	// Hide ANSI sequences from tabwriter width calculations so columns align.
	esc := string([]byte{tabwriter.Escape})
	return esc + open + esc + value + esc + closing + esc
}

// ForCategory picks the style for a classification bucket.
func ForCategory(cat model.Category) Style {
	switch cat {
	case model.CategoryUpstreamGone:
		return Error
	case model.CategoryStaleTracking, model.CategoryOrphaned:
		return Warn
	case model.CategoryOutdatedRemoteCache:
		return Muted
	default:
		return Healthy
	}
}

// ForResult picks the style for a fleet update or prune row.
func ForResult(r model.BranchResult) Style {
	switch r {
	case model.BranchUpdated, model.BranchDeleted:
		return Healthy
	case model.BranchFailed:
		return Error
	case model.BranchSkipped:
		return Warn
	default:
		return Muted
	}
}

// ForOutcome picks the style for an operation summary line.
func ForOutcome(o model.Outcome) Style {
	switch o {
	case model.OutcomeSuccess:
		return Healthy
	case model.OutcomeConflict, model.OutcomeFailure:
		return Error
	default:
		return Warn
	}
}
