// SPDX-License-Identifier: MIT
package gitx

import "strings"

// DefaultConflictMarkers are the substrings git prints when a rebase, merge,
// or stash apply stops on conflicting changes.
var DefaultConflictMarkers = []string{
	"CONFLICT",
	"conflict",
	"Merge conflict",
	"could not apply",
}

// ConflictClassifier decides whether failed command output describes a
// content conflict that needs manual resolution.
type ConflictClassifier interface {
	IsConflict(output string) bool
}

// ConflictFunc adapts a function to ConflictClassifier.
type ConflictFunc func(output string) bool

// IsConflict calls f.
func (f ConflictFunc) IsConflict(output string) bool { return f(output) }

// MarkerClassifier matches output against a list of substrings.
type MarkerClassifier struct {
	Markers []string
}

// NewMarkerClassifier returns a classifier for markers, falling back to
// DefaultConflictMarkers when none are given.
func NewMarkerClassifier(markers ...string) *MarkerClassifier {
	var cleaned []string
	for _, m := range markers {
		if strings.TrimSpace(m) != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultConflictMarkers...)
	}
	return &MarkerClassifier{Markers: cleaned}
}

// IsConflict reports whether output contains any marker.
func (m *MarkerClassifier) IsConflict(output string) bool {
	for _, marker := range m.Markers {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}
