// Package model defines the core data types used throughout BranchKeeper.
package model

import "time"

// Remote represents a single git remote.
type Remote struct {
	// Name is the configured remote name (for example, "origin").
	Name string `json:"name" yaml:"name"`
	// URL is the remote fetch/push URL.
	URL string `json:"url" yaml:"url"`
}

// UpstreamStatus enumerates the relationship between a local branch and
// its configured upstream.
type UpstreamStatus string

const (
	UpstreamGone    UpstreamStatus = "gone"
	UpstreamBehind  UpstreamStatus = "behind"
	UpstreamAhead   UpstreamStatus = "ahead"
	UpstreamCurrent UpstreamStatus = "current"
	UpstreamUnknown UpstreamStatus = "unknown"
)

// Branch is a local branch as reported by the VCS at the start of a command.
// Branches are never persisted between invocations.
type Branch struct {
	// Name is unique among local branches.
	Name string `json:"name" yaml:"name"`
	// Upstream is the configured upstream ref (for example, "origin/main"),
	// empty when none is configured.
	Upstream string `json:"upstream,omitempty" yaml:"upstream,omitempty"`
	// HasRemoteTracking reports whether an upstream is configured.
	HasRemoteTracking bool `json:"has_remote_tracking" yaml:"has_remote_tracking"`
	// UpstreamStatus is the tracking state reported by for-each-ref.
	UpstreamStatus UpstreamStatus `json:"upstream_status" yaml:"upstream_status"`
	// Current is true for the checked-out branch.
	Current bool `json:"current" yaml:"current"`
}

// WorkingTreeStatus summarizes uncommitted work. It is stale as soon as any
// mutating VCS call runs and must be re-queried rather than cached.
type WorkingTreeStatus struct {
	HasUncommittedChanges bool `json:"has_uncommitted_changes" yaml:"has_uncommitted_changes"`
	HasStagedChanges      bool `json:"has_staged_changes" yaml:"has_staged_changes"`
	HasUntrackedFiles     bool `json:"has_untracked_files" yaml:"has_untracked_files"`
}

// HasChanges reports whether any kind of local work is present.
func (s WorkingTreeStatus) HasChanges() bool {
	return s.HasUncommittedChanges || s.HasStagedChanges || s.HasUntrackedFiles
}

// SavePoint is a stash entry created around a risky mutation.
type SavePoint struct {
	// Reference is the handle assigned by git (for example, "stash@{0}").
	// It is only valid at the time it was resolved.
	Reference string `json:"reference" yaml:"reference"`
	// Message is the unique label chosen when the save-point was created.
	Message string `json:"message" yaml:"message"`
	// CreatedAt is when the save-point was requested.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	// IncludesUntracked reports whether untracked files were captured.
	IncludesUntracked bool `json:"includes_untracked" yaml:"includes_untracked"`
}

// StashEntry is one line of `git stash list`.
type StashEntry struct {
	Reference string
	Message   string
}

// Category is a branch classification bucket.
type Category string

const (
	CategoryUpToDate            Category = "up-to-date"
	CategoryStaleTracking       Category = "stale-tracking"
	CategoryUpstreamGone        Category = "upstream-gone"
	CategoryOrphaned            Category = "orphaned"
	CategoryOutdatedRemoteCache Category = "outdated-remote-cache"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryUpstreamGone,
	CategoryStaleTracking,
	CategoryOrphaned,
	CategoryOutdatedRemoteCache,
	CategoryUpToDate,
}

// Classification is the result of a single classifier run. Every local
// branch appears in at most one category; protected and current branches
// without an upstream appear in none. Outdated remote-cache entries are
// remote-tracking names, not local branches.
type Classification struct {
	// Branches maps a branch (or remote-tracking) name to its category.
	Branches map[string]Category `json:"branches" yaml:"branches"`
	// Degraded is true when classification used cached remote data
	// because the live remote query failed or came back empty.
	Degraded bool `json:"degraded" yaml:"degraded"`
	// DegradedReason explains why the run is degraded.
	DegradedReason string `json:"degraded_reason,omitempty" yaml:"degraded_reason,omitempty"`
	// Remote is the remote the classification was computed against.
	Remote string `json:"remote" yaml:"remote"`
	// Protected lists local branches left out because they match a
	// protected pattern.
	Protected []string `json:"protected,omitempty" yaml:"protected,omitempty"`
}

// Names returns the sorted names classified into category c.
func (c Classification) Names(cat Category) []string {
	var out []string
	for name, got := range c.Branches {
		if got == cat {
			out = append(out, name)
		}
	}
	sortStrings(out)
	return out
}

// Category returns the category for name and whether it was classified.
func (c Classification) Category(name string) (Category, bool) {
	cat, ok := c.Branches[name]
	return cat, ok
}
