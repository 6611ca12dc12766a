package gitx

import (
	"sort"
	"strings"

	"github.com/skaphos/branchkeeper/internal/model"
)

// ForEachRefEntry represents a single line from git for-each-ref output.
type ForEachRefEntry struct {
	Branch     string
	Upstream   string
	Track      string // e.g. "[ahead 2]", "[behind 1]", "[gone]", ""
	TrackShort string // e.g. ">", "<", "<>", "="
}

// ParseForEachRef parses the pipe-delimited output of:
//
//	git for-each-ref refs/heads --format="%(refname:short)|%(upstream:short)|%(upstream:track)|%(upstream:trackshort)"
func ParseForEachRef(output string) []ForEachRefEntry {
	if output == "" {
		return nil
	}
	var entries []ForEachRefEntry
	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 4)
		entry := ForEachRefEntry{}
		if len(parts) > 0 {
			entry.Branch = parts[0]
		}
		if len(parts) > 1 {
			entry.Upstream = parts[1]
		}
		if len(parts) > 2 {
			entry.Track = parts[2]
		}
		if len(parts) > 3 {
			entry.TrackShort = parts[3]
		}
		entries = append(entries, entry)
	}
	return entries
}

// ParseBranchList parses `git branch` style output: one name per line, with
// the current-branch marker and symbolic HEAD entries removed.
func ParseBranchList(output string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if name == "" || strings.Contains(name, " -> ") || strings.HasPrefix(name, "(") {
			continue
		}
		names = append(names, name)
	}
	return names
}

// ParseRemoteTrackingList parses `for-each-ref --format=%(refname:short)
// refs/remotes/<remote>` output into branch names without the remote prefix.
// The symbolic <remote>/HEAD entry is dropped.
func ParseRemoteTrackingList(output, remote string) []string {
	prefix := remote + "/"
	var names []string
	for _, name := range ParseBranchList(output) {
		if name == remote {
			// refname:short renders refs/remotes/<remote>/HEAD as "<remote>".
			continue
		}
		name = strings.TrimPrefix(name, prefix)
		if name == "HEAD" || name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseLsRemoteHeads parses `git ls-remote --heads` output:
//
//	<sha>\trefs/heads/<name>
func ParseLsRemoteHeads(output string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		name, ok := strings.CutPrefix(fields[1], "refs/heads/")
		if !ok || name == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseStashList parses `git stash list --format=%gd|%s` output.
func ParseStashList(output string) []model.StashEntry {
	var entries []model.StashEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ref, msg, _ := strings.Cut(line, "|")
		entries = append(entries, model.StashEntry{
			Reference: strings.TrimSpace(ref),
			Message:   strings.TrimSpace(msg),
		})
	}
	return entries
}
