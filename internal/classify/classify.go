// Package classify computes, without mutating anything, how each local
// branch relates to its upstream and to the live remote.
package classify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/vcs"
)

// Input is everything a classification run looks at.
type Input struct {
	// Remote is the remote whose branches are authoritative.
	Remote string
	// CurrentBranch is never reported as orphaned.
	CurrentBranch string
	// Local lists local branches with their upstream configuration.
	Local []model.Branch
	// Cached lists remote-tracking branch names for Remote, without prefix.
	Cached []string
	// Live lists branch names on the remote right now.
	Live []string
	// LiveErr is the error from the live query, if it failed.
	LiveErr error
	// Protected holds doublestar patterns for branches that are never
	// reported as stale, orphaned, or up-to-date.
	Protected []string
}

// Classify partitions the branches in in. It never fails: a failed or empty
// live query degrades the run to cached data and says so in the result.
func Classify(in Input) model.Classification {
	out := model.Classification{
		Branches: map[string]model.Category{},
		Remote:   in.Remote,
	}

	authoritative := toSet(in.Live)
	switch {
	case in.LiveErr != nil:
		out.Degraded = true
		out.DegradedReason = fmt.Sprintf("live query of %s failed: %v", in.Remote, in.LiveErr)
	case len(in.Live) == 0 && len(in.Cached) > 0:
		out.Degraded = true
		out.DegradedReason = fmt.Sprintf("live query of %s returned no branches", in.Remote)
	}
	if out.Degraded {
		authoritative = toSet(in.Cached)
	}

	if !out.Degraded {
		for _, name := range in.Cached {
			if _, ok := authoritative[name]; !ok {
				out.Branches[in.Remote+"/"+name] = model.CategoryOutdatedRemoteCache
			}
		}
	}

	for _, b := range in.Local {
		// Gone is checked first so it can never also be stale.
		if b.UpstreamStatus == model.UpstreamGone {
			out.Branches[b.Name] = model.CategoryUpstreamGone
			continue
		}
		if IsProtected(b.Name, in.Protected) {
			out.Protected = append(out.Protected, b.Name)
			continue
		}
		if !b.HasRemoteTracking || b.Upstream == "" {
			if b.Name != in.CurrentBranch {
				out.Branches[b.Name] = model.CategoryOrphaned
			}
			continue
		}
		name, onRemote := RemoteBranchName(b.Upstream, in.Remote)
		if !onRemote {
			// Tracks another remote or a local branch; nothing here can
			// contradict it.
			out.Branches[b.Name] = model.CategoryUpToDate
			continue
		}
		if _, ok := authoritative[name]; !ok {
			out.Branches[b.Name] = model.CategoryStaleTracking
			continue
		}
		out.Branches[b.Name] = model.CategoryUpToDate
	}
	sort.Strings(out.Protected)
	return out
}

// RemoteBranchName strips "<remote>/" from upstream. The second result is
// false when upstream does not belong to remote.
func RemoteBranchName(upstream, remote string) (string, bool) {
	name, ok := strings.CutPrefix(upstream, remote+"/")
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// IsProtected reports whether branch matches any doublestar pattern.
// Invalid patterns are ignored.
func IsProtected(branch string, patterns []string) bool {
	branch = strings.TrimSpace(branch)
	if branch == "" {
		return false
	}
	for _, pattern := range patterns {
		p := strings.TrimSpace(pattern)
		if p == "" {
			continue
		}
		if ok, err := doublestar.Match(p, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// Gather collects classifier input from the adapter. The three branch
// queries are read-only and run concurrently. A failing live query is
// recorded in Input.LiveErr rather than returned.
func Gather(ctx context.Context, adapter vcs.Adapter, dir, remote, current string, protected []string) (Input, error) {
	in := Input{
		Remote:        remote,
		CurrentBranch: current,
		Protected:     protected,
	}
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		local, err := adapter.ListLocalBranches(egCtx, dir)
		if err != nil {
			return err
		}
		in.Local = local
		return nil
	})
	eg.Go(func() error {
		cached, err := adapter.ListRemoteTrackingBranches(egCtx, dir, remote)
		if err != nil {
			return err
		}
		in.Cached = cached
		return nil
	})
	eg.Go(func() error {
		// Runs on the parent context so a local query failure does not
		// masquerade as a degraded remote.
		in.Live, in.LiveErr = adapter.ListLiveRemoteBranches(ctx, dir, remote)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return Input{}, err
	}
	return in, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
