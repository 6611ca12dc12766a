package gitx

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/skaphos/branchkeeper/internal/model"
)

const forEachRefFormat = "--format=%(refname:short)|%(upstream:short)|%(upstream:track)|%(upstream:trackshort)"

// LocalBranches lists local branches with their upstream configuration and
// tracking status.
func LocalBranches(ctx context.Context, r Runner, dir string) ([]model.Branch, error) {
	out, err := r.Run(ctx, dir, "for-each-ref", forEachRefFormat, "refs/heads")
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref: %w", err)
	}
	entries := ParseForEachRef(out)
	branches := make([]model.Branch, 0, len(entries))
	for _, e := range entries {
		if e.Branch == "" {
			continue
		}
		branches = append(branches, model.Branch{
			Name:              e.Branch,
			Upstream:          e.Upstream,
			HasRemoteTracking: e.Upstream != "",
			UpstreamStatus:    upstreamStatus(e),
		})
	}
	return branches, nil
}

func upstreamStatus(e ForEachRefEntry) model.UpstreamStatus {
	if e.Upstream == "" {
		return model.UpstreamUnknown
	}
	if strings.Contains(e.Track, "[gone]") {
		return model.UpstreamGone
	}
	switch e.TrackShort {
	case "<", "<>":
		// Diverged branches still need the upstream's commits.
		return model.UpstreamBehind
	case ">":
		return model.UpstreamAhead
	case "=":
		return model.UpstreamCurrent
	default:
		return model.UpstreamUnknown
	}
}

// RemoteTrackingBranches lists the cached remote-tracking branches for
// remote, with the "<remote>/" prefix removed.
func RemoteTrackingBranches(ctx context.Context, r Runner, dir, remote string) ([]string, error) {
	out, err := r.Run(ctx, dir, "for-each-ref", "--format=%(refname:short)", "refs/remotes/"+remote)
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref refs/remotes/%s: %w", remote, err)
	}
	return ParseRemoteTrackingList(out, remote), nil
}

// LiveRemoteBranches queries the remote itself for its branch heads.
func LiveRemoteBranches(ctx context.Context, r Runner, dir, remote string) ([]string, error) {
	out, err := r.Run(ctx, dir, "ls-remote", "--heads", remote)
	if err != nil {
		return nil, fmt.Errorf("git ls-remote --heads %s: %w", remote, err)
	}
	return ParseLsRemoteHeads(out), nil
}

// BranchExists reports whether a local branch named name exists.
func BranchExists(ctx context.Context, r Runner, dir, name string) bool {
	_, err := r.Run(ctx, dir, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// UpstreamOf returns the upstream ref configured for branch.
func UpstreamOf(ctx context.Context, r Runner, dir, branch string) (string, error) {
	out, err := r.Run(ctx, dir, "rev-parse", "--abbrev-ref", "--symbolic-full-name", branch+"@{upstream}")
	if err != nil {
		return "", ErrNoUpstream
	}
	upstream := strings.TrimSpace(out)
	if upstream == "" {
		return "", ErrNoUpstream
	}
	return upstream, nil
}

// BehindCount returns how many commits upstream has that local lacks.
func BehindCount(ctx context.Context, r Runner, dir, local, upstream string) (int, error) {
	out, err := r.Run(ctx, dir, "rev-list", "--count", local+".."+upstream)
	if err != nil {
		return 0, fmt.Errorf("git rev-list --count %s..%s: %w", local, upstream, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parse rev-list count %q: %w", out, err)
	}
	return n, nil
}

// DeleteBranch deletes a local branch; force uses -D.
func DeleteBranch(ctx context.Context, r Runner, dir, name string, force bool) Result {
	flag := "-d"
	if force {
		flag = "-D"
	}
	return Exec(ctx, r, dir, "branch", flag, name)
}
