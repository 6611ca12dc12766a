package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/errgroup"
)

// Candidates ranks names that resemble query. A name qualifies when either
// string contains the other, ignoring case. Fuzzy matches come first in
// score order, then the remaining substring matches alphabetically.
// exclude is never offered and limit caps the result when positive.
func Candidates(query string, names []string, exclude string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	var pool []string
	for _, name := range names {
		if name == exclude {
			continue
		}
		n := strings.ToLower(name)
		if strings.Contains(n, q) || (n != "" && strings.Contains(q, n)) {
			pool = append(pool, name)
		}
	}
	sort.Strings(pool)

	out := make([]string, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	if q != "" {
		for _, m := range fuzzy.Find(q, pool) {
			out = append(out, m.Str)
			seen[m.Str] = struct{}{}
		}
	}
	for _, name := range pool {
		if _, ok := seen[name]; !ok {
			out = append(out, name)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// branchNames returns every local branch name and every cached branch name
// on the configured remote, deduplicated and sorted.
func (e *Engine) branchNames(ctx context.Context, wt *Worktree) ([]string, error) {
	var local, cached []string
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		branches, err := wt.VCS.ListLocalBranches(egCtx, wt.Dir)
		for _, b := range branches {
			local = append(local, b.Name)
		}
		return err
	})
	eg.Go(func() error {
		var err error
		cached, err = wt.VCS.ListRemoteTrackingBranches(egCtx, wt.Dir, e.cfg.Remote)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(local)+len(cached))
	for _, name := range append(local, cached...) {
		set[name] = struct{}{}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// resolveTarget turns a user query into a branch name, asking the decider
// when there is no exact match.
func (e *Engine) resolveTarget(ctx context.Context, wt *Worktree, query, current string) (string, error) {
	names, err := e.branchNames(ctx, wt)
	if err != nil {
		return "", err
	}
	query = strings.TrimSpace(query)
	query = strings.TrimPrefix(query, e.cfg.Remote+"/")
	if query != "" {
		for _, name := range names {
			if name == query {
				return name, nil
			}
		}
	}

	limit := e.cfg.Checkout.MaxCandidates
	var candidates []string
	var title string
	if query == "" {
		candidates = Candidates("", names, current, 0)
		title = "Pick a branch"
	} else {
		candidates = Candidates(query, names, current, limit)
		title = fmt.Sprintf("No branch named %q. Did you mean", query)
		if len(candidates) == 0 {
			candidates = Candidates("", names, current, 0)
			title = fmt.Sprintf("Nothing resembles %q. All branches", query)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("%w for %q", ErrNoCandidates, query)
	}
	i, err := e.decider.Select(ctx, title, candidates)
	if err != nil {
		return "", err
	}
	return candidates[i], nil
}
