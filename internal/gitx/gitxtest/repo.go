// Package gitxtest provides a stateful in-memory gitx.Runner for tests. It
// understands exactly the git invocations gitx issues and keeps enough
// repository state (branches, upstreams, stash, working tree) for
// multi-step workflows to be exercised without a real repository.
package gitxtest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/skaphos/branchkeeper/internal/gitx"
)

// Branch is a local branch in a fake Repo.
type Branch struct {
	Upstream string
	Behind   int
	Gone     bool
}

// Failure overrides the response to one invocation. A zero Code makes the
// call succeed with Output. Effect, when set, mutates the repo first; it runs
// with the repo locked and must touch fields directly.
type Failure struct {
	Output string
	Code   int
	Effect func(r *Repo)
}

// StashEntry is one fake stash entry and the working-tree flags it holds.
type StashEntry struct {
	Message   string
	Dirty     bool
	Staged    bool
	Untracked bool
}

// Repo is a fake working copy. Fields may be set directly before use.
type Repo struct {
	mu sync.Mutex

	Dir       string
	NotRepo   bool
	Detached  bool
	Current   string
	Branches  map[string]*Branch
	Remotes   map[string]string
	Cached    map[string][]string
	Live      map[string][]string
	LiveErr   string
	Dirty     bool
	Staged    bool
	Untracked bool

	Rebasing bool
	Merging  bool

	// Failures maps an argument string to an override. A key ending in "*"
	// matches by prefix.
	Failures map[string]Failure

	// Stash holds entries newest first.
	Stash []StashEntry

	calls []string
}

// New returns a clean repo on main tracking origin/main.
func New() *Repo {
	return &Repo{
		Dir:     "/repo",
		Current: "main",
		Branches: map[string]*Branch{
			"main": {Upstream: "origin/main"},
		},
		Remotes:  map[string]string{"origin": "git@example.com:team/app.git"},
		Cached:   map[string][]string{"origin": {"main"}},
		Live:     map[string][]string{"origin": {"main"}},
		Failures: map[string]Failure{},
	}
}

// Fail registers an override for args.
func (r *Repo) Fail(args string, f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Failures == nil {
		r.Failures = map[string]Failure{}
	}
	r.Failures[args] = f
}

// Conflict registers a failing rebase or merge for args that leaves the
// operation in progress, as git does.
func (r *Repo) Conflict(args string) {
	r.Fail(args, Failure{
		Output: "CONFLICT (content): Merge conflict in app.go",
		Code:   1,
		Effect: func(r *Repo) {
			if strings.HasPrefix(args, "rebase") {
				r.Rebasing = true
			} else {
				r.Merging = true
			}
		},
	})
}

// Calls returns every invocation so far as space-joined arguments.
func (r *Repo) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Called reports whether any invocation started with prefix.
func (r *Repo) Called(prefix string) bool {
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// StashMessages returns stash messages, newest first.
func (r *Repo) StashMessages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Stash))
	for _, e := range r.Stash {
		out = append(out, e.Message)
	}
	return out
}

// PushStash adds a stash entry made outside the code under test.
func (r *Repo) PushStash(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stash = append([]StashEntry{{Message: message}}, r.Stash...)
}

func fail(code int, format string, args ...any) error {
	return &gitx.ExitError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Run implements gitx.Runner.
func (r *Repo) Run(_ context.Context, _ string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.Join(args, " ")
	r.calls = append(r.calls, key)

	if f, ok := r.override(key); ok {
		if f.Effect != nil {
			f.Effect(r)
		}
		if f.Code == 0 {
			return f.Output, nil
		}
		return f.Output, &gitx.ExitError{Code: f.Code, Msg: f.Output}
	}
	if r.NotRepo {
		return "fatal: not a git repository", fail(128, "fatal: not a git repository")
	}
	return r.dispatch(args)
}

func (r *Repo) override(key string) (Failure, bool) {
	if f, ok := r.Failures[key]; ok {
		return f, true
	}
	for k, f := range r.Failures {
		if p, ok := strings.CutSuffix(k, "*"); ok && strings.HasPrefix(key, p) {
			return f, true
		}
	}
	return Failure{}, false
}

func (r *Repo) dispatch(args []string) (string, error) {
	if len(args) == 0 {
		return "", fail(129, "gitxtest: empty invocation")
	}
	key := strings.Join(args, " ")
	switch {
	case key == "rev-parse --is-inside-work-tree":
		return "true", nil
	case key == "rev-parse --show-toplevel":
		return r.Dir, nil
	case key == "remote":
		return strings.Join(sortedKeys(r.Remotes), "\n"), nil
	case len(args) == 3 && args[0] == "remote" && args[1] == "get-url":
		url, ok := r.Remotes[args[2]]
		if !ok {
			return "", fail(2, "error: No such remote '%s'", args[2])
		}
		return url, nil
	case key == "symbolic-ref --quiet --short HEAD":
		if r.Detached || r.Current == "" {
			return "", fail(1, "")
		}
		return r.Current, nil
	case key == "diff --quiet":
		return "", boolExit(r.Dirty)
	case key == "diff --cached --quiet":
		return "", boolExit(r.Staged)
	case key == "ls-files --others --exclude-standard":
		if r.Untracked {
			return "scratch.txt", nil
		}
		return "", nil
	case key == "rev-parse -q --verify REBASE_HEAD":
		return "", boolOK(r.Rebasing)
	case key == "rev-parse -q --verify MERGE_HEAD":
		return "", boolOK(r.Merging)
	case args[0] == "for-each-ref":
		return r.forEachRef(args)
	case len(args) == 3 && args[0] == "ls-remote" && args[1] == "--heads":
		if r.LiveErr != "" {
			return r.LiveErr, fail(128, "%s", r.LiveErr)
		}
		var lines []string
		for _, name := range sortedCopy(r.Live[args[2]]) {
			lines = append(lines, "0000000\trefs/heads/"+name)
		}
		return strings.Join(lines, "\n"), nil
	case len(args) == 4 && args[0] == "rev-parse" && args[1] == "--verify" && args[2] == "--quiet":
		_, ok := r.Branches[strings.TrimPrefix(args[3], "refs/heads/")]
		return "", boolOK(ok)
	case len(args) == 4 && args[0] == "rev-parse" && args[1] == "--abbrev-ref":
		b, ok := r.Branches[strings.TrimSuffix(args[3], "@{upstream}")]
		if !ok || b.Upstream == "" {
			return "", fail(128, "fatal: no upstream configured")
		}
		return b.Upstream, nil
	case len(args) == 3 && args[0] == "rev-list" && args[1] == "--count":
		local, _, _ := strings.Cut(args[2], "..")
		b, ok := r.Branches[local]
		if !ok {
			return "", fail(128, "fatal: bad revision '%s'", args[2])
		}
		return strconv.Itoa(b.Behind), nil
	case args[0] == "stash" && len(args) > 1:
		return r.stashCmd(args[1:])
	case len(args) >= 3 && args[0] == "-c" && args[2] == "fetch":
		return "", nil
	case len(args) == 2 && args[0] == "checkout":
		return r.checkout(args[1])
	case len(args) == 3 && args[0] == "merge" && args[1] == "--ff-only":
		return r.advance("Fast-forward")
	case len(args) == 3 && args[0] == "merge" && args[1] == "--no-edit":
		return r.advance("Merge made by the 'ort' strategy.")
	case key == "rebase --abort":
		r.Rebasing = false
		return "", nil
	case key == "merge --abort":
		r.Merging = false
		return "", nil
	case len(args) == 2 && args[0] == "rebase":
		return r.advance("Successfully rebased and updated refs/heads/" + r.Current + ".")
	case len(args) == 3 && args[0] == "reset" && args[1] == "--hard":
		r.Dirty, r.Staged = false, false
		if b, ok := r.Branches[r.Current]; ok {
			b.Behind = 0
		}
		return "HEAD is now at 0000000", nil
	case len(args) == 3 && args[0] == "branch" && (args[1] == "-d" || args[1] == "-D"):
		name := args[2]
		if name == r.Current {
			return "", fail(1, "error: cannot delete branch '%s' used by worktree at '%s'", name, r.Dir)
		}
		if _, ok := r.Branches[name]; !ok {
			return "", fail(1, "error: branch '%s' not found.", name)
		}
		delete(r.Branches, name)
		return "Deleted branch " + name, nil
	}
	return "", fail(129, "gitxtest: unsupported invocation %q", key)
}

func (r *Repo) forEachRef(args []string) (string, error) {
	if len(args) != 3 {
		return "", fail(129, "gitxtest: unsupported for-each-ref %v", args)
	}
	if args[2] == "refs/heads" {
		var lines []string
		for _, name := range sortedKeys(r.Branches) {
			b := r.Branches[name]
			track, short := "", ""
			switch {
			case b.Upstream == "":
			case b.Gone:
				track = "[gone]"
			case b.Behind > 0:
				track, short = fmt.Sprintf("[behind %d]", b.Behind), "<"
			default:
				short = "="
			}
			lines = append(lines, strings.Join([]string{name, b.Upstream, track, short}, "|"))
		}
		return strings.Join(lines, "\n"), nil
	}
	remote := strings.TrimPrefix(args[2], "refs/remotes/")
	lines := []string{remote}
	for _, name := range sortedCopy(r.Cached[remote]) {
		lines = append(lines, remote+"/"+name)
	}
	return strings.Join(lines, "\n"), nil
}

func (r *Repo) checkout(target string) (string, error) {
	if _, ok := r.Branches[target]; ok {
		r.Current = target
		return "Switched to branch '" + target + "'", nil
	}
	for remote, names := range r.Cached {
		for _, name := range names {
			if name == target {
				r.Branches[target] = &Branch{Upstream: remote + "/" + name}
				r.Current = target
				return "branch '" + target + "' set up to track '" + remote + "/" + name + "'.", nil
			}
		}
	}
	return "", fail(1, "error: pathspec '%s' did not match any file(s) known to git", target)
}

func (r *Repo) advance(msg string) (string, error) {
	if b, ok := r.Branches[r.Current]; ok {
		b.Behind = 0
	}
	return msg, nil
}

func (r *Repo) stashCmd(args []string) (string, error) {
	switch {
	case len(args) == 2 && args[0] == "list":
		var lines []string
		for i, e := range r.Stash {
			lines = append(lines, fmt.Sprintf("stash@{%d}|On %s: %s", i, r.Current, e.Message))
		}
		return strings.Join(lines, "\n"), nil
	case args[0] == "push":
		withUntracked := len(args) > 1 && args[1] == "--include-untracked"
		msg := args[len(args)-1]
		if !r.Dirty && !r.Staged && !(withUntracked && r.Untracked) {
			return "No local changes to save", nil
		}
		e := StashEntry{Message: msg, Dirty: r.Dirty, Staged: r.Staged}
		r.Dirty, r.Staged = false, false
		if withUntracked {
			e.Untracked = r.Untracked
			r.Untracked = false
		}
		r.Stash = append([]StashEntry{e}, r.Stash...)
		return "Saved working directory and index state On " + r.Current + ": " + msg, nil
	case len(args) == 2 && (args[0] == "pop" || args[0] == "drop"):
		i, err := r.stashIndex(args[1])
		if err != nil {
			return "", err
		}
		e := r.Stash[i]
		r.Stash = append(r.Stash[:i:i], r.Stash[i+1:]...)
		if args[0] == "pop" {
			r.Dirty = r.Dirty || e.Dirty
			r.Staged = r.Staged || e.Staged
			r.Untracked = r.Untracked || e.Untracked
		}
		return "Dropped " + args[1], nil
	}
	return "", fail(129, "gitxtest: unsupported stash %v", args)
}

func (r *Repo) stashIndex(ref string) (int, error) {
	n, ok := strings.CutPrefix(ref, "stash@{")
	if ok {
		n, ok = strings.CutSuffix(n, "}")
	}
	i, err := strconv.Atoi(n)
	if !ok || err != nil || i < 0 || i >= len(r.Stash) {
		return 0, fail(1, "error: %s is not a valid reference", ref)
	}
	return i, nil
}

// SetStatus replaces the working-tree flags under the lock.
func (r *Repo) SetStatus(dirty, staged, untracked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Dirty, r.Staged, r.Untracked = dirty, staged, untracked
}

// Status returns the working-tree flags.
func (r *Repo) Status() (dirty, staged, untracked bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Dirty, r.Staged, r.Untracked
}

func boolExit(changed bool) error {
	if changed {
		return fail(1, "")
	}
	return nil
}

func boolOK(ok bool) error {
	if ok {
		return nil
	}
	return fail(1, "")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
