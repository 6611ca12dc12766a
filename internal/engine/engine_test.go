package engine_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/branchkeeper/internal/config"
	"github.com/skaphos/branchkeeper/internal/engine"
	"github.com/skaphos/branchkeeper/internal/gitx/gitxtest"
	"github.com/skaphos/branchkeeper/internal/model"
	"github.com/skaphos/branchkeeper/internal/prompt"
	"github.com/skaphos/branchkeeper/internal/stash"
	"github.com/skaphos/branchkeeper/internal/vcs"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func open(repo *gitxtest.Repo, decider prompt.Decider) (*engine.Engine, *engine.Worktree) {
	cfg := config.DefaultConfig()
	e := engine.New(&cfg, vcs.NewGitAdapter(repo), decider)
	e.SetClock(func() time.Time { return fixedNow })
	wt, err := e.Open(context.Background(), repo.Dir)
	Expect(err).NotTo(HaveOccurred())
	return e, wt
}

// loseStashListAfterPush makes the next push stash the dirty tree and every
// later stash list fail, so the save-point exists but cannot be confirmed.
func loseStashListAfterPush(repo *gitxtest.Repo) {
	repo.Fail("stash push*", gitxtest.Failure{Output: "Saved working directory", Effect: func(r *gitxtest.Repo) {
		r.Stash = append([]gitxtest.StashEntry{{Message: "unconfirmed", Dirty: r.Dirty}}, r.Stash...)
		r.Dirty, r.Staged, r.Untracked = false, false, false
		r.Failures["stash list*"] = gitxtest.Failure{Output: "fatal: unable to read stash", Code: 128}
	}})
}

func track(repo *gitxtest.Repo, name string, behind int) {
	repo.Branches[name] = &gitxtest.Branch{Upstream: "origin/" + name, Behind: behind}
	repo.Cached["origin"] = append(repo.Cached["origin"], name)
	repo.Live["origin"] = append(repo.Live["origin"], name)
}

var _ = Describe("Engine", func() {
	var (
		ctx     context.Context
		repo    *gitxtest.Repo
		decider *prompt.Scripted
		e       *engine.Engine
		wt      *engine.Worktree
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = gitxtest.New()
		decider = &prompt.Scripted{}
	})

	JustBeforeEach(func() {
		e, wt = open(repo, decider)
	})

	Describe("Open", func() {
		It("refuses a directory outside a working tree", func() {
			repo.NotRepo = true
			cfg := config.DefaultConfig()
			_, err := engine.New(&cfg, vcs.NewGitAdapter(repo), decider).Open(ctx, "/tmp")
			var pe *engine.PreflightError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Reason).To(Equal(engine.ReasonNotRepository))
		})

		It("resolves the top level", func() {
			Expect(wt.Dir).To(Equal("/repo"))
		})
	})

	Describe("Checkout", func() {
		BeforeEach(func() {
			track(repo, "feature", 0)
		})

		It("tells the user where stashed work went when the save-point cannot be confirmed", func() {
			repo.SetStatus(true, false, false)
			loseStashListAfterPush(repo)
			op, err := e.Checkout(ctx, wt, "feature")
			Expect(errors.Is(err, stash.ErrUnverified)).To(BeTrue())
			Expect(op.Outcome).To(Equal(model.OutcomeFailure))
			Expect(op.Phase()).To(Equal(model.PhaseNeedsRecovery))
			Expect(op.Remediation).To(ContainElement(ContainSubstring("git stash list")))
			Expect(op.Remediation).To(ContainElement(ContainSubstring("git stash pop")))
			Expect(repo.Current).To(Equal("main"))
			Expect(repo.Stash).To(HaveLen(1))
		})

		It("carries uncommitted work across the switch", func() {
			repo.SetStatus(true, false, true)
			op, err := e.Checkout(ctx, wt, "feature")
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(repo.Current).To(Equal("feature"))
			Expect(op.SavePoint).To(BeNil())
			Expect(repo.StashMessages()).To(BeEmpty())
			dirty, _, untracked := repo.Status()
			Expect(dirty).To(BeTrue())
			Expect(untracked).To(BeTrue())
			Expect(op.Phases).To(Equal([]model.Phase{
				model.PhaseIdle, model.PhaseGuarding, model.PhaseMutating,
				model.PhaseSucceeded, model.PhaseRestoring, model.PhaseDone,
			}))
		})

		It("fast-forwards the target to its upstream", func() {
			repo.Branches["feature"].Behind = 2
			_, err := e.Checkout(ctx, wt, "feature")
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Calls()).To(ContainElement("merge --ff-only origin/feature"))
			Expect(repo.Branches["feature"].Behind).To(BeZero())
		})

		It("reports cancellation without creating a save-point when nothing matches", func() {
			delete(repo.Branches, "feature")
			repo.Cached["origin"] = []string{"main"}
			repo.SetStatus(true, false, false)
			op, err := e.Checkout(ctx, wt, "nonexistent")
			Expect(errors.Is(err, engine.ErrNoCandidates)).To(BeTrue())
			Expect(op.Outcome).To(Equal(model.OutcomeCancelled))
			Expect(repo.Called("stash push")).To(BeFalse())
			Expect(repo.Current).To(Equal("main"))
			Expect(decider.Asked).To(BeEmpty())
		})

		It("offers close matches and checks out the chosen one", func() {
			track(repo, "feature-login", 0)
			track(repo, "bugfix-logout", 0)
			decider.Selections = []int{0}
			op, err := e.Checkout(ctx, wt, "login")
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(decider.Offered).To(HaveLen(1))
			Expect(decider.Offered[0]).To(Equal([]string{"feature-login"}))
			Expect(repo.Current).To(Equal("feature-login"))
		})

		It("offers every other branch when nothing resembles the query", func() {
			decider.Selections = []int{0}
			_, err := e.Checkout(ctx, wt, "zzz")
			Expect(err).NotTo(HaveOccurred())
			Expect(decider.Offered[0]).To(Equal([]string{"feature"}))
			Expect(repo.Current).To(Equal("feature"))
		})

		It("treats an abandoned selection as a clean no-op", func() {
			decider.Selections = []int{-1}
			repo.SetStatus(true, false, false)
			op, err := e.Checkout(ctx, wt, "feat")
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeDeclined))
			Expect(repo.Called("stash push")).To(BeFalse())
			Expect(repo.Current).To(Equal("main"))
		})

		It("creates a tracking branch for a remote-only name", func() {
			repo.Cached["origin"] = append(repo.Cached["origin"], "release-1")
			op, err := e.Checkout(ctx, wt, "origin/release-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(op.TargetBranch).To(Equal("release-1"))
			Expect(repo.Current).To(Equal("release-1"))
			Expect(repo.Branches["release-1"].Upstream).To(Equal("origin/release-1"))
		})

		It("does nothing when already on the target", func() {
			op, err := e.Checkout(ctx, wt, "main")
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(op.Message).To(ContainSubstring("already on main"))
			Expect(repo.Called("checkout")).To(BeFalse())
		})

		It("restores local work when the checkout fails", func() {
			repo.SetStatus(true, false, false)
			repo.Fail("checkout feature", gitxtest.Failure{Output: "error: cannot lock ref", Code: 128})
			op, err := e.Checkout(ctx, wt, "feature")
			var oe *engine.OperationError
			Expect(errors.As(err, &oe)).To(BeTrue())
			Expect(oe.Op).To(Equal("checkout"))
			Expect(oe.ExitCode).To(Equal(128))
			Expect(op.Outcome).To(Equal(model.OutcomeFailure))
			Expect(op.Phase()).To(Equal(model.PhaseDone))
			Expect(repo.StashMessages()).To(BeEmpty())
			dirty, _, _ := repo.Status()
			Expect(dirty).To(BeTrue())
		})

		It("continues with cached branches when fetch fails", func() {
			repo.Fail("-c fetch.recurseSubmodules=false fetch --no-recurse-submodules origin",
				gitxtest.Failure{Output: "fatal: unable to access", Code: 128})
			op, err := e.Checkout(ctx, wt, "feature")
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(op.Warnings).To(ContainElement(ContainSubstring("fetch origin failed")))
		})

		It("works from a detached HEAD", func() {
			repo.Detached = true
			op, err := e.Checkout(ctx, wt, "feature")
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(repo.Current).To(Equal("feature"))
		})

		It("reports progress through the step callback", func() {
			var steps []string
			e.OnStep(func(_ *model.SyncOperation, msg string) { steps = append(steps, msg) })
			repo.SetStatus(true, false, false)
			_, err := e.Checkout(ctx, wt, "feature")
			Expect(err).NotTo(HaveOccurred())
			Expect(steps).To(ContainElements("saved local changes as stash@{0}", "switched to feature", "restored local changes"))
		})
	})

	Describe("Update", func() {
		It("restores local work even when already up to date", func() {
			repo.SetStatus(true, true, false)
			op, err := e.Update(ctx, wt, engine.UpdateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(op.Message).To(ContainSubstring("already up to date"))
			Expect(repo.Called("rebase")).To(BeFalse())
			Expect(repo.Called("stash push")).To(BeTrue())
			Expect(repo.StashMessages()).To(BeEmpty())
			dirty, staged, _ := repo.Status()
			Expect(dirty && staged).To(BeTrue())
		})

		It("rebases onto the upstream by default", func() {
			repo.Branches["main"].Behind = 3
			op, err := e.Update(ctx, wt, engine.UpdateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(repo.Calls()).To(ContainElement("rebase origin/main"))
			Expect(op.Message).To(ContainSubstring("3 new commit(s)"))
		})

		It("merges when rebase is turned off", func() {
			repo.Branches["main"].Behind = 1
			_, err := e.Update(ctx, wt, engine.UpdateOptions{NoRebase: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Calls()).To(ContainElement("merge --no-edit origin/main"))
			Expect(repo.Called("rebase")).To(BeFalse())
		})

		It("leaves a conflicted rebase in place and keeps the save-point", func() {
			repo.Branches["main"].Behind = 1
			repo.SetStatus(true, false, false)
			repo.Conflict("rebase origin/main")
			op, err := e.Update(ctx, wt, engine.UpdateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeConflict))
			Expect(op.Phase()).To(Equal(model.PhaseNeedsRecovery))
			Expect(op.SavePoint).NotTo(BeNil())
			Expect(repo.StashMessages()).To(HaveLen(1))
			Expect(repo.Called("rebase --abort")).To(BeFalse())
			Expect(repo.Called("stash pop")).To(BeFalse())
			Expect(repo.Rebasing).To(BeTrue())
			Expect(op.Remediation).To(ContainElement(ContainSubstring("git rebase --continue")))
			Expect(op.Remediation).To(ContainElement(ContainSubstring("git stash pop stash@{0}")))
		})

		It("fails before touching anything when there is no upstream", func() {
			repo.Branches["main"].Upstream = ""
			repo.SetStatus(true, false, false)
			op, err := e.Update(ctx, wt, engine.UpdateOptions{})
			var pe *engine.PreflightError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Reason).To(Equal(engine.ReasonNoUpstream))
			Expect(op.Outcome).To(Equal(model.OutcomeFailure))
			Expect(repo.Called("stash")).To(BeFalse())
		})

		It("refuses a detached HEAD", func() {
			repo.Detached = true
			_, err := e.Update(ctx, wt, engine.UpdateOptions{})
			var pe *engine.PreflightError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Reason).To(Equal(engine.ReasonDetachedHead))
		})

		It("refuses when the remote is missing", func() {
			repo.Remotes = map[string]string{}
			_, err := e.Update(ctx, wt, engine.UpdateOptions{})
			var pe *engine.PreflightError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(pe.Reason).To(Equal(engine.ReasonNoRemote))
		})

		It("does not mutate when the save-point cannot be created", func() {
			repo.Branches["main"].Behind = 1
			repo.SetStatus(true, false, false)
			repo.Fail("stash push*", gitxtest.Failure{Output: "fatal: index.lock exists", Code: 128})
			op, err := e.Update(ctx, wt, engine.UpdateOptions{})
			Expect(errors.Is(err, stash.ErrUnverified)).To(BeTrue())
			Expect(op.Outcome).To(Equal(model.OutcomeFailure))
			Expect(repo.Called("rebase")).To(BeFalse())
			Expect(repo.Called("-c")).To(BeFalse())
			Expect(op.Phase()).To(Equal(model.PhaseDone))
			Expect(op.Remediation).To(BeEmpty())
		})

		It("reports a conflict when local work collides on restore", func() {
			repo.Branches["main"].Behind = 1
			repo.SetStatus(true, false, false)
			repo.Fail("stash pop stash@{0}", gitxtest.Failure{Output: "CONFLICT (content): Merge conflict in app.go", Code: 1})
			op, err := e.Update(ctx, wt, engine.UpdateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeConflict))
			Expect(op.Phase()).To(Equal(model.PhaseNeedsRecovery))
			Expect(op.SavePoint).NotTo(BeNil())
			Expect(op.Warnings).To(ContainElement(ContainSubstring("hit conflicts")))
			Expect(repo.StashMessages()).To(HaveLen(1))
		})

		It("returns an operation error for a failed fetch and restores", func() {
			repo.SetStatus(true, false, false)
			repo.Fail("-c*", gitxtest.Failure{Output: "fatal: Authentication failed", Code: 128})
			op, err := e.Update(ctx, wt, engine.UpdateOptions{})
			var oe *engine.OperationError
			Expect(errors.As(err, &oe)).To(BeTrue())
			Expect(oe.Class()).To(Equal("auth"))
			Expect(op.Phase()).To(Equal(model.PhaseDone))
			Expect(repo.StashMessages()).To(BeEmpty())
		})
	})

	Describe("UpdateAll", func() {
		BeforeEach(func() {
			track(repo, "feature-a", 2)
			track(repo, "feature-b", 1)
			track(repo, "old", 0)
			repo.Branches["old"].Gone = true
			repo.Branches["local-only"] = &gitxtest.Branch{}
		})

		It("updates each branch, aborts conflicts, and returns home", func() {
			repo.SetStatus(true, false, false)
			repo.Conflict("rebase origin/feature-b")
			op, err := e.UpdateAll(ctx, wt, engine.UpdateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeFailure))
			Expect(repo.Current).To(Equal("main"))
			Expect(repo.Rebasing).To(BeFalse())
			Expect(repo.Calls()).To(ContainElement("rebase --abort"))
			Expect(op.Reports).To(Equal([]model.BranchReport{
				{Branch: "feature-a", Result: model.BranchUpdated, Detail: "2 new commit(s)"},
				{Branch: "feature-b", Result: model.BranchFailed, Conflict: true, Detail: "conflicts with origin/feature-b; rebase aborted"},
				{Branch: "local-only", Result: model.BranchSkipped, Detail: "no upstream"},
				{Branch: "main", Result: model.BranchUpToDate},
				{Branch: "old", Result: model.BranchSkipped, Detail: "upstream gone"},
			}))
			Expect(op.Message).To(Equal("1 updated, 1 up to date, 2 skipped, 1 failed"))
			Expect(repo.StashMessages()).To(BeEmpty())
			dirty, _, _ := repo.Status()
			Expect(dirty).To(BeTrue())
		})

		It("guards and fetches once for the whole sweep", func() {
			repo.SetStatus(true, false, false)
			_, err := e.UpdateAll(ctx, wt, engine.UpdateOptions{Concurrency: 2})
			Expect(err).NotTo(HaveOccurred())
			pushes, fetches := 0, 0
			for _, c := range repo.Calls() {
				switch {
				case strings.HasPrefix(c, "stash push"):
					pushes++
				case strings.HasPrefix(c, "-c"):
					fetches++
				}
			}
			Expect(pushes).To(Equal(1))
			Expect(fetches).To(Equal(1))
		})

		It("succeeds when every branch updates", func() {
			op, err := e.UpdateAll(ctx, wt, engine.UpdateOptions{NoRebase: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(repo.Calls()).To(ContainElements("merge --no-edit origin/feature-a", "merge --no-edit origin/feature-b"))
			Expect(op.Count(model.BranchUpdated)).To(Equal(2))
		})

		It("stops and keeps the save-point when a conflict cannot be aborted", func() {
			repo.SetStatus(true, false, false)
			repo.Conflict("rebase origin/feature-a")
			repo.Fail("rebase --abort", gitxtest.Failure{Output: "fatal: could not abort", Code: 128})
			op, err := e.UpdateAll(ctx, wt, engine.UpdateOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeConflict))
			Expect(op.Phase()).To(Equal(model.PhaseNeedsRecovery))
			Expect(repo.StashMessages()).To(HaveLen(1))
			Expect(repo.Called("rebase origin/feature-b")).To(BeFalse())
			Expect(op.Remediation).To(ContainElement("git checkout main"))
		})
	})

	Describe("MergeFrom", func() {
		BeforeEach(func() {
			track(repo, "feature", 0)
			repo.Current = "feature"
			repo.Branches["main"].Behind = 2
		})

		It("accepts a source named with its remote prefix", func() {
			repo.Cached["origin"] = append(repo.Cached["origin"], "release-1")
			op, err := e.MergeFrom(ctx, wt, "origin/release-1", engine.MergeFromOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(op.SourceBranch).To(Equal("release-1"))
			Expect(repo.Calls()).To(ContainElement("merge --no-edit origin/release-1"))
		})

		It("updates the source, then merges it into the current branch", func() {
			op, err := e.MergeFrom(ctx, wt, "main", engine.MergeFromOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(repo.Calls()).To(ContainElements("checkout main", "rebase origin/main", "checkout feature", "merge --no-edit main"))
			Expect(repo.Current).To(Equal("feature"))
			Expect(op.Message).To(Equal("merged main into feature"))
		})

		It("rebases onto the source on request", func() {
			_, err := e.MergeFrom(ctx, wt, "main", engine.MergeFromOptions{Rebase: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Calls()).To(ContainElement("rebase main"))
		})

		It("leaves a conflicted merge unresolved with the save-point kept", func() {
			repo.SetStatus(true, false, false)
			repo.Conflict("merge --no-edit main")
			op, err := e.MergeFrom(ctx, wt, "main", engine.MergeFromOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeConflict))
			Expect(op.Phase()).To(Equal(model.PhaseNeedsRecovery))
			Expect(repo.Merging).To(BeTrue())
			Expect(repo.StashMessages()).To(HaveLen(1))
			Expect(repo.Called("stash pop")).To(BeFalse())
			Expect(op.Remediation).To(ContainElement(ContainSubstring("git commit")))
			Expect(op.Remediation).To(ContainElement(ContainSubstring("git stash pop stash@{0}")))
		})

		It("aborts a conflicting source update and merges nothing", func() {
			repo.SetStatus(true, false, false)
			repo.Conflict("rebase origin/main")
			op, err := e.MergeFrom(ctx, wt, "main", engine.MergeFromOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeConflict))
			Expect(repo.Called("merge --no-edit")).To(BeFalse())
			Expect(repo.Calls()).To(ContainElement("rebase --abort"))
			Expect(repo.Current).To(Equal("feature"))
			Expect(repo.StashMessages()).To(BeEmpty())
			Expect(op.Phase()).To(Equal(model.PhaseDone))
		})

		It("brings the current branch up to date first", func() {
			repo.Branches["feature"].Behind = 1
			repo.Conflict("rebase origin/feature")
			op, err := e.MergeFrom(ctx, wt, "main", engine.MergeFromOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeConflict))
			Expect(op.Message).To(ContainSubstring("main was not touched"))
			Expect(repo.Called("checkout main")).To(BeFalse())
		})

		It("merges a branch that only exists on the remote", func() {
			repo.Cached["origin"] = append(repo.Cached["origin"], "release")
			_, err := e.MergeFrom(ctx, wt, "release", engine.MergeFromOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Calls()).To(ContainElement("merge --no-edit origin/release"))
		})

		It("rejects an unknown source", func() {
			repo.SetStatus(true, false, false)
			_, err := e.MergeFrom(ctx, wt, "nope", engine.MergeFromOptions{})
			Expect(errors.Is(err, engine.ErrBranchNotFound)).To(BeTrue())
			Expect(repo.Called("stash")).To(BeFalse())
		})

		It("rejects merging a branch into itself", func() {
			op, err := e.MergeFrom(ctx, wt, "feature", engine.MergeFromOptions{})
			Expect(err).To(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeFailure))
		})
	})

	Describe("Prune", func() {
		BeforeEach(func() {
			repo.Branches["feature-x"] = &gitxtest.Branch{Upstream: "origin/feature-x"}
			repo.Cached["origin"] = []string{"feature-x", "main"}
			repo.Branches["gone-branch"] = &gitxtest.Branch{Upstream: "origin/gone-branch", Gone: true}
			repo.Branches["local-only"] = &gitxtest.Branch{}
		})

		It("deletes stale and gone branches after confirmation", func() {
			decider.Confirms = []bool{true}
			op, err := e.Prune(ctx, wt, engine.PruneOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(repo.Branches).NotTo(HaveKey("feature-x"))
			Expect(repo.Branches).NotTo(HaveKey("gone-branch"))
			Expect(repo.Branches).To(HaveKey("local-only"))
			Expect(repo.Branches).To(HaveKey("main"))
			Expect(op.Count(model.BranchDeleted)).To(Equal(2))
			Expect(op.Classification).NotTo(BeNil())
			Expect(op.Classification.Names(model.CategoryOrphaned)).To(Equal([]string{"local-only"}))
			Expect(repo.Called("-c")).To(BeFalse())
			Expect(repo.Called("stash")).To(BeFalse())
		})

		It("withholds stale branches when the remote cannot be reached", func() {
			repo.Cached["origin"] = []string{"main"}
			repo.LiveErr = "fatal: could not read from remote repository"
			decider.Confirms = []bool{true}
			op, err := e.Prune(ctx, wt, engine.PruneOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Classification.Degraded).To(BeTrue())
			Expect(repo.Branches).To(HaveKey("feature-x"))
			Expect(repo.Branches).NotTo(HaveKey("gone-branch"))
			Expect(op.Warnings).To(ContainElement(ContainSubstring("not deleted")))
			Expect(op.Reports).To(ContainElement(model.BranchReport{
				Branch: "feature-x", Result: model.BranchSkipped,
				Detail: "remote unreachable; not deleting on cached data",
			}))
		})

		It("deletes nothing when declined", func() {
			decider.Confirms = []bool{false}
			op, err := e.Prune(ctx, wt, engine.PruneOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeDeclined))
			Expect(repo.Called("branch")).To(BeFalse())
		})

		It("includes orphaned branches on request and forces deletion", func() {
			decider.Confirms = []bool{true}
			_, err := e.Prune(ctx, wt, engine.PruneOptions{IncludeOrphaned: true, Force: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.Calls()).To(ContainElement("branch -D local-only"))
			Expect(repo.Branches).To(HaveLen(1))
		})

		It("never offers protected or current branches", func() {
			repo.Branches["release/1.0"] = &gitxtest.Branch{Upstream: "origin/release/1.0", Gone: true}
			repo.Current = "gone-branch"
			decider.Confirms = []bool{true}
			op, err := e.Prune(ctx, wt, engine.PruneOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Branches).To(Equal([]string{"feature-x"}))
			Expect(repo.Branches).To(HaveKey("release/1.0"))
			Expect(repo.Branches).To(HaveKey("gone-branch"))
		})

		It("suggests --force for unmerged branches", func() {
			repo.Fail("branch -d feature-x", gitxtest.Failure{Output: "error: the branch 'feature-x' is not fully merged.", Code: 1})
			decider.Confirms = []bool{true}
			op, err := e.Prune(ctx, wt, engine.PruneOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeFailure))
			Expect(op.Reports).To(ContainElement(model.BranchReport{
				Branch: "feature-x", Result: model.BranchFailed,
				Detail: "not fully merged; rerun with --force to delete anyway",
			}))
		})

		It("succeeds without asking when nothing needs pruning", func() {
			delete(repo.Branches, "feature-x")
			delete(repo.Branches, "gone-branch")
			op, err := e.Prune(ctx, wt, engine.PruneOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(decider.Asked).To(BeEmpty())
		})
	})

	Describe("Reset", func() {
		BeforeEach(func() {
			repo.Branches["main"].Behind = 1
		})

		It("saves uncommitted work and leaves it for the user", func() {
			repo.SetStatus(true, false, false)
			decider.Confirms = []bool{true}
			op, err := e.Reset(ctx, wt, engine.ResetOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeSuccess))
			Expect(repo.Calls()).To(ContainElement("reset --hard origin/main"))
			Expect(op.SavePoint).NotTo(BeNil())
			Expect(repo.StashMessages()).To(HaveLen(1))
			Expect(op.Remediation).To(ContainElement(ContainSubstring("git stash pop stash@{0}")))
		})

		It("keeps recovery steps when the save-point cannot be confirmed", func() {
			repo.SetStatus(true, false, false)
			loseStashListAfterPush(repo)
			decider.Confirms = []bool{true}
			op, err := e.Reset(ctx, wt, engine.ResetOptions{})
			Expect(errors.Is(err, stash.ErrUnverified)).To(BeTrue())
			Expect(op.Phase()).To(Equal(model.PhaseNeedsRecovery))
			Expect(op.Remediation).To(ContainElement(ContainSubstring("git stash list")))
			Expect(repo.Called("reset")).To(BeFalse())
		})

		It("discards uncommitted work when forced", func() {
			repo.SetStatus(true, false, false)
			decider.Confirms = []bool{true}
			op, err := e.Reset(ctx, wt, engine.ResetOptions{Force: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.SavePoint).To(BeNil())
			Expect(repo.Called("stash")).To(BeFalse())
			dirty, _, _ := repo.Status()
			Expect(dirty).To(BeFalse())
		})

		It("does nothing when declined", func() {
			decider.Confirms = []bool{false}
			op, err := e.Reset(ctx, wt, engine.ResetOptions{})
			Expect(err).NotTo(HaveOccurred())
			Expect(op.Outcome).To(Equal(model.OutcomeDeclined))
			Expect(repo.Called("reset")).To(BeFalse())
		})

		It("restores local work when the reset fails", func() {
			repo.SetStatus(true, false, false)
			repo.Fail("reset --hard origin/main", gitxtest.Failure{Output: "fatal: Could not reset index file", Code: 128})
			decider.Confirms = []bool{true}
			op, err := e.Reset(ctx, wt, engine.ResetOptions{})
			var oe *engine.OperationError
			Expect(errors.As(err, &oe)).To(BeTrue())
			Expect(op.Outcome).To(Equal(model.OutcomeFailure))
			Expect(repo.StashMessages()).To(BeEmpty())
		})

		It("clears earlier save-points but keeps the new one and foreign entries", func() {
			repo.PushStash("wip on something")
			repo.PushStash("branchkeeper-autostash 2026-01-01T00:00:00Z pid=1: update main")
			repo.PushStash("branchkeeper-autostash 2026-01-02T00:00:00Z pid=2: checkout main")
			repo.SetStatus(true, false, false)
			decider.Confirms = []bool{true, true}
			op, err := e.Reset(ctx, wt, engine.ResetOptions{ClearStashes: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(decider.Asked).To(HaveLen(2))
			Expect(decider.Asked[1]).To(ContainSubstring("Drop 2 save-point(s)"))
			msgs := repo.StashMessages()
			Expect(msgs).To(HaveLen(2))
			Expect(msgs[0]).To(Equal(op.SavePoint.Message))
			Expect(msgs[1]).To(Equal("wip on something"))
		})
	})
})
