package stash_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/branchkeeper/internal/gitx"
	"github.com/skaphos/branchkeeper/internal/gitx/gitxtest"
	"github.com/skaphos/branchkeeper/internal/stash"
	"github.com/skaphos/branchkeeper/internal/vcs"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC)

const expectedMessage = "branchkeeper-autostash 2026-03-14T15:09:26.535897932Z pid=4242: checkout feature"

func newCoordinator(repo *gitxtest.Repo) *stash.Coordinator {
	c := stash.NewCoordinator(vcs.NewGitAdapter(repo), repo.Dir)
	c.Now = func() time.Time { return fixedNow }
	c.PID = 4242
	return c
}

var _ = Describe("Coordinator", func() {
	var (
		ctx  context.Context
		repo *gitxtest.Repo
		c    *stash.Coordinator
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = gitxtest.New()
		c = newCoordinator(repo)
	})

	Describe("Message", func() {
		It("embeds prefix, timestamp, pid, and description", func() {
			Expect(c.Message("checkout feature", fixedNow)).To(Equal(expectedMessage))
		})

		It("differs for instants a nanosecond apart", func() {
			a := c.Message("x", fixedNow)
			b := c.Message("x", fixedNow.Add(time.Nanosecond))
			Expect(a).NotTo(Equal(b))
		})

		It("uses a custom prefix", func() {
			c.Prefix = "mine"
			Expect(c.Message("", fixedNow)).To(HavePrefix("mine 2026-03-14T15:09:26"))
		})
	})

	Describe("Guard", func() {
		It("is a no-op on a clean tree", func() {
			sp, err := c.Guard(ctx, "checkout feature")
			Expect(err).NotTo(HaveOccurred())
			Expect(sp).To(BeNil())
			Expect(repo.Called("stash")).To(BeFalse())
		})

		It("creates and verifies a save-point for uncommitted work", func() {
			repo.SetStatus(true, true, true)
			sp, err := c.Guard(ctx, "checkout feature")
			Expect(err).NotTo(HaveOccurred())
			Expect(sp).NotTo(BeNil())
			Expect(sp.Reference).To(Equal("stash@{0}"))
			Expect(sp.Message).To(Equal(expectedMessage))
			Expect(sp.CreatedAt).To(Equal(fixedNow))
			Expect(sp.IncludesUntracked).To(BeTrue())
			Expect(repo.Calls()).To(ContainElement("stash push --include-untracked -m " + expectedMessage))
			dirty, staged, untracked := repo.Status()
			Expect([]bool{dirty, staged, untracked}).To(Equal([]bool{false, false, false}))
		})

		It("ignores untracked-only trees when untracked capture is off", func() {
			c.IncludeUntracked = false
			repo.SetStatus(false, false, true)
			sp, err := c.Guard(ctx, "update")
			Expect(err).NotTo(HaveOccurred())
			Expect(sp).To(BeNil())
		})

		It("retries without untracked files when the first push fails", func() {
			repo.SetStatus(true, false, true)
			repo.Fail("stash push --include-untracked*", gitxtest.Failure{
				Output: "error: could not write untracked file", Code: 1,
			})
			sp, err := c.Guard(ctx, "checkout feature")
			Expect(err).NotTo(HaveOccurred())
			Expect(sp.IncludesUntracked).To(BeFalse())
			Expect(repo.Calls()).To(ContainElement("stash push -m " + expectedMessage))
		})

		It("fails with an integrity error when both pushes fail", func() {
			repo.SetStatus(true, false, false)
			repo.Fail("stash push*", gitxtest.Failure{Output: "fatal: index.lock exists", Code: 128})
			_, err := c.Guard(ctx, "checkout feature")
			Expect(errors.Is(err, stash.ErrUnverified)).To(BeTrue())
			var ie *stash.IntegrityError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.Output).To(ContainSubstring("index.lock"))
			Expect(gitx.ExitCode(ie.Err)).To(Equal(128))
			Expect(ie.Pushed).To(BeFalse())
		})

		It("fails when the push reports success but nothing was stashed", func() {
			repo.SetStatus(true, false, false)
			repo.Fail("stash push*", gitxtest.Failure{Output: "No local changes to save"})
			_, err := c.Guard(ctx, "checkout feature")
			var ie *stash.IntegrityError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.Before).To(Equal(0))
			Expect(ie.After).To(Equal(0))
			Expect(ie.Pushed).To(BeTrue())
		})

		It("marks the error as pushed when the stash cannot be listed afterwards", func() {
			repo.SetStatus(true, false, false)
			repo.Fail("stash push*", gitxtest.Failure{Output: "Saved", Effect: func(r *gitxtest.Repo) {
				r.Stash = append([]gitxtest.StashEntry{{Message: expectedMessage}}, r.Stash...)
				r.Failures["stash list*"] = gitxtest.Failure{Output: "fatal: unable to read stash", Code: 128}
			}})
			_, err := c.Guard(ctx, "checkout feature")
			var ie *stash.IntegrityError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.Pushed).To(BeTrue())
			Expect(gitx.ExitCode(ie.Err)).To(Equal(128))
		})

		It("fails when the stash grew by more than one entry", func() {
			repo.SetStatus(true, false, false)
			repo.Fail("stash push*", gitxtest.Failure{Output: "Saved", Effect: func(r *gitxtest.Repo) {
				r.Stash = append([]gitxtest.StashEntry{{Message: expectedMessage}, {Message: "WIP on main: other"}}, r.Stash...)
			}})
			_, err := c.Guard(ctx, "checkout feature")
			Expect(err).To(MatchError(stash.ErrUnverified))
			var ie *stash.IntegrityError
			Expect(errors.As(err, &ie)).To(BeTrue())
			Expect(ie.After).To(Equal(2))
		})

		It("fails when the newest entry carries another message", func() {
			repo.SetStatus(true, false, false)
			repo.Fail("stash push*", gitxtest.Failure{Output: "Saved", Effect: func(r *gitxtest.Repo) {
				r.Stash = append([]gitxtest.StashEntry{{Message: "WIP on main: foreign"}}, r.Stash...)
			}})
			_, err := c.Guard(ctx, "checkout feature")
			Expect(err).To(MatchError(stash.ErrUnverified))
		})

		It("surfaces status probe errors", func() {
			repo.Fail("diff --quiet", gitxtest.Failure{Output: "fatal: bad object", Code: 128})
			_, err := c.Guard(ctx, "update")
			Expect(err).To(MatchError(ContainSubstring("working tree status")))
		})
	})

	Describe("Restore", func() {
		It("skips a nil save-point", func() {
			res := c.Restore(ctx, nil)
			Expect(res.Outcome).To(Equal(stash.RestoreSkipped))
			Expect(res.OK()).To(BeTrue())
		})

		It("round-trips the working tree status", func() {
			repo.SetStatus(true, true, false)
			sp, err := c.Guard(ctx, "update")
			Expect(err).NotTo(HaveOccurred())

			res := c.Restore(ctx, sp)
			Expect(res.Outcome).To(Equal(stash.RestoreSuccess))
			Expect(res.Reference).To(Equal("stash@{0}"))
			dirty, staged, untracked := repo.Status()
			Expect([]bool{dirty, staged, untracked}).To(Equal([]bool{true, true, false}))
			Expect(repo.StashMessages()).To(BeEmpty())
		})

		It("resolves the save-point by message after other stashes land", func() {
			repo.SetStatus(true, false, false)
			sp, err := c.Guard(ctx, "update")
			Expect(err).NotTo(HaveOccurred())
			repo.PushStash("WIP on main: someone else")

			res := c.Restore(ctx, sp)
			Expect(res.Outcome).To(Equal(stash.RestoreSuccess))
			Expect(res.Reference).To(Equal("stash@{1}"))
			Expect(repo.StashMessages()).To(Equal([]string{"WIP on main: someone else"}))
		})

		It("reports a conflict and keeps the entry", func() {
			repo.SetStatus(true, false, false)
			sp, err := c.Guard(ctx, "update")
			Expect(err).NotTo(HaveOccurred())
			repo.Fail("stash pop*", gitxtest.Failure{Output: "CONFLICT (content): Merge conflict in app.go", Code: 1})

			res := c.Restore(ctx, sp)
			Expect(res.Outcome).To(Equal(stash.RestoreConflict))
			Expect(res.OK()).To(BeFalse())
			Expect(repo.StashMessages()).To(HaveLen(1))
		})

		It("uses the injected conflict classifier", func() {
			c.Conflicts = gitx.ConflictFunc(func(string) bool { return true })
			repo.SetStatus(true, false, false)
			sp, _ := c.Guard(ctx, "update")
			repo.Fail("stash pop*", gitxtest.Failure{Output: "anything", Code: 1})
			Expect(c.Restore(ctx, sp).Outcome).To(Equal(stash.RestoreConflict))
		})

		It("reports other pop errors as failures", func() {
			repo.SetStatus(true, false, false)
			sp, _ := c.Guard(ctx, "update")
			repo.Fail("stash pop*", gitxtest.Failure{Output: "error: Your local changes would be overwritten", Code: 1})
			res := c.Restore(ctx, sp)
			Expect(res.Outcome).To(Equal(stash.RestoreFailure))
			Expect(res.Output).To(ContainSubstring("overwritten"))
		})

		It("fails when the save-point has disappeared", func() {
			repo.SetStatus(true, false, false)
			sp, _ := c.Guard(ctx, "update")
			_, err := repo.Run(ctx, repo.Dir, "stash", "drop", "stash@{0}")
			Expect(err).NotTo(HaveOccurred())
			res := c.Restore(ctx, sp)
			Expect(res.Outcome).To(Equal(stash.RestoreFailure))
			Expect(res.Err).To(MatchError(stash.ErrSavePointMissing))
		})
	})

	Describe("Owned and Clear", func() {
		It("drops only prefixed entries", func() {
			repo.PushStash("branchkeeper-autostash 1 pid=1: update")
			repo.PushStash("WIP on main: mine")
			repo.PushStash("branchkeeper-autostash 2 pid=1: reset")

			owned, err := c.Owned(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(owned).To(HaveLen(2))

			n, err := c.Clear(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(repo.StashMessages()).To(Equal([]string{"WIP on main: mine"}))
		})

		It("keeps the save-point it was asked to keep", func() {
			repo.PushStash("branchkeeper-autostash 1 pid=1: update")
			repo.SetStatus(true, false, false)
			sp, err := c.Guard(ctx, "reset")
			Expect(err).NotTo(HaveOccurred())

			n, err := c.Clear(ctx, sp)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
			Expect(repo.StashMessages()).To(Equal([]string{sp.Message}))
		})

		It("stops at the first failed drop", func() {
			repo.PushStash("branchkeeper-autostash 1 pid=1: update")
			repo.Fail("stash drop*", gitxtest.Failure{Output: "error: refusing", Code: 1})
			n, err := c.Clear(ctx, nil)
			Expect(n).To(Equal(0))
			Expect(err).To(MatchError(ContainSubstring("refusing")))
		})
	})
})
