package integration

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/toolhive-skill-sync/internal/api"
	"github.com/stacklok/toolhive-skill-sync/internal/discovery"
	"github.com/stacklok/toolhive-skill-sync/internal/filtering"
	"github.com/stacklok/toolhive-skill-sync/internal/github"
	"github.com/stacklok/toolhive-skill-sync/internal/objectstore"
	"github.com/stacklok/toolhive-skill-sync/internal/service"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	skillsync "github.com/stacklok/toolhive-skill-sync/internal/sync"
	"github.com/stacklok/toolhive-skill-sync/internal/sync/state"
	"github.com/stacklok/toolhive-skill-sync/test-integration/skill-sync/helpers"
)

const (
	repoQuery = "topic:claude-skills"
	codeQuery = "filename:SKILL.md"
)

var _ = Describe("Skill sync", func() {
	var (
		fakeGitHub *helpers.FakeGitHub
		st         store.Store
		storage    *objectstore.Memory
		client     github.Client
		manager    skillsync.Manager
		adminAPI   *httptest.Server
		admin      *helpers.AdminClient
	)

	BeforeEach(func() {
		fakeGitHub = helpers.NewFakeGitHub()
		st = store.NewMemory()
		storage = objectstore.NewMemory("http://objects.test")
		client = github.NewClient(
			github.WithBaseURL(fakeGitHub.URL()),
			github.WithRetryTiming(time.Millisecond, time.Millisecond),
		)
		manager = skillsync.NewManager(st, storage, client)
		adminAPI = httptest.NewServer(api.NewServer(service.New(st)))
		admin = helpers.NewAdminClient(adminAPI.URL)
	})

	AfterEach(func() {
		adminAPI.Close()
		fakeGitHub.Close()
	})

	discover := func(queries []string, opts ...discovery.Option) *discovery.Result {
		result, err := discovery.New(client, st, opts...).Run(ctx, queries)
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	// syncRepository runs the two sync steps the workflow runs.
	syncRepository := func(id uuid.UUID) *skillsync.Result {
		fetched, err := manager.FetchSnapshot(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		if fetched.Snapshot == nil {
			return &skillsync.Result{Outcome: fetched.Outcome, RepositoryID: id}
		}
		result, err := manager.ApplySnapshot(ctx, *fetched.Snapshot)
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	Context("with a standalone skills repository", func() {
		var repoID uuid.UUID

		BeforeEach(func() {
			fakeGitHub.
				WithRepository(helpers.FakeRepository{
					Owner:       "acme",
					Name:        "skills",
					Description: "Acme skills",
					Stars:       42,
					Files: map[string]string{
						"skills/alpha/SKILL.md": helpers.SkillFile("alpha", "Alpha skill", "1.0.0"),
						"skills/beta/SKILL.md":  helpers.SkillFile("beta", "Beta skill", ""),
						"README.md":             "# Acme skills\n",
					},
				}).
				WithSearchResult(repoQuery, "acme/skills")

			result := discover([]string{repoQuery})
			Expect(result.Inserted).To(Equal(1))
			Expect(result.RepositoryIDs).To(HaveLen(1))
			repoID = result.RepositoryIDs[0]
		})

		It("should list the discovered repository as pending", func() {
			Expect(admin.Pending()).To(ConsistOf([]uuid.UUID{repoID}))

			repo := admin.Repository(repoID)
			Expect(repo.FullName).To(Equal("acme/skills"))
			Expect(repo.Description).To(Equal("Acme skills"))
			Expect(repo.Stars).To(Equal(int64(42)))
			Expect(repo.Status).To(Equal(string(store.StatusActive)))
			Expect(repo.LastSyncedAt).To(BeNil())
			Expect(repo.Skills).To(BeEmpty())
		})

		It("should sync every skill and serve it through the admin API", func() {
			result := syncRepository(repoID)
			Expect(result.Outcome).To(Equal(skillsync.OutcomeUpdated))
			Expect(result.SkillsFound).To(Equal(2))
			Expect(result.SkillsWritten).To(Equal(2))

			repo := admin.Repository(repoID)
			Expect(repo.RepoType).To(Equal(string(store.RepoTypeStandalone)))
			Expect(repo.LastSyncedAt).NotTo(BeNil())

			skills := helpers.SkillsByName(repo)
			Expect(skills).To(HaveLen(2))
			Expect(skills["alpha"].LatestVersion).To(Equal("1.0.0"))
			Expect(skills["alpha"].Active).To(BeTrue())
			Expect(skills["beta"].LatestVersion).To(HavePrefix("0.0."))

			Expect(storage.Uploads(skillsync.SkillKey("alpha", "1.0.0"))).To(Equal(1))
		})

		It("should not rewrite unchanged skills on resync", func() {
			Expect(syncRepository(repoID).Outcome).To(Equal(skillsync.OutcomeUpdated))

			result := syncRepository(repoID)
			Expect(result.Outcome).To(Equal(skillsync.OutcomeUnchanged))
			Expect(result.SkillsWritten).To(BeZero())

			Expect(fakeGitHub.Downloads("acme", "skills")).To(Equal(2))
			Expect(storage.Uploads(skillsync.SkillKey("alpha", "1.0.0"))).To(Equal(1))
		})

		It("should deactivate skills removed upstream", func() {
			Expect(syncRepository(repoID).Outcome).To(Equal(skillsync.OutcomeUpdated))

			fakeGitHub.WithRepository(helpers.FakeRepository{
				Owner: "acme",
				Name:  "skills",
				Files: map[string]string{
					"skills/alpha/SKILL.md": helpers.SkillFile("alpha", "Alpha skill", "1.0.0"),
				},
			})

			result := syncRepository(repoID)
			Expect(result.Outcome).To(Equal(skillsync.OutcomeUpdated))
			Expect(result.Deactivated).To(Equal(int64(1)))

			skills := helpers.SkillsByName(admin.Repository(repoID))
			Expect(skills["alpha"].Active).To(BeTrue())
			Expect(skills["beta"].Active).To(BeFalse())
		})

		It("should report a repository deleted upstream as not found", func() {
			fakeGitHub.WithoutRepository("acme", "skills")

			Expect(syncRepository(repoID).Outcome).To(Equal(skillsync.OutcomeNotFound))
			Expect(admin.Repository(repoID).Status).To(Equal(string(store.StatusActive)))
		})
	})

	Context("with a marketplace repository", func() {
		It("should sync the plugins the manifest lists", func() {
			fakeGitHub.
				WithRepository(helpers.FakeRepository{
					Owner: "acme",
					Name:  "marketplace",
					Files: helpers.MarketplaceFiles("2.0.0"),
				}).
				WithSearchResult(codeQuery, "acme/marketplace")

			result := discover([]string{codeQuery})
			Expect(result.RepositoryIDs).To(HaveLen(1))
			repoID := result.RepositoryIDs[0]

			synced := syncRepository(repoID)
			Expect(synced.Outcome).To(Equal(skillsync.OutcomeUpdated))
			Expect(synced.RepoType).To(Equal(string(store.RepoTypeMarketplace)))
			Expect(synced.PluginsWritten).To(Equal(1))

			repo := admin.Repository(repoID)
			Expect(repo.RepoType).To(Equal(string(store.RepoTypeMarketplace)))
			Expect(repo.Skills).To(BeEmpty())
			Expect(repo.Plugins).To(HaveLen(1))
			Expect(repo.Plugins[0].Name).To(Equal("tools"))
			Expect(repo.Plugins[0].Description).To(Equal("Tooling"))
			Expect(repo.Plugins[0].LatestVersion).To(Equal("2.0.0"))
			Expect(repo.Plugins[0].Active).To(BeTrue())

			Expect(storage.Uploads(skillsync.PluginKey("tools", "2.0.0"))).To(Equal(1))
		})
	})

	Context("with a repository that publishes no skill", func() {
		var repoID uuid.UUID

		BeforeEach(func() {
			fakeGitHub.
				WithRepository(helpers.FakeRepository{
					Owner: "acme",
					Name:  "empty",
					Files: map[string]string{"README.md": "# Nothing here\n"},
				}).
				WithSearchResult(repoQuery, "acme/empty")

			result := discover([]string{repoQuery})
			Expect(result.RepositoryIDs).To(HaveLen(1))
			repoID = result.RepositoryIDs[0]
		})

		It("should blacklist the repository", func() {
			result := syncRepository(repoID)
			Expect(result.Outcome).To(Equal(skillsync.OutcomeBlacklisted))
			Expect(result.Reason).To(Equal(state.ReasonNoValidSkill))

			repo := admin.Repository(repoID)
			Expect(repo.Status).To(Equal(string(store.StatusBlacklisted)))
			Expect(repo.BlacklistReason).To(Equal(state.ReasonNoValidSkill))
			Expect(repo.BlacklistedAt).NotTo(BeNil())
			Expect(admin.Pending()).NotTo(ContainElement(repoID))
		})

		It("should skip the blacklisted repository afterwards", func() {
			Expect(syncRepository(repoID).Outcome).To(Equal(skillsync.OutcomeBlacklisted))

			result := discover([]string{repoQuery})
			Expect(result.Inserted).To(BeZero())
			Expect(result.Skipped).To(Equal(1))

			Expect(syncRepository(repoID).Outcome).To(Equal(skillsync.OutcomeSkippedBlacklisted))
			Expect(fakeGitHub.Downloads("acme", "empty")).To(Equal(1))
		})
	})

	Context("discovery", func() {
		BeforeEach(func() {
			for _, name := range []string{"skills", "skills-archive"} {
				fakeGitHub.WithRepository(helpers.FakeRepository{
					Owner: "acme",
					Name:  name,
					Files: map[string]string{"SKILL.md": helpers.SkillFile("alpha", "Alpha skill", "")},
				})
			}
			fakeGitHub.
				WithSearchResult(repoQuery, "acme/skills", "acme/skills-archive").
				WithSearchResult(codeQuery, "acme/skills")
		})

		It("should dedupe hits across queries", func() {
			result := discover([]string{repoQuery, codeQuery})
			Expect(result.Inserted).To(Equal(2))
			Expect(result.Updated).To(BeZero())

			result = discover([]string{repoQuery})
			Expect(result.Inserted).To(BeZero())
			Expect(result.Updated).To(Equal(2))
		})

		It("should skip repositories rejected by the name filter", func() {
			filter, err := filtering.NewNameFilter(nil, []string{"*-archive"})
			Expect(err).NotTo(HaveOccurred())

			result := discover([]string{repoQuery}, discovery.WithFilter(filter))
			Expect(result.Inserted).To(Equal(1))
			Expect(result.Skipped).To(Equal(1))

			status, _ := admin.Get("/v1/repositories/pending?limit=0")
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(admin.Pending()).To(HaveLen(1))
		})
	})
})
