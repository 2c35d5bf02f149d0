package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-skill-sync/internal/validators"
)

// stepClock advances by one second on every call so ordering by timestamp is stable.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type storeFactory func(t *testing.T, clock *stepClock) Store

type storeCase struct {
	name string
	run  func(t *testing.T, s Store, clock *stepClock)
}

//nolint:thelper // We want to see these lines in the test output
func discover(t *testing.T, s Store, owner, name string) uuid.UUID {
	id, inserted, err := s.UpsertDiscoveredRepository(context.Background(), DiscoveredRepository{
		Platform: "github",
		Owner:    owner,
		Name:     name,
		URL:      "https://github.com/" + owner + "/" + name,
		Stars:    3,
	})
	require.NoError(t, err)
	require.True(t, inserted)
	return id
}

func storeCases() []storeCase {
	return []storeCase{
		{
			name: "discovered repository upsert reports insert then update",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, _ *stepClock) {
				ctx := context.Background()
				id := discover(t, s, "acme", "skills")

				again, inserted, err := s.UpsertDiscoveredRepository(ctx, DiscoveredRepository{
					Platform:    "github",
					Owner:       "acme",
					Name:        "skills",
					URL:         "https://github.com/acme/skills",
					Description: "refreshed",
					Stars:       99,
				})
				require.NoError(t, err)
				assert.False(t, inserted)
				assert.Equal(t, id, again)

				repo, err := s.GetRepository(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, int64(99), repo.Stars)
				assert.Equal(t, "refreshed", repo.Description)
				assert.Equal(t, StatusActive, repo.Status)
				assert.Equal(t, "acme/skills", repo.FullName())
			},
		},
		{
			name: "unknown repository is not found",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, _ *stepClock) {
				_, err := s.GetRepository(context.Background(), uuid.New())
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrNotFound))
			},
		},
		{
			name: "pending repositories are ordered never synced first",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, clock *stepClock) {
				ctx := context.Background()
				first := discover(t, s, "acme", "one")
				second := discover(t, s, "acme", "two")
				third := discover(t, s, "acme", "three")

				require.NoError(t, s.MarkRepositorySynced(ctx, first, RepoTypeStandalone, clock.Now()))
				require.NoError(t, s.BlacklistRepository(ctx, third, "Invalid zip archive", clock.Now()))

				ids, err := s.ListPendingRepositoryIDs(ctx, 0)
				require.NoError(t, err)
				assert.Equal(t, []uuid.UUID{second, first}, ids)

				ids, err = s.ListPendingRepositoryIDs(ctx, 1)
				require.NoError(t, err)
				assert.Equal(t, []uuid.UUID{second}, ids)

				repo, err := s.GetRepository(ctx, first)
				require.NoError(t, err)
				assert.Equal(t, RepoTypeStandalone, repo.RepoType)
				require.NotNil(t, repo.LastSyncedAt)
			},
		},
		{
			name: "blacklist lifecycle expires and reactivates",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, clock *stepClock) {
				ctx := context.Background()
				id := discover(t, s, "acme", "broken")
				require.NoError(t, s.MarkRepositorySynced(ctx, id, RepoTypeMarketplace, clock.Now()))

				blacklistedAt := clock.Now()
				require.NoError(t, s.BlacklistRepository(ctx, id, "No valid SKILL.md found", blacklistedAt))

				repo, err := s.GetRepository(ctx, id)
				require.NoError(t, err)
				assert.True(t, repo.IsBlacklisted())
				assert.Equal(t, "No valid SKILL.md found", repo.BlacklistReason)
				require.NotNil(t, repo.BlacklistedAt)

				blacklisted, err := s.IsBlacklisted(ctx, repo.URL)
				require.NoError(t, err)
				assert.True(t, blacklisted)

				expired, reactivated, err := s.ExpireBlacklist(ctx, blacklistedAt)
				require.NoError(t, err)
				assert.Empty(t, expired)
				assert.Zero(t, reactivated)

				expired, reactivated, err = s.ExpireBlacklist(ctx, blacklistedAt.Add(31*24*time.Hour))
				require.NoError(t, err)
				assert.Equal(t, []string{repo.URL}, expired)
				assert.Equal(t, int64(1), reactivated)

				repo, err = s.GetRepository(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, StatusActive, repo.Status)
				assert.Empty(t, repo.BlacklistReason)
				assert.Nil(t, repo.BlacklistedAt)
				assert.Equal(t, RepoTypeUnknown, repo.RepoType)

				blacklisted, err = s.IsBlacklisted(ctx, repo.URL)
				require.NoError(t, err)
				assert.False(t, blacklisted)
			},
		},
		{
			name: "blacklisting an unknown repository fails",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, clock *stepClock) {
				err := s.BlacklistRepository(context.Background(), uuid.New(), "gone", clock.Now())
				assert.True(t, errors.Is(err, ErrNotFound))
			},
		},
		{
			name: "skill versions overwrite on same version and track latest",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, _ *stepClock) {
				ctx := context.Background()
				repoID := discover(t, s, "acme", "skills")

				sk, err := s.UpsertSkill(ctx, repoID, "test-skill")
				require.NoError(t, err)
				assert.True(t, sk.IsActive)

				_, err = s.GetSkillVersion(ctx, sk.ID, "1.0.0")
				assert.True(t, errors.Is(err, ErrNotFound))

				v, err := s.SaveSkillVersion(ctx, sk.ID, VersionWrite{
					Version:       "1.0.0",
					Description:   "first",
					StorageKey:    "skills/test-skill/1.0.0.zip",
					FileHash:      "aaa",
					Metadata:      map[string]any{"version": "1.0.0"},
					LatestVersion: "1.0.0",
				})
				require.NoError(t, err)
				assert.Equal(t, "aaa", v.FileHash)

				_, err = s.SaveSkillVersion(ctx, sk.ID, VersionWrite{
					Version:       "1.0.0",
					Description:   "second",
					StorageKey:    "skills/test-skill/1.0.0.zip",
					FileHash:      "bbb",
					LatestVersion: "1.0.0",
				})
				require.NoError(t, err)

				got, err := s.GetSkillVersion(ctx, sk.ID, "1.0.0")
				require.NoError(t, err)
				assert.Equal(t, "bbb", got.FileHash)
				assert.Equal(t, "second", got.Description)
				assert.Nil(t, got.Metadata)

				listed, err := s.ListSkillVersions(ctx, sk.ID)
				require.NoError(t, err)
				assert.Len(t, listed, 1)

				skills, err := s.ListSkills(ctx, repoID)
				require.NoError(t, err)
				require.Len(t, skills, 1)
				assert.Equal(t, "1.0.0", skills[0].LatestVersion)
			},
		},
		{
			name: "missing skills are deactivated and found again",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, _ *stepClock) {
				ctx := context.Background()
				repoID := discover(t, s, "acme", "skills")

				kept, err := s.UpsertSkill(ctx, repoID, "kept")
				require.NoError(t, err)
				assert.False(t, kept.Reactivated)
				_, err = s.UpsertSkill(ctx, repoID, "dropped")
				require.NoError(t, err)

				n, err := s.DeactivateMissingSkills(ctx, repoID, []string{"kept"})
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)

				skills, err := s.ListSkills(ctx, repoID)
				require.NoError(t, err)
				require.Len(t, skills, 2)
				assert.Equal(t, "dropped", skills[0].Name)
				assert.False(t, skills[0].IsActive)
				assert.True(t, skills[1].IsActive)

				again, err := s.UpsertSkill(ctx, repoID, "dropped")
				require.NoError(t, err)
				assert.True(t, again.IsActive)
				assert.True(t, again.Reactivated)

				kept, err = s.UpsertSkill(ctx, repoID, "kept")
				require.NoError(t, err)
				assert.False(t, kept.Reactivated)

				n, err = s.DeactivateMissingSkills(ctx, repoID, nil)
				require.NoError(t, err)
				assert.Equal(t, int64(2), n)
			},
		},
		{
			name: "plugin version replaces its components",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, _ *stepClock) {
				ctx := context.Background()
				repoID := discover(t, s, "acme", "marketplace")

				_, err := s.GetPlugin(ctx, repoID, "tools")
				assert.True(t, errors.Is(err, ErrNotFound))

				upsert := PluginUpsert{Name: "tools", Source: "./plugins/tools", Strict: true}
				write := VersionWrite{
					Version:       "0.1.0",
					StorageKey:    "plugins/tools/0.1.0.zip",
					FileHash:      "h1",
					Metadata:      map[string]any{"strict": true},
					LatestVersion: "0.1.0",
				}
				p, v, err := s.SavePluginVersion(ctx, repoID, upsert, write, []PluginComponent{
					{Kind: ComponentSkill, Path: "skills/a/SKILL.md", Name: "a", Body: "a"},
					{Kind: ComponentCommand, Path: "commands/review.md", Name: "review", Body: "review"},
					{Kind: ComponentAgent, Path: "agents/helper.md", Name: "helper", Body: "helper"},
				})
				require.NoError(t, err)
				assert.True(t, p.Strict)
				assert.True(t, p.IsActive)
				assert.Equal(t, "0.1.0", p.LatestVersion)

				got, err := s.GetPlugin(ctx, repoID, "tools")
				require.NoError(t, err)
				assert.Equal(t, p.ID, got.ID)

				components, err := s.ListPluginComponents(ctx, v.ID)
				require.NoError(t, err)
				require.Len(t, components, 3)
				assert.Equal(t, ComponentCommand, components[0].Kind)
				assert.Equal(t, ComponentAgent, components[1].Kind)
				assert.Equal(t, ComponentSkill, components[2].Kind)

				write.FileHash = "h2"
				p2, v2, err := s.SavePluginVersion(ctx, repoID, upsert, write, []PluginComponent{
					{Kind: ComponentCommand, Path: "commands/review.md", Name: "review", Body: "changed"},
				})
				require.NoError(t, err)
				assert.Equal(t, p.ID, p2.ID)
				assert.Equal(t, v.ID, v2.ID)

				components, err = s.ListPluginComponents(ctx, v.ID)
				require.NoError(t, err)
				require.Len(t, components, 1)
				assert.Equal(t, "changed", components[0].Body)

				stored, err := s.GetPluginVersion(ctx, p.ID, "0.1.0")
				require.NoError(t, err)
				assert.Equal(t, "h2", stored.FileHash)
				assert.Equal(t, true, stored.Metadata["strict"])

				plugins, err := s.ListPlugins(ctx, repoID)
				require.NoError(t, err)
				require.Len(t, plugins, 1)
				assert.Equal(t, "0.1.0", plugins[0].LatestVersion)

				n, err := s.DeactivateMissingPlugins(ctx, repoID, nil)
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)
			},
		},
		{
			name: "inactive plugin is reported as reactivated",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, _ *stepClock) {
				ctx := context.Background()
				repoID := discover(t, s, "acme", "marketplace")
				upsert := PluginUpsert{Name: "tools", Source: "./plugins/tools"}

				p, err := s.UpsertPlugin(ctx, repoID, upsert)
				require.NoError(t, err)
				assert.False(t, p.Reactivated)

				n, err := s.DeactivateMissingPlugins(ctx, repoID, nil)
				require.NoError(t, err)
				assert.Equal(t, int64(1), n)

				again, err := s.UpsertPlugin(ctx, repoID, upsert)
				require.NoError(t, err)
				assert.Equal(t, p.ID, again.ID)
				assert.True(t, again.IsActive)
				assert.True(t, again.Reactivated)

				_, err = s.DeactivateMissingPlugins(ctx, repoID, nil)
				require.NoError(t, err)
				saved, _, err := s.SavePluginVersion(ctx, repoID, upsert, VersionWrite{
					Version:       "1.0.0",
					FileHash:      "h",
					LatestVersion: "1.0.0",
				}, nil)
				require.NoError(t, err)
				assert.True(t, saved.IsActive)
				assert.True(t, saved.Reactivated)

				stored, err := s.GetPlugin(ctx, repoID, "tools")
				require.NoError(t, err)
				assert.True(t, stored.IsActive)
				assert.False(t, stored.Reactivated)
			},
		},
		{
			name: "component metadata that cannot be stored rolls back the plugin",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, _ *stepClock) {
				ctx := context.Background()
				repoID := discover(t, s, "acme", "marketplace")

				_, _, err := s.SavePluginVersion(ctx, repoID, PluginUpsert{Name: "tools"}, VersionWrite{
					Version:  "1.0.0",
					FileHash: "h",
				}, []PluginComponent{
					{Kind: ComponentCommand, Path: "commands/ok.md", Name: "ok"},
					{
						Kind:     ComponentCommand,
						Path:     "commands/keys.md",
						Name:     "keys",
						Metadata: map[string]any{"tags": map[any]any{1: "first"}},
					},
				})
				require.Error(t, err)
				assert.ErrorIs(t, err, validators.ErrInvalidMetadata)

				_, err = s.GetPlugin(ctx, repoID, "tools")
				assert.True(t, errors.Is(err, ErrNotFound))
			},
		},
		{
			name: "oversized metadata is rejected",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, _ *stepClock) {
				ctx := context.Background()
				repoID := discover(t, s, "acme", "big")
				sk, err := s.UpsertSkill(ctx, repoID, "big")
				require.NoError(t, err)

				_, err = s.SaveSkillVersion(ctx, sk.ID, VersionWrite{
					Version:  "1.0.0",
					FileHash: "x",
					Metadata: map[string]any{"blob": string(make([]byte, 64))},
				})
				require.Error(t, err)
				assert.ErrorIs(t, err, validators.ErrInvalidMetadata)
			},
		},
		{
			name: "discovery registry keeps its schedule on upsert",
			//nolint:thelper // We want to see these lines in the test output
			run: func(t *testing.T, s Store, clock *stepClock) {
				ctx := context.Background()
				reg, err := s.UpsertDiscoveryRegistry(ctx, DiscoveryRegistry{
					Name:     "github-skills",
					Platform: "github",
					Queries:  []string{"filename:SKILL.md"},
				})
				require.NoError(t, err)
				assert.Equal(t, DefaultDiscoveryInterval, reg.Interval)
				require.NotNil(t, reg.NextRunAt)

				due, err := s.ListDueDiscoveryRegistries(ctx, clock.Now())
				require.NoError(t, err)
				require.Len(t, due, 1)

				ranAt := clock.Now()
				require.NoError(t, s.RecordDiscoveryRun(ctx, reg.ID, ranAt, ranAt.Add(time.Hour), "ok"))

				updated, err := s.UpsertDiscoveryRegistry(ctx, DiscoveryRegistry{
					Name:     "github-skills",
					Platform: "github",
					Queries:  []string{"filename:SKILL.md", "claude skills"},
					Interval: time.Hour,
				})
				require.NoError(t, err)
				assert.Equal(t, reg.ID, updated.ID)
				assert.Len(t, updated.Queries, 2)
				require.NotNil(t, updated.NextRunAt)
				assert.True(t, updated.NextRunAt.Equal(ranAt.Add(time.Hour)))

				due, err = s.ListDueDiscoveryRegistries(ctx, clock.Now())
				require.NoError(t, err)
				assert.Empty(t, due)

				got, err := s.GetDiscoveryRegistry(ctx, reg.ID)
				require.NoError(t, err)
				assert.Equal(t, "ok", got.LastStatus)
				assert.Equal(t, time.Hour, got.Interval)
			},
		},
	}
}

//nolint:thelper // We want to see these lines in the test output
func runStoreSuite(t *testing.T, factory storeFactory) {
	for _, tc := range storeCases() {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			clock := newStepClock()
			tc.run(t, factory(t, clock), clock)
		})
	}
}
