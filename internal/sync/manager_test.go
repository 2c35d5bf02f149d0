package sync_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-skill-sync/internal/archive"
	"github.com/stacklok/toolhive-skill-sync/internal/github"
	ghmocks "github.com/stacklok/toolhive-skill-sync/internal/github/mocks"
	"github.com/stacklok/toolhive-skill-sync/internal/marketplace"
	"github.com/stacklok/toolhive-skill-sync/internal/objectstore"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	skillsync "github.com/stacklok/toolhive-skill-sync/internal/sync"
	"github.com/stacklok/toolhive-skill-sync/internal/sync/state"
	"github.com/stacklok/toolhive-skill-sync/internal/versions"
)

const testSkill = "---\nname: test-skill\ndescription: test description\nmetadata:\n  version: 1.0.0\n---\n# Test skill\n"

var fixedNow = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store   store.Store
	storage *objectstore.Memory
	github  *ghmocks.MockClient
	manager skillsync.Manager
	repo    *store.Repository
}

//nolint:thelper // We want to see these lines in the test output
func newFixture(t *testing.T, opts ...skillsync.Option) *fixture {
	ctrl := gomock.NewController(t)
	st := store.NewMemory()
	storage := objectstore.NewMemory("")
	gh := ghmocks.NewMockClient(ctrl)

	ctx := context.Background()
	id, _, err := st.UpsertDiscoveredRepository(ctx, store.DiscoveredRepository{
		Platform: "github",
		Owner:    "acme",
		Name:     "skills",
		URL:      "https://github.com/acme/skills",
	})
	require.NoError(t, err)
	repo, err := st.GetRepository(ctx, id)
	require.NoError(t, err)

	return &fixture{
		store:   st,
		storage: storage,
		github:  gh,
		manager: skillsync.NewManager(st, storage, gh,
			append([]skillsync.Option{skillsync.WithClock(func() time.Time { return fixedNow })}, opts...)...),
		repo:    repo,
	}
}

// zipball packs files under a single wrapping directory, the way code hosts
// build repository archives.
//
//nolint:thelper // We want to see these lines in the test output
func zipball(t *testing.T, files map[string]string) []byte {
	wrapped := archive.Files{}
	for p, content := range files {
		wrapped["acme-skills-0a1b2c3/"+p] = []byte(content)
	}
	data, err := archive.Pack(wrapped)
	require.NoError(t, err)
	return data
}

//nolint:thelper // We want to see these lines in the test output
func (f *fixture) apply(t *testing.T, files map[string]string) *skillsync.Result {
	result, err := f.manager.Apply(context.Background(), f.repo, zipball(t, files))
	require.NoError(t, err)
	return result
}

//nolint:thelper // We want to see these lines in the test output
func (f *fixture) skills(t *testing.T) map[string]store.Skill {
	list, err := f.store.ListSkills(context.Background(), f.repo.ID)
	require.NoError(t, err)
	out := make(map[string]store.Skill, len(list))
	for _, s := range list {
		out[s.Name] = s
	}
	return out
}

//nolint:thelper // We want to see these lines in the test output
func (f *fixture) plugins(t *testing.T) map[string]store.Plugin {
	list, err := f.store.ListPlugins(context.Background(), f.repo.ID)
	require.NoError(t, err)
	out := make(map[string]store.Plugin, len(list))
	for _, p := range list {
		out[p.Name] = p
	}
	return out
}

func TestApply_StandaloneSkillIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	files := map[string]string{
		"skills/test/SKILL.md":  testSkill,
		"skills/test/helper.py": "print('hi')\n",
		"README.md":             "# repo",
	}

	first := f.apply(t, files)
	assert.Equal(t, skillsync.OutcomeUpdated, first.Outcome)
	assert.Equal(t, string(store.RepoTypeStandalone), first.RepoType)
	assert.Equal(t, 1, first.SkillsFound)
	assert.Equal(t, 1, first.SkillsWritten)

	skills := f.skills(t)
	require.Contains(t, skills, "test-skill")
	assert.Equal(t, "1.0.0", skills["test-skill"].LatestVersion)
	assert.True(t, skills["test-skill"].IsActive)

	stored, err := f.store.GetSkillVersion(ctx, skills["test-skill"].ID, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "test description", stored.Description)
	assert.Equal(t, "skills/test-skill/1.0.0.zip", stored.StorageKey)
	assert.Equal(t, "skills/test/SKILL.md", stored.Metadata["path"])
	assert.Equal(t, versions.ContentHash(archive.Files{
		"SKILL.md":  []byte(testSkill),
		"helper.py": []byte("print('hi')\n"),
	}), stored.FileHash)
	assert.Equal(t, 1, f.storage.Uploads(stored.StorageKey))

	packed, err := f.storage.Download(ctx, stored.StorageKey)
	require.NoError(t, err)
	unpacked, err := archive.Normalize(packed)
	require.NoError(t, err)
	assert.Equal(t, []string{"SKILL.md", "helper.py"}, unpacked.Paths())

	repo, err := f.store.GetRepository(ctx, f.repo.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RepoTypeStandalone, repo.RepoType)
	require.NotNil(t, repo.LastSyncedAt)
	assert.True(t, fixedNow.Equal(*repo.LastSyncedAt))

	second := f.apply(t, files)
	assert.Equal(t, skillsync.OutcomeUnchanged, second.Outcome)
	assert.Equal(t, 1, second.SkillsFound)
	assert.Zero(t, second.SkillsWritten)
	assert.Equal(t, 1, f.storage.Uploads(stored.StorageKey))

	again, err := f.store.GetSkillVersion(ctx, skills["test-skill"].ID, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, stored.FileHash, again.FileHash)
}

func TestApply_ChangedContentOverwritesSameVersion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.apply(t, map[string]string{"SKILL.md": testSkill})
	result := f.apply(t, map[string]string{"SKILL.md": testSkill + "\nMore detail.\n"})
	assert.Equal(t, skillsync.OutcomeUpdated, result.Outcome)

	sk := f.skills(t)["test-skill"]
	list, err := f.store.ListSkillVersions(ctx, sk.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Contains(t, list[0].Readme, "More detail.")
	assert.Equal(t, 2, f.storage.Uploads("skills/test-skill/1.0.0.zip"))
}

func TestApply_FallbackVersion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	content := "---\nname: unversioned\ndescription: no version here\n---\nBody\n"
	result := f.apply(t, map[string]string{"tools/SKILL.md": content})
	require.Equal(t, skillsync.OutcomeUpdated, result.Outcome)

	expected, err := versions.FallbackVersion(versions.ContentHash(archive.Files{"SKILL.md": []byte(content)}))
	require.NoError(t, err)
	assert.Regexp(t, `^0\.0\.\d+$`, expected)
	assert.Equal(t, expected, f.skills(t)["unversioned"].LatestVersion)
}

func TestApply_InvalidCandidatesAreSkipped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	result := f.apply(t, map[string]string{
		"a/SKILL.md":       testSkill,
		"b/SKILL.md":       "no frontmatter at all",
		"c/SKILL.md":       testSkill,
		"d/SKILL.md":       "---\nname: Bad_Name\ndescription: x\n---\n",
		"e/notes/SKILL.md": "---\nname: other-skill\ndescription: other\n---\n",
	})

	assert.Equal(t, skillsync.OutcomeUpdated, result.Outcome)
	assert.Equal(t, 2, result.SkillsFound)
	assert.Len(t, result.Diagnostics, 3)

	skills := f.skills(t)
	assert.Len(t, skills, 2)
	assert.Contains(t, skills, "test-skill")
	assert.Contains(t, skills, "other-skill")
}

func TestApply_Blacklisting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   func(t *testing.T) []byte
		reason string
	}{
		{
			name:   "not a zip archive",
			data:   func(*testing.T) []byte { return []byte("definitely not a zip") },
			reason: state.ReasonInvalidArchive,
		},
		{
			name: "no valid SKILL.md",
			//nolint:thelper // We want to see these lines in the test output
			data: func(t *testing.T) []byte {
				return zipball(t, map[string]string{
					"README.md":     "# nothing here",
					"docs/SKILL.md": "---\nname: missing-description\n---\n",
				})
			},
			reason: state.ReasonNoValidSkill,
		},
		{
			name: "malformed marketplace manifest",
			//nolint:thelper // We want to see these lines in the test output
			data: func(t *testing.T) []byte {
				return zipball(t, map[string]string{
					marketplace.ManifestPath: `{"plugins": [`,
					"SKILL.md":               testSkill,
				})
			},
			reason: state.ReasonInvalidManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()

			result, err := f.manager.Apply(ctx, f.repo, tt.data(t))
			require.NoError(t, err)
			assert.Equal(t, skillsync.OutcomeBlacklisted, result.Outcome)
			assert.Equal(t, tt.reason, result.Reason)

			repo, err := f.store.GetRepository(ctx, f.repo.ID)
			require.NoError(t, err)
			assert.Equal(t, store.StatusBlacklisted, repo.Status)
			assert.Equal(t, tt.reason, repo.BlacklistReason)

			listed, err := f.store.IsBlacklisted(ctx, f.repo.URL)
			require.NoError(t, err)
			assert.True(t, listed)
			assert.Empty(t, f.skills(t))
		})
	}
}

func TestApply_DeactivatesRemovedSkills(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	other := "---\nname: other-skill\ndescription: other\n---\n"
	f.apply(t, map[string]string{"a/SKILL.md": testSkill, "b/SKILL.md": other})

	result := f.apply(t, map[string]string{"a/SKILL.md": testSkill})
	assert.Equal(t, skillsync.OutcomeUpdated, result.Outcome)
	assert.Equal(t, int64(1), result.Deactivated)

	skills := f.skills(t)
	assert.True(t, skills["test-skill"].IsActive)
	assert.False(t, skills["other-skill"].IsActive)

	result = f.apply(t, map[string]string{"a/SKILL.md": testSkill, "b/SKILL.md": other})
	assert.Equal(t, skillsync.OutcomeUpdated, result.Outcome)
	assert.Equal(t, int64(1), result.Reactivated)
	assert.Zero(t, result.SkillsWritten)
	assert.Zero(t, result.Deactivated)
	assert.True(t, f.skills(t)["other-skill"].IsActive)

	result = f.apply(t, map[string]string{"a/SKILL.md": testSkill, "b/SKILL.md": other})
	assert.Equal(t, skillsync.OutcomeUnchanged, result.Outcome)
	assert.Zero(t, result.Reactivated)
}

func TestApply_MetadataHandling(t *testing.T) {
	t.Parallel()

	nested := "---\nname: nested-keys\ndescription: nested\nmetadata:\n  tags:\n    1: first\n    true: enabled\n---\n"
	unencodable := "---\nname: not-a-number\ndescription: nan\nmetadata:\n  score: .nan\n---\n"
	large := "---\nname: large-meta\ndescription: large\nmetadata:\n  notes: " + strings.Repeat("x", 600) + "\n---\n"

	tests := []struct {
		name          string
		opts          []skillsync.Option
		files         map[string]string
		expectStored  []string
		expectSkipped []string
	}{
		{
			name:         "nested mapping with non-string keys is stored",
			files:        map[string]string{"a/SKILL.md": testSkill, "b/SKILL.md": nested},
			expectStored: []string{"nested-keys", "test-skill"},
		},
		{
			name:          "metadata that cannot be encoded skips only that skill",
			files:         map[string]string{"a/SKILL.md": testSkill, "b/SKILL.md": unencodable},
			expectStored:  []string{"test-skill"},
			expectSkipped: []string{"b/SKILL.md"},
		},
		{
			name:          "metadata over the size cap skips only that skill",
			opts:          []skillsync.Option{skillsync.WithMaxMetadataSize(512)},
			files:         map[string]string{"a/SKILL.md": testSkill, "b/SKILL.md": large},
			expectStored:  []string{"test-skill"},
			expectSkipped: []string{"b/SKILL.md"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, tt.opts...)

			result := f.apply(t, tt.files)
			assert.Equal(t, skillsync.OutcomeUpdated, result.Outcome)
			assert.Equal(t, len(tt.expectStored), result.SkillsFound)
			assert.Equal(t, len(tt.expectStored), result.SkillsWritten)

			skipped := make([]string, 0, len(result.Diagnostics))
			for _, d := range result.Diagnostics {
				skipped = append(skipped, d.Path)
			}
			assert.ElementsMatch(t, tt.expectSkipped, skipped)

			skills := f.skills(t)
			stored := make([]string, 0, len(skills))
			for name := range skills {
				stored = append(stored, name)
			}
			assert.ElementsMatch(t, tt.expectStored, stored)
		})
	}
}

func TestApply_NestedMetadataIsNormalized(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.apply(t, map[string]string{
		"SKILL.md": "---\nname: nested-keys\ndescription: nested\nmetadata:\n  tags:\n    1: first\n---\n",
	})

	sk := f.skills(t)["nested-keys"]
	list, err := f.store.ListSkillVersions(ctx, sk.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, map[string]any{"tags": map[string]any{"1": "first"}}, list[0].Metadata["metadata"])
}

func marketplaceFiles(strict string) map[string]string {
	return map[string]string{
		marketplace.ManifestPath: `{"name":"acme","plugins":[{"name":"tools","source":"./plugins/tools",` +
			`"description":"Tooling","version":"2.0.0","strict":` + strict + `,"commands":["./commands/listed.md"]}]}`,
		"plugins/tools/commands/listed.md":      "---\ndescription: listed command\n---\nRun the listed thing.\n",
		"plugins/tools/commands/unlisted.md":    "Unlisted command body\n",
		"plugins/tools/skills/review/SKILL.md":  "---\nname: review\ndescription: Review code\n---\nReview.\n",
		"plugins/tools/README.md":               "# Tools plugin\n",
		"standalone/SKILL.md":                   testSkill,
	}
}

//nolint:thelper // We want to see these lines in the test output
func pluginComponents(t *testing.T, f *fixture, name, version string) []store.PluginComponent {
	ctx := context.Background()
	p, ok := f.plugins(t)[name]
	require.True(t, ok)
	v, err := f.store.GetPluginVersion(ctx, p.ID, version)
	require.NoError(t, err)
	components, err := f.store.ListPluginComponents(ctx, v.ID)
	require.NoError(t, err)
	return components
}

func componentPaths(components []store.PluginComponent) []string {
	out := make([]string, 0, len(components))
	for _, c := range components {
		out = append(out, string(c.Kind)+":"+c.Path)
	}
	return out
}

func TestApply_Marketplace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		strict   string
		expected []string
	}{
		{
			name:   "strict plugin only indexes listed commands",
			strict: "true",
			expected: []string{
				"command:commands/listed.md",
				"skill:skills/review/SKILL.md",
			},
		},
		{
			name:   "lenient plugin also scans the commands directory",
			strict: "false",
			expected: []string{
				"command:commands/listed.md",
				"command:commands/unlisted.md",
				"skill:skills/review/SKILL.md",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()

			result := f.apply(t, marketplaceFiles(tt.strict))
			assert.Equal(t, skillsync.OutcomeUpdated, result.Outcome)
			assert.Equal(t, string(store.RepoTypeMarketplace), result.RepoType)
			assert.Equal(t, 1, result.PluginsWritten)

			plugins := f.plugins(t)
			require.Contains(t, plugins, "tools")
			assert.Equal(t, "2.0.0", plugins["tools"].LatestVersion)
			assert.Equal(t, "./plugins/tools", plugins["tools"].Source)

			components := pluginComponents(t, f, "tools", "2.0.0")
			assert.Equal(t, tt.expected, componentPaths(components))

			v, err := f.store.GetPluginVersion(ctx, plugins["tools"].ID, "2.0.0")
			require.NoError(t, err)
			assert.Equal(t, "# Tools plugin\n", v.Readme)
			assert.Equal(t, "plugins/tools/2.0.0.zip", v.StorageKey)

			// The plugin's own skill is a component, not a standalone skill.
			skills := f.skills(t)
			assert.Len(t, skills, 1)
			assert.Contains(t, skills, "test-skill")
			assert.NotContains(t, skills, "review")

			repo, err := f.store.GetRepository(ctx, f.repo.ID)
			require.NoError(t, err)
			assert.Equal(t, store.RepoTypeMarketplace, repo.RepoType)
		})
	}
}

func TestApply_MarketplaceWithoutSkillsIsNotBlacklisted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	result := f.apply(t, map[string]string{
		marketplace.ManifestPath: `{"name":"empty"}`,
	})
	assert.Equal(t, skillsync.OutcomeUnchanged, result.Outcome)
	assert.Equal(t, string(store.RepoTypeMarketplace), result.RepoType)
	assert.Zero(t, result.PluginsFound)
	assert.Zero(t, result.SkillsFound)
}

func TestApply_RemovedPluginsAreDeactivated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.apply(t, marketplaceFiles("false"))
	assert.True(t, f.plugins(t)["tools"].IsActive)

	unchanged := f.apply(t, marketplaceFiles("false"))
	assert.Equal(t, skillsync.OutcomeUnchanged, unchanged.Outcome)

	result := f.apply(t, map[string]string{"SKILL.md": testSkill})
	assert.Equal(t, skillsync.OutcomeUpdated, result.Outcome)
	assert.Equal(t, string(store.RepoTypeStandalone), result.RepoType)
	assert.False(t, f.plugins(t)["tools"].IsActive)

	reactivated := f.apply(t, marketplaceFiles("false"))
	assert.Equal(t, skillsync.OutcomeUpdated, reactivated.Outcome)
	assert.Zero(t, reactivated.PluginsWritten)
	assert.Equal(t, int64(1), reactivated.Reactivated)
	assert.True(t, f.plugins(t)["tools"].IsActive)
}

func TestApply_PluginComponentMetadata(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	files := marketplaceFiles("false")
	files["plugins/tools/commands/keys.md"] = "---\ndescription: keys\ntags:\n  1: first\n---\nKeys.\n"
	files["plugins/tools/commands/nan.md"] = "---\ndescription: nan\nscore: .nan\n---\nNaN.\n"

	result := f.apply(t, files)
	assert.Equal(t, skillsync.OutcomeUpdated, result.Outcome)
	assert.Equal(t, 1, result.PluginsWritten)

	var keys *store.PluginComponent
	components := pluginComponents(t, f, "tools", "2.0.0")
	for i := range components {
		assert.NotEqual(t, "commands/nan.md", components[i].Path)
		if components[i].Path == "commands/keys.md" {
			keys = &components[i]
		}
	}
	require.NotNil(t, keys)
	assert.Equal(t, map[string]any{"1": "first"}, keys.Metadata["tags"])

	var skipped []string
	for _, d := range result.Diagnostics {
		skipped = append(skipped, d.Path)
	}
	assert.Contains(t, skipped, "commands/nan.md")
}

func TestApply_UnresolvablePluginKeepsItsRow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	files := map[string]string{
		marketplace.ManifestPath: `{"plugins":[
			{"name":"remote","description":"Remote","source":"https://example.com/remote"},
			{"name":"empty","source":"./plugins/empty","strict":true}
		]}`,
		"SKILL.md": testSkill,
	}

	result := f.apply(t, files)
	assert.Equal(t, skillsync.OutcomeUpdated, result.Outcome)
	assert.Equal(t, 2, result.PluginsFound)
	assert.Zero(t, result.PluginsWritten)
	assert.Len(t, result.Diagnostics, 2)

	plugins := f.plugins(t)
	require.Len(t, plugins, 2)
	assert.True(t, plugins["remote"].IsActive)
	assert.Equal(t, "Remote", plugins["remote"].Description)
	assert.Equal(t, "https://example.com/remote", plugins["remote"].Source)
	assert.True(t, plugins["empty"].Strict)
	assert.Empty(t, plugins["empty"].LatestVersion)

	_, err := f.store.GetPluginVersion(ctx, plugins["remote"].ID, "0.0.0")
	assert.ErrorIs(t, err, store.ErrNotFound)

	again := f.apply(t, files)
	assert.Equal(t, skillsync.OutcomeUnchanged, again.Outcome)
	assert.Zero(t, again.Deactivated)
}

func TestFetchSnapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	data := zipball(t, map[string]string{"SKILL.md": testSkill})
	f.github.EXPECT().DownloadZipball(gomock.Any(), "acme", "skills").Return(data, nil).Times(1)

	fetched, err := f.manager.FetchSnapshot(ctx, f.repo.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Snapshot)
	assert.Empty(t, fetched.Outcome)

	ref := *fetched.Snapshot
	assert.Equal(t, f.repo.ID, ref.RepositoryID)
	assert.Equal(t, versions.BlobHash(data), ref.ArchiveHash)
	assert.Equal(t, skillsync.SnapshotKey("acme", "skills", ref.ArchiveHash), ref.StorageKey)

	// Applying the same snapshot twice reads the staged bytes and never
	// downloads again. Both applies leave the same stored state.
	_, err = f.manager.ApplySnapshot(ctx, ref)
	require.NoError(t, err)
	afterFirst := f.storedState(t)
	require.Contains(t, afterFirst, "test-skill")

	_, err = f.manager.ApplySnapshot(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, afterFirst, f.storedState(t))
	assert.Equal(t, 2, f.storage.Downloads(ref.StorageKey))
	assert.Equal(t, 1, f.storage.Uploads(skillsync.SkillKey("test-skill", "1.0.0")))
}

// storedState flattens the repository's skills and their versions into
// comparable values.
//
//nolint:thelper // We want to see these lines in the test output
func (f *fixture) storedState(t *testing.T) map[string][]string {
	ctx := context.Background()
	out := map[string][]string{}
	for name, sk := range f.skills(t) {
		row := []string{fmt.Sprintf("active=%t latest=%s", sk.IsActive, sk.LatestVersion)}
		list, err := f.store.ListSkillVersions(ctx, sk.ID)
		require.NoError(t, err)
		for _, v := range list {
			row = append(row, fmt.Sprintf("%s hash=%s key=%s", v.Version, v.FileHash, v.StorageKey))
		}
		out[name] = row
	}
	return out
}

func TestFetchSnapshot_Terminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(t *testing.T, f *fixture) uuid.UUID
		expected skillsync.Outcome
	}{
		{
			name:     "unknown repository",
			setup:    func(*testing.T, *fixture) uuid.UUID { return uuid.New() },
			expected: skillsync.OutcomeNotFound,
		},
		{
			name: "blacklisted repository is not downloaded",
			//nolint:thelper // We want to see these lines in the test output
			setup: func(t *testing.T, f *fixture) uuid.UUID {
				require.NoError(t, f.store.BlacklistRepository(context.Background(), f.repo.ID, "test", fixedNow))
				return f.repo.ID
			},
			expected: skillsync.OutcomeSkippedBlacklisted,
		},
		{
			name: "repository deleted upstream",
			//nolint:thelper // We want to see these lines in the test output
			setup: func(_ *testing.T, f *fixture) uuid.UUID {
				f.github.EXPECT().DownloadZipball(gomock.Any(), "acme", "skills").
					Return(nil, &github.HTTPError{StatusCode: 404})
				return f.repo.ID
			},
			expected: skillsync.OutcomeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)

			fetched, err := f.manager.FetchSnapshot(context.Background(), tt.setup(t, f))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, fetched.Outcome)
			assert.Nil(t, fetched.Snapshot)
			assert.Empty(t, f.storage.Keys())
		})
	}
}

func TestFetchSnapshot_TransientErrorIsReturned(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.github.EXPECT().DownloadZipball(gomock.Any(), "acme", "skills").
		Return(nil, &github.HTTPError{StatusCode: 502})

	fetched, err := f.manager.FetchSnapshot(context.Background(), f.repo.ID)
	require.Error(t, err)
	assert.Nil(t, fetched)
	assert.True(t, github.IsRetryable(err))
}

func TestApplySnapshot_Missing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	data := zipball(t, map[string]string{"SKILL.md": testSkill})
	ref := skillsync.SnapshotRef{
		RepositoryID: f.repo.ID,
		Owner:        "acme",
		Name:         "skills",
		ArchiveHash:  versions.BlobHash(data),
		StorageKey:   skillsync.SnapshotKey("acme", "skills", versions.BlobHash(data)),
	}

	_, err := f.manager.ApplySnapshot(ctx, ref)
	require.ErrorIs(t, err, skillsync.ErrSnapshotMissing)

	_, err = f.storage.Upload(ctx, ref.StorageKey, []byte("tampered"))
	require.NoError(t, err)
	_, err = f.manager.ApplySnapshot(ctx, ref)
	require.ErrorIs(t, err, skillsync.ErrSnapshotMissing)

	assert.Empty(t, f.skills(t))
}

func TestApplySnapshot_BlacklistedRepositoryIsSkipped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.BlacklistRepository(ctx, f.repo.ID, "test", fixedNow))
	result, err := f.manager.ApplySnapshot(ctx, skillsync.SnapshotRef{
		RepositoryID: f.repo.ID,
		StorageKey:   "snapshots/acme/skills/missing.zip",
	})
	require.NoError(t, err)
	assert.Equal(t, skillsync.OutcomeSkippedBlacklisted, result.Outcome)
	assert.Zero(t, f.storage.Downloads("snapshots/acme/skills/missing.zip"))
}
