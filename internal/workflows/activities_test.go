package workflows

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/toolhive-skill-sync/internal/discovery"
	"github.com/stacklok/toolhive-skill-sync/internal/github"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	skillsync "github.com/stacklok/toolhive-skill-sync/internal/sync"
	syncmocks "github.com/stacklok/toolhive-skill-sync/internal/sync/mocks"
	"github.com/stacklok/toolhive-skill-sync/internal/sync/state"
)

func activityEnv(acts *Activities) *testsuite.TestActivityEnvironment {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()
	env.RegisterActivity(acts)
	return env
}

//nolint:thelper // We want to see these lines in the test output
func requireApplicationError(t *testing.T, err error, errType string) {
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr), "expected an application error, got %v", err)
	assert.Equal(t, errType, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestRunDiscovery(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	reg, err := st.UpsertDiscoveryRegistry(context.Background(), store.DiscoveryRegistry{
		Name:     "internal",
		Platform: discovery.PlatformGitHub,
		Token:    "secret",
		Queries:  []string{"org:acme topic:claude-skills"},
	})
	require.NoError(t, err)
	missing := uuid.New()
	repoID := uuid.New()

	tests := []struct {
		name      string
		input     DiscoveryInput
		runErr    error
		wantToken string
		wantType  string
	}{
		{
			name:      "ad hoc queries use default credentials",
			input:     DiscoveryInput{Queries: []string{"claude skills"}},
			wantToken: "",
		},
		{
			name:      "registry queries use the registry token",
			input:     DiscoveryInput{Queries: []string{"ignored"}, RegistryID: &reg.ID},
			wantToken: "secret",
		},
		{
			name:     "unknown registry",
			input:    DiscoveryInput{RegistryID: &missing},
			wantType: ErrTypeNotFound,
		},
		{
			name:      "every query rejected",
			input:     DiscoveryInput{Queries: []string{"bad:"}},
			runErr:    fmt.Errorf("%w: 1 queries", discovery.ErrAllQueriesRejected),
			wantToken: "",
			wantType:  ErrTypeMalformedContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeRunner{
				result: &discovery.Result{Inserted: 1, Skipped: 2, RepositoryIDs: []uuid.UUID{repoID}},
				err:    tt.runErr,
			}
			var tokens []string
			acts := NewActivities(st, nil, nil, func(token string) DiscoveryRunner {
				tokens = append(tokens, token)
				return runner
			})

			val, err := activityEnv(acts).ExecuteActivity(acts.RunDiscovery, tt.input)
			if tt.wantType != "" {
				requireApplicationError(t, err, tt.wantType)
				return
			}
			require.NoError(t, err)

			var result DiscoveryResult
			require.NoError(t, val.Get(&result))
			assert.Equal(t, 1, result.Inserted)
			assert.Equal(t, 2, result.Skipped)
			assert.Equal(t, []uuid.UUID{repoID}, result.RepositoryIDs)
			assert.Equal(t, []string{tt.wantToken}, tokens)
		})
	}
}

func TestFetchRepoSnapshot(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	ref := &skillsync.SnapshotRef{RepositoryID: id, Owner: "acme", Name: "skills", StorageKey: "snapshots/acme/skills/abc.zip"}

	tests := []struct {
		name     string
		result   *skillsync.FetchResult
		err      error
		wantType string
		wantErr  bool
	}{
		{name: "staged", result: &skillsync.FetchResult{Snapshot: ref}},
		{name: "terminal outcome", result: &skillsync.FetchResult{Outcome: skillsync.OutcomeNotFound}},
		{name: "archive too large", err: fmt.Errorf("%w: over limit", github.ErrTooLarge), wantType: ErrTypeMalformedContent},
		{name: "transient failure", err: &github.HTTPError{StatusCode: 502}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			manager := syncmocks.NewMockManager(ctrl)
			manager.EXPECT().FetchSnapshot(gomock.Any(), id).Return(tt.result, tt.err).MinTimes(1)

			acts := NewActivities(store.NewMemory(), manager, nil, nil)
			val, err := activityEnv(acts).ExecuteActivity(acts.FetchRepoSnapshot, RepoSyncInput{RepositoryID: id})
			switch {
			case tt.wantType != "":
				requireApplicationError(t, err, tt.wantType)
				return
			case tt.wantErr:
				require.Error(t, err)
				var appErr *temporal.ApplicationError
				if errors.As(err, &appErr) {
					assert.False(t, appErr.NonRetryable())
				}
				return
			}
			require.NoError(t, err)

			var got skillsync.FetchResult
			require.NoError(t, val.Get(&got))
			assert.Equal(t, *tt.result, got)
		})
	}
}

func TestApplySyncFromSnapshot(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	ref := skillsync.SnapshotRef{RepositoryID: id, Owner: "acme", Name: "skills", ArchiveHash: "abc", StorageKey: "snapshots/acme/skills/abc.zip"}

	t.Run("outcome", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		manager := syncmocks.NewMockManager(ctrl)
		manager.EXPECT().ApplySnapshot(gomock.Any(), ref).Return(&skillsync.Result{
			RepositoryID:   id,
			Outcome:        skillsync.OutcomeUpdated,
			SkillsFound:    3,
			SkillsWritten:  2,
			PluginsWritten: 1,
			Deactivated:    4,
			Reactivated:    5,
		}, nil)

		acts := NewActivities(store.NewMemory(), manager, nil, nil)
		val, err := activityEnv(acts).ExecuteActivity(acts.ApplySyncFromSnapshot, ref)
		require.NoError(t, err)

		var outcome SyncOutcome
		require.NoError(t, val.Get(&outcome))
		assert.Equal(t, SyncOutcome{
			RepositoryID:   id,
			Outcome:        skillsync.OutcomeUpdated,
			SkillsWritten:  2,
			PluginsWritten: 1,
			Deactivated:    4,
			Reactivated:    5,
		}, outcome)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		manager := syncmocks.NewMockManager(ctrl)
		manager.EXPECT().ApplySnapshot(gomock.Any(), ref).
			Return(nil, fmt.Errorf("%w: %s", skillsync.ErrSnapshotMissing, ref.StorageKey))

		acts := NewActivities(store.NewMemory(), manager, nil, nil)
		_, err := activityEnv(acts).ExecuteActivity(acts.ApplySyncFromSnapshot, ref)
		requireApplicationError(t, err, ErrTypeNotFound)
	})
}

func TestListPendingRepositories(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	ctx := context.Background()
	var ids []uuid.UUID
	for _, name := range []string{"one", "two", "three"} {
		id, _, err := st.UpsertDiscoveredRepository(ctx, store.DiscoveredRepository{
			Platform: discovery.PlatformGitHub,
			Owner:    "acme",
			Name:     name,
			URL:      "https://github.com/acme/" + name,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, st.BlacklistRepository(ctx, ids[2], state.ReasonInvalidArchive, fixedNow))

	acts := NewActivities(st, nil, nil, nil)

	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{name: "all", limit: 0, want: 2},
		{name: "limited", limit: 1, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			val, err := activityEnv(acts).ExecuteActivity(acts.ListPendingRepositories, tt.limit)
			require.NoError(t, err)

			var got []uuid.UUID
			require.NoError(t, val.Get(&got))
			assert.Len(t, got, tt.want)
			assert.NotContains(t, got, ids[2])
		})
	}
}

func TestCleanupBlacklist(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	ctx := context.Background()
	id, _, err := st.UpsertDiscoveredRepository(ctx, store.DiscoveredRepository{
		Platform: discovery.PlatformGitHub,
		Owner:    "acme",
		Name:     "old",
		URL:      "https://github.com/acme/old",
	})
	require.NoError(t, err)
	require.NoError(t, st.BlacklistRepository(ctx, id, state.ReasonNoValidSkill, fixedNow.AddDate(0, -2, 0)))

	stateSvc := state.NewRepositoryStateService(st, state.WithClock(func() time.Time { return fixedNow }))
	acts := NewActivities(st, nil, stateSvc, nil)

	val, err := activityEnv(acts).ExecuteActivity(cleanupBlacklistActivity)
	require.NoError(t, err)

	var result state.CleanupResult
	require.NoError(t, val.Get(&result))
	assert.Equal(t, []string{"https://github.com/acme/old"}, result.Expired)
	assert.Equal(t, int64(1), result.Reactivated)
}
