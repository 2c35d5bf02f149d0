package workflows

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/stacklok/toolhive-skill-sync/internal/discovery"
	"github.com/stacklok/toolhive-skill-sync/internal/github"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	skillsync "github.com/stacklok/toolhive-skill-sync/internal/sync"
	"github.com/stacklok/toolhive-skill-sync/internal/sync/state"
	"github.com/stacklok/toolhive-skill-sync/internal/telemetry"
)

// defaultRegistryName labels metrics of discovery runs not scoped to a registry.
const defaultRegistryName = "default"

// DiscoveryRunner runs a set of discovery queries.
type DiscoveryRunner interface {
	Run(ctx context.Context, queries []string) (*discovery.Result, error)
}

// DiscoveryFactory returns a runner authenticated with token. An empty
// token selects the worker's default credentials.
type DiscoveryFactory func(token string) DiscoveryRunner

// Activities holds the dependencies of every activity. Register a single
// instance with the worker; workflows reference its methods through a nil
// *Activities.
type Activities struct {
	store    store.Store
	manager  skillsync.Manager
	state    state.RepositoryStateService
	discover DiscoveryFactory
	metrics  *telemetry.DiscoveryMetrics
}

// ActivitiesOption configures Activities.
type ActivitiesOption func(*Activities)

// WithDiscoveryMetrics records discovery counts on m.
func WithDiscoveryMetrics(m *telemetry.DiscoveryMetrics) ActivitiesOption {
	return func(a *Activities) {
		a.metrics = m
	}
}

// NewActivities returns the activity implementations.
func NewActivities(
	st store.Store,
	manager skillsync.Manager,
	stateSvc state.RepositoryStateService,
	discover DiscoveryFactory,
	opts ...ActivitiesOption,
) *Activities {
	a := &Activities{
		store:    st,
		manager:  manager,
		state:    stateSvc,
		discover: discover,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func nonRetryable(errType string, err error) error {
	return temporal.NewNonRetryableApplicationError(err.Error(), errType, err)
}

// RunDiscovery searches the input's queries and upserts the hits.
func (a *Activities) RunDiscovery(ctx context.Context, input DiscoveryInput) (*DiscoveryResult, error) {
	queries, token, name := input.Queries, "", defaultRegistryName
	if input.RegistryID != nil {
		reg, err := a.store.GetDiscoveryRegistry(ctx, *input.RegistryID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nonRetryable(ErrTypeNotFound, err)
			}
			return nil, fmt.Errorf("failed to load discovery registry: %w", err)
		}
		queries, token, name = reg.Queries, reg.Token, reg.Name
	}

	activity.GetLogger(ctx).Info("Running discovery", "registry", name, "query_count", len(queries))

	result, err := a.discover(token).Run(ctx, queries)
	if err != nil {
		if errors.Is(err, discovery.ErrAllQueriesRejected) {
			return nil, nonRetryable(ErrTypeMalformedContent, err)
		}
		return nil, err
	}

	a.metrics.RecordDiscovery(ctx, name, result.Inserted, result.Updated, result.Skipped)
	return &DiscoveryResult{
		Inserted:      result.Inserted,
		Updated:       result.Updated,
		Skipped:       result.Skipped,
		RepositoryIDs: result.RepositoryIDs,
	}, nil
}

// FetchRepoSnapshot stages the repository archive in object storage.
func (a *Activities) FetchRepoSnapshot(ctx context.Context, input RepoSyncInput) (*skillsync.FetchResult, error) {
	result, err := a.manager.FetchSnapshot(ctx, input.RepositoryID)
	if err != nil {
		if errors.Is(err, github.ErrTooLarge) {
			return nil, nonRetryable(ErrTypeMalformedContent, err)
		}
		return nil, err
	}
	return result, nil
}

// ApplySyncFromSnapshot applies a staged archive. It reads only from object
// storage.
func (a *Activities) ApplySyncFromSnapshot(ctx context.Context, ref skillsync.SnapshotRef) (*SyncOutcome, error) {
	result, err := a.manager.ApplySnapshot(ctx, ref)
	if err != nil {
		if errors.Is(err, skillsync.ErrSnapshotMissing) {
			return nil, nonRetryable(ErrTypeNotFound, err)
		}
		return nil, err
	}
	return outcomeFromResult(result), nil
}

// ListPendingRepositories returns active repository ids, least recently
// synced first. A non-positive limit returns all of them.
func (a *Activities) ListPendingRepositories(ctx context.Context, limit int) ([]uuid.UUID, error) {
	ids, err := a.store.ListPendingRepositoryIDs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending repositories: %w", err)
	}
	return ids, nil
}

// CleanupBlacklist expires old blacklist entries and reactivates their repositories.
func (a *Activities) CleanupBlacklist(ctx context.Context) (*state.CleanupResult, error) {
	return a.state.CleanupExpired(ctx)
}
