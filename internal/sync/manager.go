package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/toolhive-skill-sync/internal/archive"
	"github.com/stacklok/toolhive-skill-sync/internal/github"
	"github.com/stacklok/toolhive-skill-sync/internal/marketplace"
	"github.com/stacklok/toolhive-skill-sync/internal/objectstore"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	"github.com/stacklok/toolhive-skill-sync/internal/sync/state"
	"github.com/stacklok/toolhive-skill-sync/internal/telemetry"
	"github.com/stacklok/toolhive-skill-sync/internal/validators"
	"github.com/stacklok/toolhive-skill-sync/internal/versions"
)

// Manager runs repository syncs.
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/stacklok/toolhive-skill-sync/internal/sync Manager
type Manager interface {
	// FetchSnapshot downloads the repository archive and stages it in object storage.
	FetchSnapshot(ctx context.Context, repositoryID uuid.UUID) (*FetchResult, error)
	// ApplySnapshot reads a staged archive back and applies it. It never
	// contacts the code host.
	ApplySnapshot(ctx context.Context, ref SnapshotRef) (*Result, error)
	// Apply resolves and persists an archive for repo.
	Apply(ctx context.Context, repo *store.Repository, data []byte) (*Result, error)
}

type manager struct {
	store   store.Store
	storage objectstore.Storage
	github  github.Client
	state   state.RepositoryStateService
	metrics *telemetry.SyncMetrics
	now     func() time.Time

	maxMetaSize int
}

// Option configures the manager.
type Option func(*manager)

// WithStateService replaces the default blacklist state service.
func WithStateService(svc state.RepositoryStateService) Option {
	return func(m *manager) {
		m.state = svc
	}
}

// WithMetrics records sync durations on metrics.
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(m *manager) {
		m.metrics = metrics
	}
}

// WithClock overrides the wall clock used for sync timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *manager) {
		m.now = now
	}
}

// WithMaxMetadataSize caps the encoded metadata of a skill or plugin version.
// Candidates over the cap are skipped with a diagnostic. Zero disables the cap.
func WithMaxMetadataSize(size int) Option {
	return func(m *manager) {
		m.maxMetaSize = size
	}
}

// NewManager returns a Manager. gh may be nil when only ApplySnapshot and
// Apply are used.
func NewManager(st store.Store, storage objectstore.Storage, gh github.Client, opts ...Option) Manager {
	m := &manager{
		store:   st,
		storage: storage,
		github:  gh,
		now:     func() time.Time { return time.Now().UTC() },

		maxMetaSize: validators.DefaultMaxMetadataSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.state == nil {
		m.state = state.NewRepositoryStateService(st, state.WithClock(m.now), state.WithMetrics(m.metrics))
	}
	return m
}

// SnapshotKey is the staging key of a raw repository archive.
func SnapshotKey(owner, name, archiveHash string) string {
	return fmt.Sprintf("snapshots/%s/%s/%s.zip", owner, name, archiveHash)
}

// SkillKey is the storage key of a packaged skill version.
func SkillKey(name, version string) string {
	return fmt.Sprintf("skills/%s/%s.zip", name, version)
}

// PluginKey is the storage key of a packaged plugin version.
func PluginKey(name, version string) string {
	return fmt.Sprintf("plugins/%s/%s.zip", name, version)
}

func (m *manager) FetchSnapshot(ctx context.Context, repositoryID uuid.UUID) (*FetchResult, error) {
	repo, outcome, err := m.loadRepository(ctx, repositoryID)
	if err != nil {
		return nil, err
	}
	if outcome != "" {
		return &FetchResult{Outcome: outcome}, nil
	}
	if m.github == nil {
		return nil, errors.New("no code host client configured")
	}

	data, err := m.github.DownloadZipball(ctx, repo.Owner, repo.Name)
	if err != nil {
		if github.IsNotFound(err) {
			slog.WarnContext(ctx, "Repository no longer exists upstream",
				"repository_id", repo.ID,
				"repository", repo.FullName())
			return &FetchResult{Outcome: OutcomeNotFound}, nil
		}
		return nil, err
	}

	hash := versions.BlobHash(data)
	key := SnapshotKey(repo.Owner, repo.Name, hash)
	if _, err := m.storage.Upload(ctx, key, data); err != nil {
		return nil, fmt.Errorf("failed to stage snapshot: %w", err)
	}

	slog.InfoContext(ctx, "Repository snapshot staged",
		"repository_id", repo.ID,
		"repository", repo.FullName(),
		"storage_key", key,
		"size", len(data))

	return &FetchResult{Snapshot: &SnapshotRef{
		RepositoryID: repo.ID,
		Owner:        repo.Owner,
		Name:         repo.Name,
		URL:          repo.URL,
		ArchiveHash:  hash,
		StorageKey:   key,
	}}, nil
}

func (m *manager) ApplySnapshot(ctx context.Context, ref SnapshotRef) (*Result, error) {
	start := time.Now()
	result, err := m.applySnapshot(ctx, ref)
	if err == nil {
		m.metrics.RecordSyncDuration(ctx, string(result.Outcome), time.Since(start))
	}
	return result, err
}

func (m *manager) applySnapshot(ctx context.Context, ref SnapshotRef) (*Result, error) {
	repo, outcome, err := m.loadRepository(ctx, ref.RepositoryID)
	if err != nil {
		return nil, err
	}
	if outcome != "" {
		return terminal(outcome, ref.RepositoryID), nil
	}

	data, err := m.storage.Download(ctx, ref.StorageKey)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, ref.StorageKey)
		}
		return nil, fmt.Errorf("failed to download snapshot: %w", err)
	}
	if got := versions.BlobHash(data); got != ref.ArchiveHash {
		return nil, fmt.Errorf("%w: %s hash %s does not match %s", ErrSnapshotMissing, ref.StorageKey, got, ref.ArchiveHash)
	}

	return m.Apply(ctx, repo, data)
}

// loadRepository returns a non-empty outcome when the sync must stop before
// touching the archive.
func (m *manager) loadRepository(ctx context.Context, id uuid.UUID) (*store.Repository, Outcome, error) {
	repo, err := m.store.GetRepository(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, OutcomeNotFound, nil
		}
		return nil, "", err
	}
	if repo.IsBlacklisted() {
		slog.DebugContext(ctx, "Skipping blacklisted repository",
			"repository_id", repo.ID,
			"repository", repo.FullName())
		return nil, OutcomeSkippedBlacklisted, nil
	}
	return repo, "", nil
}

func (m *manager) Apply(ctx context.Context, repo *store.Repository, data []byte) (*Result, error) {
	result := &Result{RepositoryID: repo.ID}

	files, err := archive.Normalize(data)
	if err != nil {
		if archive.IsArchiveError(err) {
			return m.blacklist(ctx, repo, result, state.ReasonInvalidArchive)
		}
		return nil, err
	}

	var (
		repoType        = store.RepoTypeStandalone
		exclude         []string
		requireAnyValid = true
	)

	if manifestData, ok := marketplace.Detect(files); ok {
		manifest, err := marketplace.ParseManifest(manifestData)
		if err != nil {
			slog.WarnContext(ctx, "Invalid marketplace manifest",
				"repository_id", repo.ID,
				"repository", repo.FullName(),
				"error", err)
			return m.blacklist(ctx, repo, result, state.ReasonInvalidManifest)
		}

		resolved := marketplace.Resolve(files, manifest)
		if err := m.syncPlugins(ctx, repo, resolved, result); err != nil {
			return nil, err
		}
		repoType = store.RepoTypeMarketplace
		exclude = resolved.ClaimedPrefixes
		requireAnyValid = false
	} else {
		n, err := m.store.DeactivateMissingPlugins(ctx, repo.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate plugins: %w", err)
		}
		result.Deactivated += n
	}

	if err := m.syncStandalone(ctx, repo, files, exclude, result); err != nil {
		return nil, err
	}
	if requireAnyValid && result.SkillsFound == 0 {
		return m.blacklist(ctx, repo, result, state.ReasonNoValidSkill)
	}

	if err := m.store.MarkRepositorySynced(ctx, repo.ID, repoType, m.now()); err != nil {
		return nil, fmt.Errorf("failed to mark repository synced: %w", err)
	}

	result.RepoType = string(repoType)
	result.Outcome = OutcomeUnchanged
	if result.SkillsWritten > 0 || result.PluginsWritten > 0 || result.Deactivated > 0 || result.Reactivated > 0 {
		result.Outcome = OutcomeUpdated
	}

	slog.InfoContext(ctx, "Repository synced",
		"repository_id", repo.ID,
		"repository", repo.FullName(),
		"repo_type", repoType,
		"outcome", result.Outcome,
		"skills_written", result.SkillsWritten,
		"plugins_written", result.PluginsWritten,
		"deactivated", result.Deactivated,
		"reactivated", result.Reactivated,
		"skipped", len(result.Diagnostics))
	return result, nil
}

// checkMetadata reports metadata the store would refuse, so the candidate can
// be skipped before any row or object is written.
func (m *manager) checkMetadata(meta map[string]any) error {
	_, err := validators.SerializeMetadata(meta, m.maxMetaSize)
	return err
}

func (m *manager) blacklist(ctx context.Context, repo *store.Repository, result *Result, reason string) (*Result, error) {
	if err := m.state.Blacklist(ctx, repo, reason); err != nil {
		return nil, err
	}
	result.Outcome = OutcomeBlacklisted
	result.Reason = reason
	return result, nil
}
