package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-skill-sync/internal/db/sqlc"
	"github.com/stacklok/toolhive-skill-sync/internal/otel"
	"github.com/stacklok/toolhive-skill-sync/internal/validators"
)

// TracerName is the name used for the store tracer
const TracerName = "github.com/stacklok/toolhive-skill-sync/store"

// options holds configuration for the postgres store
type options struct {
	tracer      trace.Tracer
	now         func() time.Time
	maxMetaSize int
}

// Option configures a store implementation.
type Option func(*options)

// WithTracer enables tracing of store operations.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMaxMetadataSize caps the encoded size of version and component metadata.
func WithMaxMetadataSize(size int) Option {
	return func(o *options) {
		o.maxMetaSize = size
	}
}

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		now:         func() time.Time { return time.Now().UTC() },
		maxMetaSize: validators.DefaultMaxMetadataSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type pgStore struct {
	pool        *pgxpool.Pool
	tracer      trace.Tracer
	now         func() time.Time
	maxMetaSize int
}

var _ Store = (*pgStore)(nil)

// NewPostgres returns a Store backed by pool. The caller owns the pool.
func NewPostgres(pool *pgxpool.Pool, opts ...Option) Store {
	o := newOptions(opts)
	return &pgStore{
		pool:        pool,
		tracer:      o.tracer,
		now:         o.now,
		maxMetaSize: o.maxMetaSize,
	}
}

// startSpan starts a span tagged with db.system=postgresql.
func (s *pgStore) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{semconv.DBSystemPostgreSQL}, attrs...)
	return otel.StartSpan(ctx, s.tracer, name, trace.WithAttributes(attrs...))
}

// inTx runs fn in a serializable transaction, committing when fn succeeds.
func (s *pgStore) inTx(ctx context.Context, fn func(q *sqlc.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		err := tx.Rollback(ctx)
		if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.WarnContext(ctx, "Failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(sqlc.New(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *pgStore) queries() *sqlc.Queries {
	return sqlc.New(s.pool)
}

func (s *pgStore) GetRepository(ctx context.Context, id uuid.UUID) (*Repository, error) {
	ctx, span := s.startSpan(ctx, "store.GetRepository", otel.AttrRepositoryID.String(id.String()))
	defer span.End()

	row, err := s.queries().GetRepository(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("repository %s: %w", id, ErrNotFound)
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return repositoryFromRow(row), nil
}

func (s *pgStore) UpsertDiscoveredRepository(ctx context.Context, repo DiscoveredRepository) (uuid.UUID, bool, error) {
	ctx, span := s.startSpan(ctx, "store.UpsertDiscoveredRepository",
		otel.AttrRepositoryName.String(repo.Owner+"/"+repo.Name))
	defer span.End()

	row, err := s.queries().UpsertDiscoveredRepository(ctx, sqlc.UpsertDiscoveredRepositoryParams{
		Platform:    repo.Platform,
		Owner:       repo.Owner,
		Name:        repo.Name,
		Url:         repo.URL,
		Description: nullIfEmpty(repo.Description),
		Stars:       repo.Stars,
		PushedAt:    repo.PushedAt,
		Now:         s.now(),
	})
	if err != nil {
		otel.RecordError(span, err)
		return uuid.Nil, false, fmt.Errorf("failed to upsert repository %s/%s: %w", repo.Owner, repo.Name, err)
	}
	return row.ID, row.Inserted, nil
}

func (s *pgStore) ListPendingRepositoryIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	ctx, span := s.startSpan(ctx, "store.ListPendingRepositoryIDs")
	defer span.End()

	size := int64(limit)
	if size <= 0 {
		size = math.MaxInt32
	}
	ids, err := s.queries().ListPendingRepositoryIDs(ctx, size)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list pending repositories: %w", err)
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(ids)))
	return ids, nil
}

func (s *pgStore) MarkRepositorySynced(ctx context.Context, id uuid.UUID, repoType RepoType, at time.Time) error {
	ctx, span := s.startSpan(ctx, "store.MarkRepositorySynced",
		otel.AttrRepositoryID.String(id.String()),
		otel.AttrRepoType.String(string(repoType)))
	defer span.End()

	n, err := s.queries().MarkRepositorySynced(ctx, sqlc.MarkRepositorySyncedParams{
		RepoType: nullIfEmpty(string(repoType)),
		SyncedAt: &at,
		ID:       id,
	})
	if err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to mark repository synced: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("repository %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *pgStore) IsBlacklisted(ctx context.Context, url string) (bool, error) {
	ctx, span := s.startSpan(ctx, "store.IsBlacklisted")
	defer span.End()

	blacklisted, err := s.queries().IsURLBlacklisted(ctx, url)
	if err != nil {
		otel.RecordError(span, err)
		return false, fmt.Errorf("failed to check blacklist: %w", err)
	}
	return blacklisted, nil
}

func (s *pgStore) BlacklistRepository(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	ctx, span := s.startSpan(ctx, "store.BlacklistRepository", otel.AttrRepositoryID.String(id.String()))
	defer span.End()

	err := s.inTx(ctx, func(q *sqlc.Queries) error {
		repo, err := q.GetRepository(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("repository %s: %w", id, ErrNotFound)
			}
			return fmt.Errorf("failed to get repository: %w", err)
		}
		if _, err := q.BlacklistRepository(ctx, sqlc.BlacklistRepositoryParams{
			Reason:        &reason,
			BlacklistedAt: &at,
			ID:            id,
		}); err != nil {
			return fmt.Errorf("failed to update repository status: %w", err)
		}
		if err := q.UpsertBlacklistEntry(ctx, sqlc.UpsertBlacklistEntryParams{
			Url:       repo.Url,
			Reason:    reason,
			CreatedAt: at,
		}); err != nil {
			return fmt.Errorf("failed to upsert blacklist entry: %w", err)
		}
		return nil
	})
	if err != nil {
		otel.RecordError(span, err)
		return err
	}
	return nil
}

func (s *pgStore) ExpireBlacklist(ctx context.Context, cutoff time.Time) ([]string, int64, error) {
	ctx, span := s.startSpan(ctx, "store.ExpireBlacklist")
	defer span.End()

	var (
		expired     []string
		reactivated int64
	)
	err := s.inTx(ctx, func(q *sqlc.Queries) error {
		var err error
		expired, err = q.DeleteExpiredBlacklistEntries(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete expired blacklist entries: %w", err)
		}
		if len(expired) == 0 {
			return nil
		}
		reactivated, err = q.ReactivateRepositoriesByURL(ctx, sqlc.ReactivateRepositoriesByURLParams{
			Now:  s.now(),
			Urls: expired,
		})
		if err != nil {
			return fmt.Errorf("failed to reactivate repositories: %w", err)
		}
		return nil
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, 0, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(expired)))
	return expired, reactivated, nil
}

func repositoryFromRow(row sqlc.Repository) *Repository {
	return &Repository{
		ID:              row.ID,
		Platform:        row.Platform,
		Owner:           row.Owner,
		Name:            row.Name,
		URL:             row.Url,
		Description:     deref(row.Description),
		Stars:           row.Stars,
		Status:          RepositoryStatus(row.Status),
		RepoType:        RepoType(deref(row.RepoType)),
		BlacklistReason: deref(row.BlacklistReason),
		BlacklistedAt:   row.BlacklistedAt,
		PushedAt:        row.PushedAt,
		LastSyncedAt:    row.LastSyncedAt,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// encodeMetadata stores nil or empty maps as SQL NULL.
func (s *pgStore) encodeMetadata(meta map[string]any) ([]byte, error) {
	return validators.SerializeMetadata(meta, s.maxMetaSize)
}

func decodeMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return meta, nil
}
