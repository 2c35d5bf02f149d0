// Package service provides the outer-surface operations of the sync
// pipeline: listing pending repositories, reading a repository with its
// catalog, and triggering a single-repository sync.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/toolhive-skill-sync/internal/otel"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
)

// TracerName is the name of the service tracer.
const TracerName = "github.com/stacklok/toolhive-skill-sync/internal/service"

var (
	// ErrRepositoryNotFound is returned when a repository id is unknown.
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrNoTrigger is returned by TriggerSync when no workflow client is configured.
	ErrNoTrigger = errors.New("sync trigger not configured")
)

//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go SyncService

// SyncService defines the operations exposed to operators and schedulers.
type SyncService interface {
	// ListPendingRepositoryIDs returns active repositories, least recently synced first.
	ListPendingRepositoryIDs(ctx context.Context, opts ...Option) ([]uuid.UUID, error)

	// GetRepository returns a repository with its skills and plugins.
	GetRepository(ctx context.Context, id uuid.UUID) (*RepositoryDetail, error)

	// TriggerSync starts the single-repository sync for id and returns the run id.
	TriggerSync(ctx context.Context, id uuid.UUID) (string, error)

	// CheckReadiness runs every registered health check.
	CheckReadiness(ctx context.Context) error
}

// SyncTrigger starts single-repository syncs.
type SyncTrigger interface {
	TriggerSync(ctx context.Context, id uuid.UUID) (string, error)
}

// RepositoryDetail is a repository row plus its catalog.
type RepositoryDetail struct {
	Repository *store.Repository
	Skills     []store.Skill
	Plugins    []store.Plugin
}

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check HealthCheck
}

type syncService struct {
	store   store.Store
	trigger SyncTrigger
	tracer  trace.Tracer
	checks  []namedCheck
}

// ServiceOption configures the service.
type ServiceOption func(*syncService)

// WithTracer traces every operation on tracer.
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *syncService) {
		s.tracer = tracer
	}
}

// WithTrigger sets the client TriggerSync delegates to.
func WithTrigger(trigger SyncTrigger) ServiceOption {
	return func(s *syncService) {
		s.trigger = trigger
	}
}

// WithHealthCheck adds a readiness probe reported under name.
func WithHealthCheck(name string, check HealthCheck) ServiceOption {
	return func(s *syncService) {
		s.checks = append(s.checks, namedCheck{name: name, check: check})
	}
}

// New returns a SyncService backed by st.
func New(st store.Store, opts ...ServiceOption) SyncService {
	s := &syncService{store: st}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *syncService) ListPendingRepositoryIDs(ctx context.Context, opts ...Option) ([]uuid.UUID, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "syncService.ListPendingRepositoryIDs")
	defer span.End()

	options := &ListPendingOptions{}
	for _, opt := range opts {
		if err := opt(options); err != nil {
			otel.RecordError(span, err)
			return nil, err
		}
	}

	ids, err := s.store.ListPendingRepositoryIDs(ctx, options.Limit)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list pending repositories: %w", err)
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(ids)))
	return ids, nil
}

func (s *syncService) GetRepository(ctx context.Context, id uuid.UUID) (*RepositoryDetail, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "syncService.GetRepository",
		trace.WithAttributes(otel.AttrRepositoryID.String(id.String())))
	defer span.End()

	repo, err := s.getRepository(ctx, id)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	skills, err := s.store.ListSkills(ctx, id)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list skills: %w", err)
	}
	plugins, err := s.store.ListPlugins(ctx, id)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}

	return &RepositoryDetail{Repository: repo, Skills: skills, Plugins: plugins}, nil
}

func (s *syncService) TriggerSync(ctx context.Context, id uuid.UUID) (string, error) {
	ctx, span := otel.StartSpan(ctx, s.tracer, "syncService.TriggerSync",
		trace.WithAttributes(otel.AttrRepositoryID.String(id.String())))
	defer span.End()

	if s.trigger == nil {
		otel.RecordError(span, ErrNoTrigger)
		return "", ErrNoTrigger
	}
	if _, err := s.getRepository(ctx, id); err != nil {
		otel.RecordError(span, err)
		return "", err
	}

	runID, err := s.trigger.TriggerSync(ctx, id)
	if err != nil {
		otel.RecordError(span, err)
		return "", err
	}
	return runID, nil
}

func (s *syncService) CheckReadiness(ctx context.Context) error {
	var errs []error
	for _, c := range s.checks {
		if err := c.check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *syncService) getRepository(ctx context.Context, id uuid.UUID) (*store.Repository, error) {
	repo, err := s.store.GetRepository(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, id)
		}
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}
	return repo, nil
}
