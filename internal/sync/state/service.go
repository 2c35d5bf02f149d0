// Package state drives the repository state machine: active repositories are
// blacklisted when their content cannot be indexed, and come back once the
// blacklist entry expires.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/toolhive-skill-sync/internal/store"
	"github.com/stacklok/toolhive-skill-sync/internal/telemetry"
)

// DefaultRetention is how long a blacklist entry lives.
const DefaultRetention = 30 * 24 * time.Hour

// Blacklist reasons recorded on repositories and entries.
const (
	ReasonInvalidArchive  = "Invalid zip archive"
	ReasonInvalidManifest = "Invalid marketplace manifest"
	ReasonNoValidSkill    = "No valid SKILL.md found"
)

// CleanupResult reports one expiry pass.
type CleanupResult struct {
	Expired     []string `json:"expired"`
	Reactivated int64    `json:"reactivated"`
}

// RepositoryStateService applies state machine transitions.
type RepositoryStateService interface {
	// Blacklist moves an active repository to blacklisted and records an entry for its URL.
	Blacklist(ctx context.Context, repo *store.Repository, reason string) error
	// CleanupExpired deletes entries older than the retention window and
	// reactivates their repositories.
	CleanupExpired(ctx context.Context) (*CleanupResult, error)
}

type stateService struct {
	store     store.BlacklistStore
	retention time.Duration
	now       func() time.Time
	metrics   *telemetry.SyncMetrics
}

// Option configures the state service.
type Option func(*stateService)

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(s *stateService) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *stateService) {
		s.now = now
	}
}

// WithMetrics records transitions on m.
func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(s *stateService) {
		s.metrics = m
	}
}

// NewRepositoryStateService returns a state service backed by st.
func NewRepositoryStateService(st store.BlacklistStore, opts ...Option) RepositoryStateService {
	s := &stateService{
		store:     st,
		retention: DefaultRetention,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *stateService) Blacklist(ctx context.Context, repo *store.Repository, reason string) error {
	if err := s.store.BlacklistRepository(ctx, repo.ID, reason, s.now()); err != nil {
		return fmt.Errorf("failed to blacklist repository %s: %w", repo.FullName(), err)
	}
	slog.InfoContext(ctx, "Repository blacklisted",
		"repository_id", repo.ID,
		"repository", repo.FullName(),
		"reason", reason)
	s.metrics.RecordBlacklisted(ctx, reason)
	return nil
}

func (s *stateService) CleanupExpired(ctx context.Context) (*CleanupResult, error) {
	cutoff := s.now().Add(-s.retention)
	expired, reactivated, err := s.store.ExpireBlacklist(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to expire blacklist entries: %w", err)
	}
	if expired == nil {
		expired = []string{}
	}
	if len(expired) > 0 {
		slog.InfoContext(ctx, "Blacklist entries expired",
			"expired", len(expired),
			"reactivated", reactivated,
			"cutoff", cutoff)
	}
	s.metrics.RecordBlacklistExpired(ctx, len(expired))
	return &CleanupResult{Expired: expired, Reactivated: reactivated}, nil
}
