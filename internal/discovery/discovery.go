// Package discovery finds repositories that publish skills or plugins by
// running search queries against the code host and upserting the hits as
// repository rows.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-skill-sync/internal/filtering"
	"github.com/stacklok/toolhive-skill-sync/internal/github"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	"github.com/stacklok/toolhive-skill-sync/internal/validators"
)

const (
	// PlatformGitHub is the only supported code host.
	PlatformGitHub = "github"

	// DefaultConcurrency bounds queries searched in parallel.
	DefaultConcurrency = 4

	repositoryQuerySuffix = "fork:false sort:updated"
)

// ErrAllQueriesRejected is returned when the code host rejected every query
// of a run. Retrying the same queries cannot succeed.
var ErrAllQueriesRejected = errors.New("every discovery query was rejected")

// codeQualifiers route a query to code search.
var codeQualifiers = []string{"filename:", "path:", "extension:"}

// Result summarizes one discovery run.
type Result struct {
	Inserted int
	Updated  int
	// Skipped counts blacklisted, filtered and invalid hits.
	Skipped int
	// RepositoryIDs lists every repository inserted or updated, in first-seen order.
	RepositoryIDs []uuid.UUID
}

// Repositories is the persistence discovery needs.
type Repositories interface {
	IsBlacklisted(ctx context.Context, url string) (bool, error)
	UpsertDiscoveredRepository(ctx context.Context, repo store.DiscoveredRepository) (uuid.UUID, bool, error)
}

// Service runs discovery queries.
type Service struct {
	client      github.Client
	repos       Repositories
	platform    string
	concurrency int
	filter      filtering.NameFilter
}

// Option configures a Service.
type Option func(*Service)

// WithConcurrency sets how many queries are searched at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithFilter drops hits whose "owner/name" the filter rejects.
func WithFilter(f filtering.NameFilter) Option {
	return func(s *Service) {
		s.filter = f
	}
}

// New returns a discovery service.
func New(client github.Client, repos Repositories, opts ...Option) *Service {
	s := &Service{
		client:      client,
		repos:       repos,
		platform:    PlatformGitHub,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsCodeQuery reports whether query uses a code-search qualifier.
func IsCodeQuery(query string) bool {
	for _, q := range codeQualifiers {
		if strings.Contains(query, q) {
			return true
		}
	}
	return false
}

// RepositoryQuery appends "fork:false sort:updated" unless the query already sorts.
func RepositoryQuery(query string) string {
	query = strings.TrimSpace(query)
	if strings.Contains(query, "sort:") {
		return query
	}
	if query == "" {
		return repositoryQuerySuffix
	}
	return query + " " + repositoryQuerySuffix
}

// Run searches every query, dedupes hits by owner and name across queries,
// drops blacklisted URLs and upserts the rest. A query rejected by the
// code host is logged and skipped; transient failures abort the run so it
// can be retried.
func (s *Service) Run(ctx context.Context, queries []string) (*Result, error) {
	hits := make([][]github.Repo, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var mu sync.Mutex
	var rejected []string
	for i, query := range queries {
		g.Go(func() error {
			repos, err := s.search(gctx, query)
			if err != nil {
				if github.IsRetryable(err) {
					return err
				}
				slog.WarnContext(gctx, "Discovery query rejected", "query", query, "error", err)
				mu.Lock()
				rejected = append(rejected, query)
				mu.Unlock()
				return nil
			}
			hits[i] = repos
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to run discovery queries: %w", err)
	}
	if len(queries) > 0 && len(rejected) == len(queries) {
		return nil, ErrAllQueriesRejected
	}

	result := &Result{RepositoryIDs: []uuid.UUID{}}
	seen := map[string]struct{}{}
	for _, repos := range hits {
		for _, repo := range repos {
			key := strings.ToLower(repo.FullName())
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			if err := s.upsert(ctx, repo, result); err != nil {
				return nil, err
			}
		}
	}

	slog.InfoContext(ctx, "Discovery completed",
		"query_count", len(queries),
		"inserted", result.Inserted,
		"updated", result.Updated,
		"skipped", result.Skipped)
	return result, nil
}

func (s *Service) search(ctx context.Context, query string) ([]github.Repo, error) {
	if IsCodeQuery(query) {
		return s.client.SearchCode(ctx, query)
	}
	return s.client.SearchRepositories(ctx, RepositoryQuery(query))
}

func (s *Service) upsert(ctx context.Context, repo github.Repo, result *Result) error {
	if err := validators.ValidateRepositoryParts(repo.Owner, repo.Name); err != nil {
		slog.DebugContext(ctx, "Skipping invalid repository", "repository", repo.FullName(), "error", err)
		result.Skipped++
		return nil
	}

	if s.filter != nil {
		if ok, reason := s.filter.ShouldInclude(repo.FullName()); !ok {
			slog.DebugContext(ctx, "Skipping filtered repository", "repository", repo.FullName(), "reason", reason)
			result.Skipped++
			return nil
		}
	}

	blacklisted, err := s.repos.IsBlacklisted(ctx, repo.URL)
	if err != nil {
		return err
	}
	if blacklisted {
		slog.DebugContext(ctx, "Skipping blacklisted repository", "repository", repo.FullName())
		result.Skipped++
		return nil
	}

	id, inserted, err := s.repos.UpsertDiscoveredRepository(ctx, store.DiscoveredRepository{
		Platform:    s.platform,
		Owner:       repo.Owner,
		Name:        repo.Name,
		URL:         repo.URL,
		Description: repo.Description,
		Stars:       repo.Stars,
		PushedAt:    repo.PushedAt,
	})
	if err != nil {
		return err
	}
	if inserted {
		result.Inserted++
	} else {
		result.Updated++
	}
	result.RepositoryIDs = append(result.RepositoryIDs, id)
	return nil
}
