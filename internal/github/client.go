// Package github implements the code-host contract used by discovery and
// sync: repository search, code search and zipball download, with the
// retry policy the GitHub API expects from well-behaved clients.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const (
	// DefaultBaseURL is the public GitHub REST API.
	DefaultBaseURL = "https://api.github.com"

	// UserAgent identifies requests made by this service.
	UserAgent = "toolhive-skill-sync/1.0"

	// PerPage is the search page size.
	PerPage = 100
	// MaxSearchResults is the most results GitHub search will return for one query.
	MaxSearchResults = 1000

	// DefaultRetryAfter is used when a rate-limited response carries no Retry-After header.
	DefaultRetryAfter = 60 * time.Second
	// RateLimitAttempts bounds attempts on 403 and 429 responses.
	RateLimitAttempts = 5
	// DownloadAttempts bounds zipball attempts on other retryable failures.
	DownloadAttempts = 3

	// MaxZipballSize caps a downloaded archive.
	MaxZipballSize = 200 * 1024 * 1024

	defaultTimeout = 5 * time.Minute
	maxErrorBody   = 1024
)

// Repo is a repository returned by search.
type Repo struct {
	Owner       string
	Name        string
	URL         string
	Description string
	Stars       int64
	Fork        bool
	PushedAt    *time.Time
}

// FullName returns "owner/name".
func (r Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

// Client is the code-host contract.
type Client interface {
	// SearchRepositories runs a repository search, following pages up to MaxSearchResults.
	SearchRepositories(ctx context.Context, query string) ([]Repo, error)
	// SearchCode runs a code search and returns the repositories owning the hits.
	SearchCode(ctx context.Context, query string) ([]Repo, error)
	// DownloadZipball downloads the default branch archive of owner/repo.
	DownloadZipball(ctx context.Context, owner, repo string) ([]byte, error)
}

type options struct {
	baseURL           string
	token             string
	httpClient        *http.Client
	defaultRetryAfter time.Duration
	retryUnit         time.Duration
}

// Option configures the client.
type Option func(*options)

// WithBaseURL points the client at a GitHub Enterprise or test server.
func WithBaseURL(baseURL string) Option {
	return func(o *options) {
		o.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithToken authenticates requests with a bearer token.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithRetryTiming scales retry waits. defaultRetryAfter replaces the 60s
// rate-limit fallback and unit replaces the one-second base of the
// exponential download backoff.
func WithRetryTiming(defaultRetryAfter, unit time.Duration) Option {
	return func(o *options) {
		o.defaultRetryAfter = defaultRetryAfter
		o.retryUnit = unit
	}
}

type client struct {
	opts options
}

// NewClient returns a GitHub API client.
func NewClient(opts ...Option) Client {
	o := options{
		baseURL:           DefaultBaseURL,
		httpClient:        &http.Client{Timeout: defaultTimeout},
		defaultRetryAfter: DefaultRetryAfter,
		retryUnit:         time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &client{opts: o}
}

type searchRepo struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	Owner    struct {
		Login string `json:"login"`
	} `json:"owner"`
	Description     *string    `json:"description"`
	StargazersCount int64      `json:"stargazers_count"`
	Fork            bool       `json:"fork"`
	PushedAt        *time.Time `json:"pushed_at"`
}

func (r searchRepo) toRepo() Repo {
	repo := Repo{
		Owner:    r.Owner.Login,
		Name:     r.Name,
		URL:      r.HTMLURL,
		Stars:    r.StargazersCount,
		Fork:     r.Fork,
		PushedAt: r.PushedAt,
	}
	if r.Description != nil {
		repo.Description = *r.Description
	}
	if repo.URL == "" {
		repo.URL = "https://github.com/" + repo.FullName()
	}
	return repo
}

type repoSearchPage struct {
	TotalCount int          `json:"total_count"`
	Items      []searchRepo `json:"items"`
}

type codeSearchPage struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		Repository searchRepo `json:"repository"`
	} `json:"items"`
}

func (c *client) SearchRepositories(ctx context.Context, query string) ([]Repo, error) {
	return c.search(ctx, "/search/repositories", query, func(data []byte) ([]Repo, int, error) {
		var page repoSearchPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, 0, fmt.Errorf("failed to decode repository search page: %w", err)
		}
		repos := make([]Repo, 0, len(page.Items))
		for _, item := range page.Items {
			repos = append(repos, item.toRepo())
		}
		return repos, page.TotalCount, nil
	})
}

func (c *client) SearchCode(ctx context.Context, query string) ([]Repo, error) {
	return c.search(ctx, "/search/code", query, func(data []byte) ([]Repo, int, error) {
		var page codeSearchPage
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, 0, fmt.Errorf("failed to decode code search page: %w", err)
		}
		repos := make([]Repo, 0, len(page.Items))
		for _, item := range page.Items {
			repos = append(repos, item.Repository.toRepo())
		}
		return repos, page.TotalCount, nil
	})
}

// search walks result pages until a short page, the reported total or the
// 1000 result cap is reached.
func (c *client) search(
	ctx context.Context,
	path, query string,
	decode func([]byte) ([]Repo, int, error),
) ([]Repo, error) {
	var results []Repo
	for page := 1; len(results) < MaxSearchResults; page++ {
		params := url.Values{}
		params.Set("q", query)
		params.Set("per_page", strconv.Itoa(PerPage))
		params.Set("page", strconv.Itoa(page))

		data, err := c.getWithRetry(ctx, path+"?"+params.Encode(), RateLimitAttempts, false)
		if err != nil {
			return nil, fmt.Errorf("failed to search %q: %w", query, err)
		}

		repos, total, err := decode(data)
		if err != nil {
			return nil, err
		}
		results = append(results, repos...)

		if len(repos) < PerPage || len(results) >= total {
			break
		}
	}
	if len(results) > MaxSearchResults {
		results = results[:MaxSearchResults]
	}

	slog.DebugContext(ctx, "Search completed", "query", query, "endpoint", path, "result_count", len(results))
	return results, nil
}

func (c *client) DownloadZipball(ctx context.Context, owner, repo string) ([]byte, error) {
	path := fmt.Sprintf("/repos/%s/%s/zipball", url.PathEscape(owner), url.PathEscape(repo))
	data, err := c.getWithRetry(ctx, path, DownloadAttempts, true)
	if err != nil {
		return nil, fmt.Errorf("failed to download zipball of %s/%s: %w", owner, repo, err)
	}
	return data, nil
}

// plannedBackOff waits whatever delay the last failed attempt planned.
type plannedBackOff struct {
	next time.Duration
}

func (b *plannedBackOff) NextBackOff() time.Duration { return b.next }

func (*plannedBackOff) Reset() {}

// getWithRetry retries rate-limited responses honoring Retry-After up to
// RateLimitAttempts times. When retryOther is set, other retryable failures
// are retried up to otherAttempts times waiting 2^attempt units.
func (c *client) getWithRetry(ctx context.Context, path string, otherAttempts int, retryOther bool) ([]byte, error) {
	planned := &plannedBackOff{}
	rateLimited, other := 0, 0

	return backoff.Retry(ctx, func() ([]byte, error) {
		data, err := c.get(ctx, path)
		if err == nil {
			return data, nil
		}

		var httpErr *HTTPError
		switch {
		case errors.As(err, &httpErr) && httpErr.IsRateLimited():
			rateLimited++
			if rateLimited >= RateLimitAttempts {
				return nil, backoff.Permanent(err)
			}
			planned.next = httpErr.RetryAfter
			if planned.next <= 0 {
				planned.next = c.opts.defaultRetryAfter
			}
			slog.WarnContext(ctx, "GitHub rate limit hit, waiting",
				"path", path,
				"attempt", rateLimited,
				"retry_after", planned.next)
			return nil, err
		case retryOther && IsRetryable(err):
			other++
			if other >= otherAttempts {
				return nil, backoff.Permanent(err)
			}
			planned.next = time.Duration(math.Pow(2, float64(other))) * c.opts.retryUnit
			slog.WarnContext(ctx, "GitHub request failed, retrying",
				"path", path,
				"attempt", other,
				"error", err)
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	},
		backoff.WithBackOff(planned),
		backoff.WithMaxTries(uint(RateLimitAttempts+otherAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
}

func (c *client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.token)
	}

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxZipballSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > MaxZipballSize {
		return nil, fmt.Errorf("%w: over %d bytes", ErrTooLarge, MaxZipballSize)
	}
	return data, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
