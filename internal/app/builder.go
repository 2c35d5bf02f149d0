package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"github.com/stacklok/toolhive-skill-sync/internal/api"
	"github.com/stacklok/toolhive-skill-sync/internal/app/storage"
	"github.com/stacklok/toolhive-skill-sync/internal/auth"
	"github.com/stacklok/toolhive-skill-sync/internal/config"
	"github.com/stacklok/toolhive-skill-sync/internal/discovery"
	"github.com/stacklok/toolhive-skill-sync/internal/filtering"
	"github.com/stacklok/toolhive-skill-sync/internal/github"
	"github.com/stacklok/toolhive-skill-sync/internal/objectstore"
	"github.com/stacklok/toolhive-skill-sync/internal/service"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	skillsync "github.com/stacklok/toolhive-skill-sync/internal/sync"
	"github.com/stacklok/toolhive-skill-sync/internal/sync/coordinator"
	"github.com/stacklok/toolhive-skill-sync/internal/sync/state"
	"github.com/stacklok/toolhive-skill-sync/internal/telemetry"
	"github.com/stacklok/toolhive-skill-sync/internal/workflows"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	authRealm = "thv-skill-sync"
)

// WorkerFactory creates the Temporal worker polling taskQueue.
type WorkerFactory func(c client.Client, taskQueue string) worker.Worker

func defaultWorkerFactory(c client.Client, taskQueue string) worker.Worker {
	return worker.New(c, taskQueue, worker.Options{})
}

// SkillSyncAppOptions is a function that configures the app builder
type SkillSyncAppOptions func(*skillSyncAppConfig) error

// skillSyncAppConfig collects the configuration and optional component
// overrides used to build the app. Overrides are primarily for testing.
type skillSyncAppConfig struct {
	config *config.Config

	// Admin API settings
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
	version        api.VersionResponse

	store          store.Store
	storage        objectstore.Storage
	githubClient   github.Client
	temporalClient client.Client
	workerFactory  WorkerFactory

	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...SkillSyncAppOptions) (*skillSyncAppConfig, error) {
	cfg := &skillSyncAppConfig{
		workerFactory:  defaultWorkerFactory,
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
		version:        api.VersionResponse{Version: "dev"},
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return cfg, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the admin API listen address
func WithAddress(addr string) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default admin API middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithVersion sets the build information served on /version
func WithVersion(v api.VersionResponse) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.version = v
		return nil
	}
}

// WithStore allows injecting a store instead of connecting to the database (for testing)
func WithStore(st store.Store) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.store = st
		return nil
	}
}

// WithObjectStorage allows injecting object storage instead of S3 (for testing)
func WithObjectStorage(s objectstore.Storage) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.storage = s
		return nil
	}
}

// WithGitHubClient allows injecting the default code host client (for testing)
func WithGitHubClient(c github.Client) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.githubClient = c
		return nil
	}
}

// WithTemporalClient allows injecting a workflow client instead of dialing (for testing)
func WithTemporalClient(c client.Client) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.temporalClient = c
		return nil
	}
}

// WithWorkerFactory replaces the Temporal worker constructor (for testing)
func WithWorkerFactory(f WorkerFactory) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		if f == nil {
			return fmt.Errorf("worker factory cannot be nil")
		}
		cfg.workerFactory = f
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for sync metrics
func WithMeterProvider(mp metric.MeterProvider) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithMetricsHandler serves h on /metrics of the admin API
func WithMetricsHandler(h http.Handler) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.metricsHandler = h
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider for store and service spans
func WithTracerProvider(tp trace.TracerProvider) SkillSyncAppOptions {
	return func(cfg *skillSyncAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// BuildComponents wires every component from the configuration. The
// returned cleanup closes the workflow client and the database pool.
func BuildComponents(ctx context.Context, opts ...SkillSyncAppOptions) (*AppComponents, func(), error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	return buildComponents(ctx, cfg)
}

func buildComponents(ctx context.Context, b *skillSyncAppConfig) (*AppComponents, func(), error) {
	components := &AppComponents{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cleanup()
		}
	}()

	if b.meterProvider == nil {
		b.meterProvider = noop.NewMeterProvider()
	}

	if err := buildStore(ctx, b, components, &closers); err != nil {
		return nil, nil, err
	}

	if err := buildStorage(ctx, b, components); err != nil {
		return nil, nil, err
	}

	if err := buildSyncComponents(b, components); err != nil {
		return nil, nil, err
	}

	if err := buildWorkflowComponents(b, components, &closers); err != nil {
		return nil, nil, err
	}

	var svcOpts []service.ServiceOption
	if b.tracerProvider != nil {
		svcOpts = append(svcOpts, service.WithTracer(b.tracerProvider.Tracer(service.TracerName)))
	}
	svcOpts = append(svcOpts, service.WithTrigger(components.Workflows))
	if pool := components.Database; pool != nil {
		svcOpts = append(svcOpts, service.WithHealthCheck("database", pool.Ping))
	}
	temporalClient := components.Temporal
	svcOpts = append(svcOpts, service.WithHealthCheck("temporal", func(ctx context.Context) error {
		_, err := temporalClient.CheckHealth(ctx, &client.CheckHealthRequest{})
		return err
	}))
	components.Service = service.New(components.Store, svcOpts...)

	cleanupNeeded = false
	return components, cleanup, nil
}

// buildStore connects to PostgreSQL, or falls back to the in-memory store
// when no database is configured.
func buildStore(ctx context.Context, b *skillSyncAppConfig, c *AppComponents, closers *[]func()) error {
	if b.store != nil {
		c.Store = b.store
		return nil
	}

	if b.config.Database == nil {
		slog.Warn("No database configured, using the in-memory store")
		c.Store = store.NewMemory()
		return nil
	}

	pool, err := storage.NewPool(ctx, b.config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database pool: %w", err)
	}
	*closers = append(*closers, pool.Close)

	var storeOpts []store.Option
	if b.tracerProvider != nil {
		storeOpts = append(storeOpts, store.WithTracer(b.tracerProvider.Tracer(store.TracerName)))
	}
	c.Database = pool
	c.Store = store.NewPostgres(pool, storeOpts...)
	slog.Info("Database store initialized",
		"host", b.config.Database.Host,
		"database", b.config.Database.Database)
	return nil
}

func buildStorage(ctx context.Context, b *skillSyncAppConfig, c *AppComponents) error {
	if b.storage != nil {
		c.Storage = b.storage
		return nil
	}

	osCfg := b.config.ObjectStore
	secret, err := osCfg.GetSecretAccessKey()
	if err != nil {
		return err
	}
	s3, err := objectstore.NewS3(ctx, objectstore.S3Options{
		Bucket:             osCfg.Bucket,
		Region:             osCfg.GetRegion(),
		Endpoint:           osCfg.Endpoint,
		PublicBaseURL:      osCfg.PublicBaseURL,
		UsePathStyle:       osCfg.UsePathStyle,
		MultipartThreshold: osCfg.MultipartThreshold,
		AccessKeyID:        osCfg.AccessKeyID,
		SecretAccessKey:    secret,
	})
	if err != nil {
		return fmt.Errorf("failed to create object storage: %w", err)
	}
	c.Storage = s3
	return nil
}

// newGitHubClient returns a code host client for token, honoring the configured API base URL.
func newGitHubClient(cfg *config.GitHubConfig, token string) github.Client {
	var opts []github.Option
	if cfg.APIBaseURL != "" {
		opts = append(opts, github.WithBaseURL(cfg.APIBaseURL))
	}
	if token != "" {
		opts = append(opts, github.WithToken(token))
	}
	return github.NewClient(opts...)
}

// buildSyncComponents builds the sync manager, state service and activities
func buildSyncComponents(b *skillSyncAppConfig, c *AppComponents) error {
	slog.Info("Initializing sync components")

	if b.githubClient == nil {
		token, err := b.config.GitHub.GetToken()
		if err != nil {
			return err
		}
		if token == "" {
			slog.Warn("No GitHub token configured, requests are unauthenticated and heavily rate limited")
		}
		b.githubClient = newGitHubClient(&b.config.GitHub, token)
	}
	c.GitHub = b.githubClient

	syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}
	discoveryMetrics, err := telemetry.NewDiscoveryMetrics(b.meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create discovery metrics: %w", err)
	}

	stateService := state.NewRepositoryStateService(c.Store,
		state.WithRetention(b.config.Sync.GetBlacklistRetention()),
		state.WithMetrics(syncMetrics))

	c.Manager = skillsync.NewManager(c.Store, c.Storage, c.GitHub,
		skillsync.WithStateService(stateService),
		skillsync.WithMetrics(syncMetrics))

	defaultClient := c.GitHub
	ghCfg := b.config.GitHub
	discoveryOpts := []discovery.Option{discovery.WithConcurrency(b.config.Discovery.Concurrency)}
	if f := b.config.Discovery.Filter; f != nil {
		nameFilter, err := filtering.NewNameFilter(f.Include, f.Exclude)
		if err != nil {
			return fmt.Errorf("failed to build discovery filter: %w", err)
		}
		discoveryOpts = append(discoveryOpts, discovery.WithFilter(nameFilter))
	}
	discover := func(token string) workflows.DiscoveryRunner {
		gh := defaultClient
		if token != "" {
			gh = newGitHubClient(&ghCfg, token)
		}
		return discovery.New(gh, c.Store, discoveryOpts...)
	}

	c.Activities = workflows.NewActivities(c.Store, c.Manager, stateService, discover,
		workflows.WithDiscoveryMetrics(discoveryMetrics))
	slog.Info("Sync components initialized successfully")
	return nil
}

// buildWorkflowComponents dials Temporal and builds the workflow client and
// the discovery coordinator that launches through it.
func buildWorkflowComponents(b *skillSyncAppConfig, c *AppComponents, closers *[]func()) error {
	tcfg := b.config.Temporal
	if b.temporalClient == nil {
		tc, err := client.Dial(client.Options{
			HostPort:  tcfg.GetHostPort(),
			Namespace: tcfg.GetNamespace(),
			Logger:    tlog.NewStructuredLogger(slog.Default()),
		})
		if err != nil {
			return fmt.Errorf("failed to connect to temporal at %s: %w", tcfg.GetHostPort(), err)
		}
		*closers = append(*closers, tc.Close)
		b.temporalClient = tc
	}
	c.Temporal = b.temporalClient
	c.Workflows = workflows.NewClient(c.Temporal, tcfg.GetTaskQueue(),
		workflows.WithChunkSize(b.config.Sync.GetChunkSize()))

	registries, err := coordinator.RegistriesFromConfig(b.config.Discovery.Registries)
	if err != nil {
		return fmt.Errorf("failed to load discovery registries: %w", err)
	}
	c.Coordinator = coordinator.New(c.Store, c.Workflows, coordinator.WithRegistries(registries...))
	return nil
}

// buildHTTPServer builds the admin API server with router and middleware
func buildHTTPServer(b *skillSyncAppConfig, svc service.SyncService) (*http.Server, error) {
	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Metrics go first so rejected requests are counted too
	httpMetrics, err := telemetry.NewHTTPMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}
	middlewares := append([]func(http.Handler) http.Handler{httpMetrics.Middleware}, b.middlewares...)

	token, err := b.config.API.GetAuthToken()
	if err != nil {
		return nil, err
	}
	publicPaths := append(append([]string{}, auth.DefaultPublicPaths...), b.config.API.PublicPaths...)
	middlewares = append(middlewares,
		auth.WrapWithPublicPaths(auth.NewBearerTokenMiddleware(token, authRealm), publicPaths))

	router := api.NewServer(svc,
		api.WithMiddlewares(middlewares...),
		api.WithVersion(b.version),
		api.WithMetricsHandler(b.metricsHandler))

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("Admin API configured", "address", b.address)
	return server, nil
}
