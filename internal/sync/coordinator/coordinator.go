package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/stacklok/toolhive-skill-sync/internal/store"
)

const (
	// basePollingInterval is the base interval at which the coordinator checks for due registries
	basePollingInterval = 2 * time.Minute
	// pollingJitter is the maximum random offset (±30 seconds) applied to the polling interval
	pollingJitter = 30 * time.Second

	// StatusOK is recorded after a discovery run that succeeded
	StatusOK = "ok"
)

// Launcher runs one registry-scoped discovery. It returns once the run has
// finished so its error can be recorded as the registry's last status.
type Launcher interface {
	LaunchDiscovery(ctx context.Context, registry store.DiscoveryRegistry) error
}

// Coordinator schedules discovery registries whose next run is due
type Coordinator interface {
	// Start registers the configured registries and polls for due ones.
	// Blocks until context is cancelled or an unrecoverable error occurs
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator
	Stop() error
}

type defaultCoordinator struct {
	store      store.RegistryStore
	launcher   Launcher
	registries []store.DiscoveryRegistry
	now        func() time.Time

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithRegistries sets the registries upserted when the coordinator starts
func WithRegistries(registries ...store.DiscoveryRegistry) Option {
	return func(c *defaultCoordinator) {
		c.registries = append(c.registries, registries...)
	}
}

// WithClock overrides the wall clock used to pick due registries
func WithClock(now func() time.Time) Option {
	return func(c *defaultCoordinator) {
		c.now = now
	}
}

// New creates a new coordinator with injected dependencies
func New(st store.RegistryStore, launcher Launcher, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		store:    st,
		launcher: launcher,
		now:      func() time.Time { return time.Now().UTC() },
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// calculatePollingInterval returns the base polling interval with a random jitter applied.
// The jitter is ±30 seconds so that several workers do not poll the database simultaneously.
func calculatePollingInterval() time.Duration {
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	jitterOffset := time.Duration(rand.Int64N(int64(2*pollingJitter))) - pollingJitter
	return basePollingInterval + jitterOffset
}

// Start begins background discovery scheduling
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting discovery coordinator", "registry_count", len(c.registries))

	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		slog.Info("Discovery coordinator shutting down")
	}()

	if err := c.initialize(coordCtx); err != nil {
		return fmt.Errorf("failed to initialize discovery registries: %w", err)
	}

	pollingInterval := calculatePollingInterval()
	slog.Info("Configured coordinator polling interval",
		"base_interval", basePollingInterval,
		"actual_interval", pollingInterval)

	ticker := time.NewTicker(pollingInterval)
	defer ticker.Stop()

	c.processDueRegistries(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.processDueRegistries(coordCtx)

			// Recalculate interval with new jitter for next iteration
			ticker.Reset(calculatePollingInterval())
		case <-coordCtx.Done():
			slog.Info("Discovery coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		slog.Info("Stopping discovery coordinator")
		c.cancelFunc()
		<-c.done
	}
	return nil
}

// initialize upserts every configured registry. New registries are due
// immediately; existing ones keep their schedule.
func (c *defaultCoordinator) initialize(ctx context.Context) error {
	for _, reg := range c.registries {
		stored, err := c.store.UpsertDiscoveryRegistry(ctx, reg)
		if err != nil {
			return fmt.Errorf("registry %s: %w", reg.Name, err)
		}
		slog.Debug("Discovery registry registered",
			"registry", stored.Name,
			"registry_id", stored.ID,
			"next_run_at", stored.NextRunAt)
	}
	return nil
}

// processDueRegistries runs every registry whose next run is due, one at a time
func (c *defaultCoordinator) processDueRegistries(ctx context.Context) {
	due, err := c.store.ListDueDiscoveryRegistries(ctx, c.now())
	if err != nil {
		slog.Error("Error listing due discovery registries", "error", err)
		return
	}

	for _, reg := range due {
		if ctx.Err() != nil {
			return
		}
		c.runRegistry(ctx, reg)
	}
}

// runRegistry launches a discovery for reg and always records the run,
// whatever the result, so that a failing registry waits a full interval.
func (c *defaultCoordinator) runRegistry(ctx context.Context, reg store.DiscoveryRegistry) {
	startTime := c.now()
	status := fmt.Sprintf("error: unexpected failure while running registry %s", reg.Name)
	defer func() {
		interval := reg.Interval
		if interval <= 0 {
			interval = store.DefaultDiscoveryInterval
		}
		if err := c.store.RecordDiscoveryRun(ctx, reg.ID, startTime, startTime.Add(interval), status); err != nil {
			slog.Error("Error recording discovery run",
				"registry", reg.Name,
				"error", err)
		}
	}()

	slog.Info("Starting discovery run", "registry", reg.Name, "query_count", len(reg.Queries))

	if err := c.launcher.LaunchDiscovery(ctx, reg); err != nil {
		status = "error: " + err.Error()
		slog.Error("Discovery run failed",
			"registry", reg.Name,
			"error", err)
		return
	}

	status = StatusOK
	slog.Info("Discovery run completed",
		"registry", reg.Name,
		"duration", c.now().Sub(startTime))
}
