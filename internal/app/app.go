// Package app provides application lifecycle management for the skill sync worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.temporal.io/sdk/worker"

	"github.com/stacklok/toolhive-skill-sync/internal/config"
	"github.com/stacklok/toolhive-skill-sync/internal/workflows"
)

// SkillSyncApp encapsulates all components needed to run the sync worker.
// It provides lifecycle management and graceful shutdown capabilities
type SkillSyncApp struct {
	config     *config.Config
	components *AppComponents
	worker     worker.Worker
	httpServer *http.Server
	cleanup    func()

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// NewSkillSyncApp builds the components, the admin API server and a worker
// with every workflow and activity registered.
func NewSkillSyncApp(ctx context.Context, opts ...SkillSyncAppOptions) (*SkillSyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	components, cleanup, err := buildComponents(ctx, cfg)
	if err != nil {
		return nil, err
	}

	server, err := buildHTTPServer(cfg, components.Service)
	if err != nil {
		cleanup()
		return nil, err
	}

	w := cfg.workerFactory(components.Temporal, cfg.config.Temporal.GetTaskQueue())
	workflows.Register(w, components.Activities)

	appCtx, cancel := context.WithCancel(ctx)
	return &SkillSyncApp{
		config:     cfg.config,
		components: components,
		worker:     w,
		httpServer: server,
		cleanup:    cleanup,
		ctx:        appCtx,
		cancelFunc: cancel,
	}, nil
}

// Start registers the sync schedule, starts the worker and the discovery
// coordinator, then serves the admin API. It blocks until Stop shuts the
// server down.
func (app *SkillSyncApp) Start() error {
	if err := InitializeSyncSchedule(app.ctx, app.config, app.components.Workflows); err != nil {
		return err
	}

	if err := app.worker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}
	slog.Info("Worker started", "task_queue", app.config.Temporal.GetTaskQueue())

	go func() {
		if err := app.components.Coordinator.Start(app.ctx); err != nil {
			slog.Error("Discovery coordinator failed", "error", err)
		}
	}()

	slog.Info("Admin API listening", "address", app.httpServer.Addr)
	if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop gracefully stops the application with the given timeout.
// It stops the coordinator and the admin API, then the worker, then
// releases connections.
func (app *SkillSyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down worker...")

	if err := app.components.Coordinator.Stop(); err != nil {
		slog.Error("Failed to stop discovery coordinator", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Admin API forced to shutdown", "error", err)
	}

	stopped := make(chan struct{})
	go func() {
		app.worker.Stop()
		close(stopped)
	}()

	var err error
	select {
	case <-stopped:
	case <-time.After(timeout):
		err = fmt.Errorf("worker did not stop within %s", timeout)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}
	if app.cleanup != nil {
		app.cleanup()
	}

	if err != nil {
		return err
	}
	slog.Info("Worker shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *SkillSyncApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the admin API server
func (app *SkillSyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}

// GetComponents returns the wired components
func (app *SkillSyncApp) GetComponents() *AppComponents {
	return app.components
}
