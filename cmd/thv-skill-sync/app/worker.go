package app

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stacklok/toolhive-skill-sync/internal/api"
	skillapp "github.com/stacklok/toolhive-skill-sync/internal/app"
	"github.com/stacklok/toolhive-skill-sync/internal/telemetry"
	"github.com/stacklok/toolhive-skill-sync/pkg/buildinfo"
)

const defaultGracefulTimeout = 30 * time.Second // Kubernetes-friendly shutdown time

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the sync worker",
		Long: `Run the Temporal worker that executes discovery and sync workflows.

The worker also registers the scheduled bulk sync, runs the discovery
registry coordinator and serves the admin API (health, readiness, pending
repositories, repository detail and manual sync triggers). It requires a configuration file (--config) that
specifies the database, object store, GitHub and Temporal settings.`,
		RunE: runWorker,
	}
	addConfigFlag(cmd)
	cmd.Flags().String("address", ":8080", "Address the admin API listens on")
	cmd.Flags().Duration("graceful-timeout", defaultGracefulTimeout, "Time allowed for in-flight activities on shutdown")
	return cmd
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	timeout, err := cmd.Flags().GetDuration("graceful-timeout")
	if err != nil {
		return fmt.Errorf("failed to get graceful-timeout flag: %w", err)
	}
	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return fmt.Errorf("failed to get address flag: %w", err)
	}

	tel, err := telemetry.New(ctx,
		telemetry.WithTelemetryConfig(cfg.Telemetry),
		telemetry.WithServiceVersion(buildinfo.GetVersionInfo().Version),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(ctx); err != nil {
			slog.Error("Failed to shutdown telemetry", "error", err)
		}
	}()

	worker, err := skillapp.NewSkillSyncApp(ctx,
		skillapp.WithConfig(cfg),
		skillapp.WithAddress(address),
		skillapp.WithVersion(apiVersion()),
		skillapp.WithMeterProvider(tel.MeterProvider()),
		skillapp.WithMetricsHandler(tel.MetricsHandler()),
		skillapp.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to build worker: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- worker.Start()
	}()

	// Wait for interrupt signal or a startup failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			_ = worker.Stop(timeout)
			return err
		}
	}

	return worker.Stop(timeout)
}

func apiVersion() api.VersionResponse {
	info := buildinfo.GetVersionInfo()
	return api.VersionResponse{
		Version:   info.Version,
		Commit:    info.Commit,
		BuildDate: info.BuildDate,
		GoVersion: info.GoVersion,
		Platform:  info.Platform,
	}
}
