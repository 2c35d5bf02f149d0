package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stacklok/toolhive-skill-sync/internal/config"
	"github.com/stacklok/toolhive-skill-sync/internal/workflows"
)

// ScheduleCreator registers the recurring bulk sync.
type ScheduleCreator interface {
	EnsureSchedule(ctx context.Context, interval time.Duration, input workflows.ScheduledSyncInput) error
}

// InitializeSyncSchedule ensures the scheduled bulk sync exists.
// This function is idempotent and safe to call on every startup; an
// existing schedule keeps its settings.
func InitializeSyncSchedule(ctx context.Context, cfg *config.Config, creator ScheduleCreator) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	if creator == nil {
		return fmt.Errorf("schedule creator is required")
	}

	interval := cfg.Sync.GetScheduleInterval()
	input := workflows.ScheduledSyncInput{
		ChunkSize: cfg.Sync.GetChunkSize(),
		Limit:     cfg.Sync.PendingLimit,
	}

	slog.Info("Initializing scheduled sync", "interval", interval, "chunk_size", input.ChunkSize)

	if err := creator.EnsureSchedule(ctx, interval, input); err != nil {
		return fmt.Errorf("failed to initialize scheduled sync: %w", err)
	}
	return nil
}
