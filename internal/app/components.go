package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"go.temporal.io/sdk/client"

	"github.com/stacklok/toolhive-skill-sync/internal/github"
	"github.com/stacklok/toolhive-skill-sync/internal/objectstore"
	"github.com/stacklok/toolhive-skill-sync/internal/service"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	skillsync "github.com/stacklok/toolhive-skill-sync/internal/sync"
	"github.com/stacklok/toolhive-skill-sync/internal/sync/coordinator"
	"github.com/stacklok/toolhive-skill-sync/internal/workflows"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Store persists repositories and their catalog
	Store store.Store

	// Storage holds snapshots and packaged artifacts
	Storage objectstore.Storage

	// GitHub is the default code host client
	GitHub github.Client

	// Manager runs repository syncs
	Manager skillsync.Manager

	// Activities are registered with the worker
	Activities *workflows.Activities

	// Temporal is the workflow runtime client
	Temporal client.Client

	// Workflows starts workflows on the configured task queue
	Workflows *workflows.Client

	// Coordinator schedules discovery registries
	Coordinator coordinator.Coordinator

	// Service exposes the operator operations
	Service service.SyncService

	// Database is the connection pool (nil with the in-memory store)
	Database *pgxpool.Pool
}
