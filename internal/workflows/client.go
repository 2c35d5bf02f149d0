package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/stacklok/toolhive-skill-sync/internal/store"
)

// Client starts workflows on a task queue.
type Client struct {
	client    client.Client
	taskQueue string
	chunkSize int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithChunkSize sets the chunk size passed to registry-scoped discovery runs.
func WithChunkSize(n int) ClientOption {
	return func(c *Client) {
		c.chunkSize = n
	}
}

// NewClient returns a Client that starts workflows on taskQueue.
func NewClient(c client.Client, taskQueue string, opts ...ClientOption) *Client {
	wc := &Client{
		client:    c,
		taskQueue: taskQueue,
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(wc)
	}
	return wc
}

// TriggerSync starts RepoSyncWorkflow for id and returns its run id. While a
// sync of the same repository runs, the existing run is returned.
func (c *Client) TriggerSync(ctx context.Context, id uuid.UUID) (string, error) {
	run, err := c.startSync(ctx, id)
	if err != nil {
		return "", err
	}
	return run.GetRunID(), nil
}

// SyncRepository starts RepoSyncWorkflow for id and waits for its outcome.
func (c *Client) SyncRepository(ctx context.Context, id uuid.UUID) (*SyncOutcome, error) {
	run, err := c.startSync(ctx, id)
	if err != nil {
		return nil, err
	}
	var outcome SyncOutcome
	if err := run.Get(ctx, &outcome); err != nil {
		return nil, fmt.Errorf("repository sync %s failed: %w", id, err)
	}
	return &outcome, nil
}

func (c *Client) startSync(ctx context.Context, id uuid.UUID) (client.WorkflowRun, error) {
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        RepoSyncWorkflowID(id),
		TaskQueue: c.taskQueue,
	}, RepoSyncWorkflow, RepoSyncInput{RepositoryID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to start repository sync %s: %w", id, err)
	}
	slog.InfoContext(ctx, "Repository sync started",
		"repository_id", id,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID())
	return run, nil
}

// Discover runs an unscoped discovery over queries and waits for the result.
func (c *Client) Discover(ctx context.Context, queries []string) (*DiscoveryResult, error) {
	return c.discover(ctx, "discovery-"+uuid.NewString(), DiscoveryInput{Queries: queries})
}

// LaunchDiscovery runs a registry-scoped discovery and waits for it,
// including the syncs it starts.
func (c *Client) LaunchDiscovery(ctx context.Context, registry store.DiscoveryRegistry) error {
	id := registry.ID
	_, err := c.discover(ctx, DiscoveryWorkflowID(registry.Name), DiscoveryInput{
		RegistryID: &id,
		ChunkSize:  c.chunkSize,
	})
	return err
}

func (c *Client) discover(ctx context.Context, workflowID string, input DiscoveryInput) (*DiscoveryResult, error) {
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
	}, DiscoveryWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("failed to start discovery: %w", err)
	}

	var result DiscoveryResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("discovery %s failed: %w", workflowID, err)
	}
	return &result, nil
}

// EnsureSchedule creates the schedule that runs ScheduledSyncWorkflow every
// interval. An existing schedule is left untouched.
func (c *Client) EnsureSchedule(ctx context.Context, interval time.Duration, input ScheduledSyncInput) error {
	_, err := c.client.ScheduleClient().Create(ctx, client.ScheduleOptions{
		ID: ScheduledSyncWorkflowID,
		Spec: client.ScheduleSpec{
			Intervals: []client.ScheduleIntervalSpec{{Every: interval}},
		},
		Action: &client.ScheduleWorkflowAction{
			ID:        ScheduledSyncWorkflowID,
			Workflow:  ScheduledSyncWorkflow,
			Args:      []any{input},
			TaskQueue: c.taskQueue,
		},
	})
	if err != nil {
		if errors.Is(err, temporal.ErrScheduleAlreadyRunning) {
			slog.DebugContext(ctx, "Scheduled sync already registered", "schedule_id", ScheduledSyncWorkflowID)
			return nil
		}
		return fmt.Errorf("failed to create sync schedule: %w", err)
	}

	slog.InfoContext(ctx, "Scheduled sync registered",
		"schedule_id", ScheduledSyncWorkflowID,
		"interval", interval)
	return nil
}
