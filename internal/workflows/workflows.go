package workflows

import (
	"github.com/google/uuid"
	"go.temporal.io/sdk/workflow"

	skillsync "github.com/stacklok/toolhive-skill-sync/internal/sync"
	"github.com/stacklok/toolhive-skill-sync/internal/sync/state"
)

// DefaultChunkSize is the number of repositories synced concurrently.
const DefaultChunkSize = 5

// cleanupBlacklistActivity is the registered name of Activities.CleanupBlacklist.
const cleanupBlacklistActivity = "CleanupBlacklist"

// RepoSyncWorkflow syncs a single repository.
func RepoSyncWorkflow(ctx workflow.Context, input RepoSyncInput) (*SyncOutcome, error) {
	return syncRepository(ctx, input.RepositoryID)
}

// ScheduledSyncWorkflow expires old blacklist entries, then syncs every
// pending repository a chunk at a time. A failed repository sync is counted
// and does not stop the run.
func ScheduledSyncWorkflow(ctx workflow.Context, input ScheduledSyncInput) (*ScheduledSyncResult, error) {
	logger := workflow.GetLogger(ctx)
	var a *Activities

	result := &ScheduledSyncResult{Outcomes: map[skillsync.Outcome]int{}}

	// Referenced by name so the registered Activities instance runs it.
	var cleanup state.CleanupResult
	err := workflow.ExecuteLocalActivity(
		workflow.WithLocalActivityOptions(ctx, cleanupOptions), cleanupBlacklistActivity,
	).Get(ctx, &cleanup)
	if err != nil {
		logger.Warn("Blacklist cleanup failed, continuing with sync", "error", err)
	} else {
		result.Expired = len(cleanup.Expired)
		result.Reactivated = cleanup.Reactivated
	}

	var pending []uuid.UUID
	err = workflow.ExecuteActivity(
		workflow.WithActivityOptions(ctx, listOptions), a.ListPendingRepositories, input.Limit,
	).Get(ctx, &pending)
	if err != nil {
		return nil, err
	}
	result.Pending = len(pending)
	logger.Info("Scheduled sync started", "pending", len(pending), "expired", result.Expired)

	for _, chunk := range chunks(pending, input.ChunkSize) {
		for _, r := range runChunk(ctx, chunk, syncRepository) {
			if r.err != nil {
				logger.Error("Repository sync failed", "repository_id", r.id, "error", r.err)
				result.Failed++
				continue
			}
			result.Outcomes[r.outcome.Outcome]++
		}
	}

	logger.Info("Scheduled sync completed", "pending", result.Pending, "failed", result.Failed)
	return result, nil
}

// DiscoveryWorkflow runs discovery. A registry-scoped run then syncs every
// touched repository through RepoSyncWorkflow children.
func DiscoveryWorkflow(ctx workflow.Context, input DiscoveryInput) (*DiscoveryResult, error) {
	logger := workflow.GetLogger(ctx)
	var a *Activities

	var result DiscoveryResult
	err := workflow.ExecuteActivity(
		workflow.WithActivityOptions(ctx, discoveryOptions), a.RunDiscovery, input,
	).Get(ctx, &result)
	if err != nil {
		return nil, err
	}

	if input.RegistryID == nil || len(result.RepositoryIDs) == 0 {
		return &result, nil
	}

	result.Syncs = map[skillsync.Outcome]int{}
	for _, chunk := range chunks(result.RepositoryIDs, input.ChunkSize) {
		for _, r := range runChunk(ctx, chunk, childSync) {
			if r.err != nil {
				logger.Warn("Repository sync after discovery failed", "repository_id", r.id, "error", r.err)
				result.SyncFailures++
				continue
			}
			result.Syncs[r.outcome.Outcome]++
		}
	}
	return &result, nil
}

func syncRepository(ctx workflow.Context, id uuid.UUID) (*SyncOutcome, error) {
	var a *Activities

	var fetched skillsync.FetchResult
	err := workflow.ExecuteActivity(
		workflow.WithActivityOptions(ctx, fetchOptions), a.FetchRepoSnapshot, RepoSyncInput{RepositoryID: id},
	).Get(ctx, &fetched)
	if err != nil {
		return nil, err
	}
	if fetched.Snapshot == nil {
		return &SyncOutcome{RepositoryID: id, Outcome: fetched.Outcome}, nil
	}

	var outcome SyncOutcome
	err = workflow.ExecuteActivity(
		workflow.WithActivityOptions(ctx, applyOptions), a.ApplySyncFromSnapshot, *fetched.Snapshot,
	).Get(ctx, &outcome)
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func childSync(ctx workflow.Context, id uuid.UUID) (*SyncOutcome, error) {
	cctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
		WorkflowID: RepoSyncWorkflowID(id),
	})
	var outcome SyncOutcome
	if err := workflow.ExecuteChildWorkflow(cctx, RepoSyncWorkflow, RepoSyncInput{RepositoryID: id}).Get(ctx, &outcome); err != nil {
		return nil, err
	}
	return &outcome, nil
}

type chunkResult struct {
	id      uuid.UUID
	outcome *SyncOutcome
	err     error
}

// runChunk runs sync for every id concurrently and waits for all of them.
// Results keep the order of ids.
func runChunk(
	ctx workflow.Context,
	ids []uuid.UUID,
	sync func(workflow.Context, uuid.UUID) (*SyncOutcome, error),
) []chunkResult {
	results := make([]chunkResult, len(ids))
	wg := workflow.NewWaitGroup(ctx)
	for i, id := range ids {
		wg.Add(1)
		workflow.Go(ctx, func(gctx workflow.Context) {
			defer wg.Done()
			outcome, err := sync(gctx, id)
			results[i] = chunkResult{id: id, outcome: outcome, err: err}
		})
	}
	wg.Wait(ctx)
	return results
}

// chunks splits ids into consecutive slices of at most size elements.
func chunks(ids []uuid.UUID, size int) [][]uuid.UUID {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out [][]uuid.UUID
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
