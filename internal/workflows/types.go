package workflows

import (
	"github.com/google/uuid"

	skillsync "github.com/stacklok/toolhive-skill-sync/internal/sync"
)

// Non-retryable application error types.
const (
	ErrTypeMalformedContent = "MalformedContent"
	ErrTypeNotFound         = "NotFound"
)

// ScheduledSyncWorkflowID is the id of the scheduled bulk sync workflow and its schedule.
const ScheduledSyncWorkflowID = "scheduled-sync"

// RepoSyncWorkflowID is the id of the single-repository workflow for id.
// Only one sync per repository runs at a time.
func RepoSyncWorkflowID(id uuid.UUID) string {
	return "repo-sync-" + id.String()
}

// DiscoveryWorkflowID is the id of a registry-scoped discovery workflow.
func DiscoveryWorkflowID(registryName string) string {
	return "discovery-" + registryName
}

// DiscoveryInput selects the queries of a discovery run. With RegistryID set,
// the registry's queries and token are used and Queries is ignored.
type DiscoveryInput struct {
	Queries    []string   `json:"queries,omitempty"`
	RegistryID *uuid.UUID `json:"registry_id,omitempty"`
	// ChunkSize bounds the child syncs started concurrently for a registry run.
	ChunkSize int `json:"chunk_size,omitempty"`
}

// DiscoveryResult summarizes a discovery run.
type DiscoveryResult struct {
	Inserted      int         `json:"inserted"`
	Updated       int         `json:"updated"`
	Skipped       int         `json:"skipped"`
	RepositoryIDs []uuid.UUID `json:"repository_ids"`
	// Syncs counts child syncs by outcome, for registry-scoped runs.
	Syncs map[skillsync.Outcome]int `json:"syncs,omitempty"`
	// SyncFailures counts child syncs that failed or could not start.
	SyncFailures int `json:"sync_failures,omitempty"`
}

// ScheduledSyncInput configures one bulk sync.
type ScheduledSyncInput struct {
	// ChunkSize is the number of repositories synced concurrently, defaults to 5.
	ChunkSize int `json:"chunk_size,omitempty"`
	// Limit caps the pending repositories picked up. Zero means all of them.
	Limit int `json:"limit,omitempty"`
}

// ScheduledSyncResult summarizes one bulk sync.
type ScheduledSyncResult struct {
	Expired     int                       `json:"expired"`
	Reactivated int64                     `json:"reactivated"`
	Pending     int                       `json:"pending"`
	Outcomes    map[skillsync.Outcome]int `json:"outcomes"`
	Failed      int                       `json:"failed"`
}

// RepoSyncInput selects the repository of a single sync.
type RepoSyncInput struct {
	RepositoryID uuid.UUID `json:"repository_id"`
}

// SyncOutcome is the result of one repository sync.
type SyncOutcome struct {
	RepositoryID   uuid.UUID         `json:"repository_id"`
	Outcome        skillsync.Outcome `json:"outcome"`
	Reason         string            `json:"reason,omitempty"`
	SkillsWritten  int               `json:"skills_written"`
	PluginsWritten int               `json:"plugins_written"`
	Deactivated    int64             `json:"deactivated"`
	Reactivated    int64             `json:"reactivated"`
}

func outcomeFromResult(r *skillsync.Result) *SyncOutcome {
	return &SyncOutcome{
		RepositoryID:   r.RepositoryID,
		Outcome:        r.Outcome,
		Reason:         r.Reason,
		SkillsWritten:  r.SkillsWritten,
		PluginsWritten: r.PluginsWritten,
		Deactivated:    r.Deactivated,
		Reactivated:    r.Reactivated,
	}
}
