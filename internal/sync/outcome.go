package sync

import (
	"errors"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one repository sync.
type Outcome string

const (
	// OutcomeSkippedBlacklisted means the repository was blacklisted before the sync started.
	OutcomeSkippedBlacklisted Outcome = "SkippedBlacklisted"
	// OutcomeBlacklisted means this sync moved the repository to the blacklist.
	OutcomeBlacklisted Outcome = "Blacklisted"
	// OutcomeUpdated means at least one version was written or an item
	// deactivated or reactivated.
	OutcomeUpdated Outcome = "Updated"
	// OutcomeUnchanged means every resolved version already existed with the same hash.
	OutcomeUnchanged Outcome = "Unchanged"
	// OutcomeNotFound means the repository row or its upstream no longer exists.
	OutcomeNotFound Outcome = "NotFound"
)

// ErrSnapshotMissing is returned when a staged snapshot cannot be read back
// or no longer matches its recorded hash.
var ErrSnapshotMissing = errors.New("repository snapshot missing")

// Diagnostic explains why a candidate file or plugin entry was skipped.
type Diagnostic struct {
	Path    string `json:"path,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// Result describes what a sync did.
type Result struct {
	Outcome      Outcome   `json:"outcome"`
	RepositoryID uuid.UUID `json:"repository_id"`
	RepoType     string    `json:"repo_type,omitempty"`
	// Reason is the blacklist reason when Outcome is Blacklisted.
	Reason         string       `json:"reason,omitempty"`
	SkillsFound    int          `json:"skills_found"`
	SkillsWritten  int          `json:"skills_written"`
	PluginsFound   int          `json:"plugins_found"`
	PluginsWritten int          `json:"plugins_written"`
	Deactivated    int64        `json:"deactivated"`
	Reactivated    int64        `json:"reactivated"`
	Diagnostics    []Diagnostic `json:"diagnostics,omitempty"`
}

// SnapshotRef points at a staged repository archive. It is the only value
// that crosses from the fetch step into workflow history.
type SnapshotRef struct {
	RepositoryID uuid.UUID `json:"repository_id"`
	Owner        string    `json:"owner"`
	Name         string    `json:"name"`
	URL          string    `json:"url"`
	ArchiveHash  string    `json:"archive_hash"`
	StorageKey   string    `json:"storage_key"`
}

// FetchResult is the output of FetchSnapshot. Snapshot is nil when Outcome
// already settles the sync.
type FetchResult struct {
	Outcome  Outcome      `json:"outcome,omitempty"`
	Snapshot *SnapshotRef `json:"snapshot,omitempty"`
}

func terminal(outcome Outcome, repositoryID uuid.UUID) *Result {
	return &Result{Outcome: outcome, RepositoryID: repositoryID}
}
