// Package workflows runs discovery and repository syncs as durable Temporal
// workflows.
//
// # Workflows
//
//   - DiscoveryWorkflow runs the RunDiscovery activity. When scoped to a
//     discovery registry it then starts a RepoSyncWorkflow child for every
//     touched repository, a chunk at a time.
//   - ScheduledSyncWorkflow expires old blacklist entries, lists pending
//     repositories and syncs them a chunk at a time.
//   - RepoSyncWorkflow syncs a single repository.
//
// # Snapshots
//
// A repository sync is split into FetchRepoSnapshot and
// ApplySyncFromSnapshot. The fetch activity downloads the archive once and
// stages it in object storage; only the small SnapshotRef enters workflow
// history. The apply activity reads the staged bytes back, so retries and
// replays never hit the code host again.
//
// # Errors
//
// Malformed content is not an error: it ends the sync with a Blacklisted
// outcome. Activity failures that a retry cannot fix are returned as
// non-retryable application errors of type MalformedContent or NotFound.
// Everything else is retried according to the activity's retry policy.
package workflows
