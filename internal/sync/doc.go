// Package sync turns a repository archive into persisted skill and plugin
// versions.
//
// # Pipeline
//
// A repository sync runs in two steps so that durable workflow replays
// never hit the code host twice:
//
//   - FetchSnapshot downloads the repository zipball once, stages the raw
//     bytes in object storage under snapshots/<owner>/<name>/<hash>.zip and
//     returns a small SnapshotRef.
//   - ApplySnapshot reads the staged bytes back and runs Apply.
//
// Apply normalizes the archive, resolves a marketplace manifest when the
// repository has one, then scans for standalone SKILL.md files outside the
// directories plugins claimed. Every skill and plugin version is keyed by a
// content hash over its file subtree, so applying the same bytes twice
// writes nothing the second time.
//
// # Outcomes
//
// Every sync ends in a Result whose Outcome is one of SkippedBlacklisted,
// Blacklisted, Updated, Unchanged or NotFound. Malformed content never
// surfaces as an error: it moves the repository to the blacklist through
// the state package. Errors are reserved for transient failures that a
// retry may fix.
//
// # Coordinator Package
//
// The sync/coordinator subpackage schedules discovery registries whose
// next run is due.
package sync
