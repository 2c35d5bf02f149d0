// Package store persists repositories, blacklist entries, skills, plugins and
// discovery registries. Two implementations are provided: PostgreSQL for
// production and an in-memory one for tests and local runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DefaultDiscoveryInterval is the schedule of a registry without an interval.
const DefaultDiscoveryInterval = 24 * time.Hour

// RepositoryStatus is the state of a repository in the sync state machine.
type RepositoryStatus string

const (
	// StatusActive repositories are discovered and synced.
	StatusActive RepositoryStatus = "active"
	// StatusBlacklisted repositories are skipped until their blacklist entry expires.
	StatusBlacklisted RepositoryStatus = "blacklisted"
)

// RepoType records how a repository was last resolved.
type RepoType string

const (
	// RepoTypeUnknown means the repository has not been synced yet.
	RepoTypeUnknown RepoType = ""
	// RepoTypeStandalone repositories publish SKILL.md files directly.
	RepoTypeStandalone RepoType = "standalone"
	// RepoTypeMarketplace repositories publish a marketplace manifest.
	RepoTypeMarketplace RepoType = "marketplace"
)

// Repository is a source-hosting project.
type Repository struct {
	ID              uuid.UUID
	Platform        string
	Owner           string
	Name            string
	URL             string
	Description     string
	Stars           int64
	Status          RepositoryStatus
	RepoType        RepoType
	BlacklistReason string
	BlacklistedAt   *time.Time
	PushedAt        *time.Time
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName returns "owner/name".
func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// IsBlacklisted reports whether sync must skip the repository.
func (r *Repository) IsBlacklisted() bool {
	return r.Status == StatusBlacklisted
}

// DiscoveredRepository is a search hit to be upserted.
type DiscoveredRepository struct {
	Platform    string
	Owner       string
	Name        string
	URL         string
	Description string
	Stars       int64
	PushedAt    *time.Time
}

// BlacklistEntry excludes a repository URL from discovery and sync until it expires.
type BlacklistEntry struct {
	URL       string
	Reason    string
	CreatedAt time.Time
}

// Skill is a named skill published by a repository.
type Skill struct {
	ID            uuid.UUID
	RepositoryID  uuid.UUID
	Name          string
	LatestVersion string
	IsActive      bool
	// Reactivated is set by UpsertSkill when it turned an inactive skill active.
	Reactivated bool
}

// Version is a stored, packaged version of a skill or plugin.
type Version struct {
	ID          uuid.UUID
	ParentID    uuid.UUID
	Version     string
	Description string
	Readme      string
	StorageKey  string
	StorageURL  string
	FileHash    string
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VersionWrite is the content of a version upsert. LatestVersion is the
// value the owning skill or plugin's latest pointer is set to in the same
// transaction.
type VersionWrite struct {
	Version       string
	Description   string
	Readme        string
	StorageKey    string
	StorageURL    string
	FileHash      string
	Metadata      map[string]any
	LatestVersion string
}

// Plugin is a named plugin listed in a repository's marketplace manifest.
type Plugin struct {
	ID            uuid.UUID
	RepositoryID  uuid.UUID
	Name          string
	Description   string
	Source        string
	Strict        bool
	LatestVersion string
	IsActive      bool
	// Reactivated is set by upserts that turned an inactive plugin active.
	Reactivated bool
}

// PluginUpsert carries the marketplace entry fields of a plugin.
type PluginUpsert struct {
	Name        string
	Description string
	Source      string
	Strict      bool
}

// ComponentKind is the kind of a plugin component.
type ComponentKind string

const (
	// ComponentCommand is a slash command
	ComponentCommand ComponentKind = "command"
	// ComponentAgent is a sub-agent
	ComponentAgent ComponentKind = "agent"
	// ComponentSkill is a skill
	ComponentSkill ComponentKind = "skill"
)

// PluginComponent is one command, agent or skill file of a plugin version.
// Path is relative to the plugin root.
type PluginComponent struct {
	Kind        ComponentKind
	Path        string
	Name        string
	Description string
	Body        string
	Metadata    map[string]any
}

// DiscoveryRegistry is a configured discovery source and its schedule.
type DiscoveryRegistry struct {
	ID         uuid.UUID
	Name       string
	Platform   string
	Token      string
	Queries    []string
	Interval   time.Duration
	LastRunAt  *time.Time
	NextRunAt  *time.Time
	LastStatus string
}

// RepositoryStore reads and writes repository rows.
type RepositoryStore interface {
	// GetRepository returns ErrNotFound for an unknown id.
	GetRepository(ctx context.Context, id uuid.UUID) (*Repository, error)
	// UpsertDiscoveredRepository inserts an active repository or refreshes a
	// known one. It reports whether a row was inserted. Status is never changed.
	UpsertDiscoveredRepository(ctx context.Context, repo DiscoveredRepository) (uuid.UUID, bool, error)
	// ListPendingRepositoryIDs lists active repositories, least recently synced
	// first. A non-positive limit lists all of them.
	ListPendingRepositoryIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
	// MarkRepositorySynced records the repo type and sync time.
	MarkRepositorySynced(ctx context.Context, id uuid.UUID, repoType RepoType, at time.Time) error
}

// BlacklistStore drives the blacklist side of the repository state machine.
type BlacklistStore interface {
	IsBlacklisted(ctx context.Context, url string) (bool, error)
	// BlacklistRepository marks the repository blacklisted and upserts the
	// entry for its URL atomically.
	BlacklistRepository(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	// ExpireBlacklist deletes entries created before cutoff and reactivates
	// their repositories. It returns the expired URLs and the number of
	// repositories reactivated.
	ExpireBlacklist(ctx context.Context, cutoff time.Time) ([]string, int64, error)
}

// SkillStore persists standalone skills.
type SkillStore interface {
	// UpsertSkill creates the skill or reactivates an existing one.
	UpsertSkill(ctx context.Context, repositoryID uuid.UUID, name string) (*Skill, error)
	// GetSkillVersion returns ErrNotFound when the version does not exist.
	GetSkillVersion(ctx context.Context, skillID uuid.UUID, version string) (*Version, error)
	SaveSkillVersion(ctx context.Context, skillID uuid.UUID, w VersionWrite) (*Version, error)
	// DeactivateMissingSkills deactivates active skills whose name is not in keep.
	DeactivateMissingSkills(ctx context.Context, repositoryID uuid.UUID, keep []string) (int64, error)
	ListSkills(ctx context.Context, repositoryID uuid.UUID) ([]Skill, error)
	ListSkillVersions(ctx context.Context, skillID uuid.UUID) ([]Version, error)
}

// PluginStore persists marketplace plugins.
type PluginStore interface {
	// GetPlugin returns ErrNotFound when the repository has no plugin of that name.
	GetPlugin(ctx context.Context, repositoryID uuid.UUID, name string) (*Plugin, error)
	UpsertPlugin(ctx context.Context, repositoryID uuid.UUID, p PluginUpsert) (*Plugin, error)
	// GetPluginVersion returns ErrNotFound when the version does not exist.
	GetPluginVersion(ctx context.Context, pluginID uuid.UUID, version string) (*Version, error)
	// SavePluginVersion upserts the plugin and its version and replaces the
	// version's components, all in one transaction.
	SavePluginVersion(
		ctx context.Context,
		repositoryID uuid.UUID,
		p PluginUpsert,
		w VersionWrite,
		components []PluginComponent,
	) (*Plugin, *Version, error)
	ListPluginComponents(ctx context.Context, pluginVersionID uuid.UUID) ([]PluginComponent, error)
	// DeactivateMissingPlugins deactivates active plugins whose name is not in keep.
	DeactivateMissingPlugins(ctx context.Context, repositoryID uuid.UUID, keep []string) (int64, error)
	ListPlugins(ctx context.Context, repositoryID uuid.UUID) ([]Plugin, error)
}

// RegistryStore persists discovery registries and their schedule.
type RegistryStore interface {
	// UpsertDiscoveryRegistry matches by name. A new registry is due at once;
	// an existing one keeps its schedule.
	UpsertDiscoveryRegistry(ctx context.Context, r DiscoveryRegistry) (*DiscoveryRegistry, error)
	GetDiscoveryRegistry(ctx context.Context, id uuid.UUID) (*DiscoveryRegistry, error)
	ListDueDiscoveryRegistries(ctx context.Context, now time.Time) ([]DiscoveryRegistry, error)
	RecordDiscoveryRun(ctx context.Context, id uuid.UUID, ranAt, nextRunAt time.Time, status string) error
}

// Store is the full persistence surface used by the sync pipeline.
type Store interface {
	RepositoryStore
	BlacklistStore
	SkillStore
	PluginStore
	RegistryStore
}
