package v1

import (
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/toolhive-skill-sync/internal/service"
)

// PendingResponse lists repositories due for sync, least recently synced first.
type PendingResponse struct {
	RepositoryIDs []uuid.UUID `json:"repository_ids"`
	Count         int         `json:"count"`
}

// TriggerResponse identifies the workflow run a sync request started or joined.
type TriggerResponse struct {
	RepositoryID uuid.UUID `json:"repository_id"`
	RunID        string    `json:"run_id"`
}

// SkillResponse is one skill of a repository.
type SkillResponse struct {
	Name          string `json:"name"`
	LatestVersion string `json:"latest_version,omitempty"`
	Active        bool   `json:"active"`
}

// PluginResponse is one marketplace plugin of a repository.
type PluginResponse struct {
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Source        string `json:"source,omitempty"`
	Strict        bool   `json:"strict"`
	LatestVersion string `json:"latest_version,omitempty"`
	Active        bool   `json:"active"`
}

// RepositoryResponse is a repository with its catalog.
type RepositoryResponse struct {
	ID              uuid.UUID        `json:"id"`
	Platform        string           `json:"platform"`
	FullName        string           `json:"full_name"`
	URL             string           `json:"url"`
	Description     string           `json:"description,omitempty"`
	Stars           int64            `json:"stars"`
	Status          string           `json:"status"`
	RepoType        string           `json:"repo_type,omitempty"`
	BlacklistReason string           `json:"blacklist_reason,omitempty"`
	BlacklistedAt   *time.Time       `json:"blacklisted_at,omitempty"`
	PushedAt        *time.Time       `json:"pushed_at,omitempty"`
	LastSyncedAt    *time.Time       `json:"last_synced_at,omitempty"`
	Skills          []SkillResponse  `json:"skills"`
	Plugins         []PluginResponse `json:"plugins"`
}

func repositoryToResponse(d *service.RepositoryDetail) RepositoryResponse {
	repo := d.Repository
	resp := RepositoryResponse{
		ID:              repo.ID,
		Platform:        repo.Platform,
		FullName:        repo.FullName(),
		URL:             repo.URL,
		Description:     repo.Description,
		Stars:           repo.Stars,
		Status:          string(repo.Status),
		RepoType:        string(repo.RepoType),
		BlacklistReason: repo.BlacklistReason,
		BlacklistedAt:   repo.BlacklistedAt,
		PushedAt:        repo.PushedAt,
		LastSyncedAt:    repo.LastSyncedAt,
		Skills:          make([]SkillResponse, 0, len(d.Skills)),
		Plugins:         make([]PluginResponse, 0, len(d.Plugins)),
	}
	for _, s := range d.Skills {
		resp.Skills = append(resp.Skills, SkillResponse{
			Name:          s.Name,
			LatestVersion: s.LatestVersion,
			Active:        s.IsActive,
		})
	}
	for _, p := range d.Plugins {
		resp.Plugins = append(resp.Plugins, PluginResponse{
			Name:          p.Name,
			Description:   p.Description,
			Source:        p.Source,
			Strict:        p.Strict,
			LatestVersion: p.LatestVersion,
			Active:        p.IsActive,
		})
	}
	return resp
}
