package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stacklok/toolhive-skill-sync/internal/validators"
)

type repoKey struct {
	platform, owner, name string
}

type childKey struct {
	parent uuid.UUID
	name   string
}

type memoryStore struct {
	mu          sync.RWMutex
	now         func() time.Time
	maxMetaSize int

	repos       map[uuid.UUID]*Repository
	repoByKey   map[repoKey]uuid.UUID
	blacklist   map[string]BlacklistEntry
	skills      map[uuid.UUID]*Skill
	skillByName map[childKey]uuid.UUID
	skillVers   map[childKey]*Version
	plugins     map[uuid.UUID]*Plugin
	pluginByKey map[childKey]uuid.UUID
	pluginVers  map[childKey]*Version
	components  map[uuid.UUID][]PluginComponent
	registries  map[uuid.UUID]*DiscoveryRegistry
}

var _ Store = (*memoryStore)(nil)

// NewMemory returns an in-memory Store. Only WithClock and
// WithMaxMetadataSize apply.
func NewMemory(opts ...Option) Store {
	o := newOptions(opts)
	return &memoryStore{
		now:         o.now,
		maxMetaSize: o.maxMetaSize,
		repos:       map[uuid.UUID]*Repository{},
		repoByKey:   map[repoKey]uuid.UUID{},
		blacklist:   map[string]BlacklistEntry{},
		skills:      map[uuid.UUID]*Skill{},
		skillByName: map[childKey]uuid.UUID{},
		skillVers:   map[childKey]*Version{},
		plugins:     map[uuid.UUID]*Plugin{},
		pluginByKey: map[childKey]uuid.UUID{},
		pluginVers:  map[childKey]*Version{},
		components:  map[uuid.UUID][]PluginComponent{},
		registries:  map[uuid.UUID]*DiscoveryRegistry{},
	}
}

func (m *memoryStore) GetRepository(_ context.Context, id uuid.UUID) (*Repository, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	repo, ok := m.repos[id]
	if !ok {
		return nil, fmt.Errorf("repository %s: %w", id, ErrNotFound)
	}
	cp := *repo
	return &cp, nil
}

func (m *memoryStore) UpsertDiscoveredRepository(_ context.Context, repo DiscoveredRepository) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := repoKey{repo.Platform, repo.Owner, repo.Name}
	if id, ok := m.repoByKey[key]; ok {
		existing := m.repos[id]
		existing.Stars = repo.Stars
		if repo.Description != "" {
			existing.Description = repo.Description
		}
		if repo.PushedAt != nil {
			existing.PushedAt = repo.PushedAt
		}
		existing.UpdatedAt = now
		return id, false, nil
	}

	for _, r := range m.repos {
		if r.URL == repo.URL {
			return uuid.Nil, false, fmt.Errorf("failed to upsert repository %s/%s: url %s already used", repo.Owner, repo.Name, repo.URL)
		}
	}

	id := uuid.New()
	m.repos[id] = &Repository{
		ID:          id,
		Platform:    repo.Platform,
		Owner:       repo.Owner,
		Name:        repo.Name,
		URL:         repo.URL,
		Description: repo.Description,
		Stars:       repo.Stars,
		Status:      StatusActive,
		PushedAt:    repo.PushedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.repoByKey[key] = id
	return id, true, nil
}

func (m *memoryStore) ListPendingRepositoryIDs(_ context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pending []*Repository
	for _, r := range m.repos {
		if r.Status == StatusActive {
			pending = append(pending, r)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		switch {
		case a.LastSyncedAt == nil && b.LastSyncedAt != nil:
			return true
		case a.LastSyncedAt != nil && b.LastSyncedAt == nil:
			return false
		case a.LastSyncedAt != nil && !a.LastSyncedAt.Equal(*b.LastSyncedAt):
			return a.LastSyncedAt.Before(*b.LastSyncedAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	ids := []uuid.UUID{}
	for _, r := range pending {
		if limit > 0 && len(ids) == limit {
			break
		}
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (m *memoryStore) MarkRepositorySynced(_ context.Context, id uuid.UUID, repoType RepoType, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, ok := m.repos[id]
	if !ok {
		return fmt.Errorf("repository %s: %w", id, ErrNotFound)
	}
	repo.RepoType = repoType
	repo.LastSyncedAt = &at
	repo.UpdatedAt = at
	return nil
}

func (m *memoryStore) IsBlacklisted(_ context.Context, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.blacklist[url]
	return ok, nil
}

func (m *memoryStore) BlacklistRepository(_ context.Context, id uuid.UUID, reason string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	repo, ok := m.repos[id]
	if !ok {
		return fmt.Errorf("repository %s: %w", id, ErrNotFound)
	}
	repo.Status = StatusBlacklisted
	repo.BlacklistReason = reason
	repo.BlacklistedAt = &at
	repo.UpdatedAt = at
	m.blacklist[repo.URL] = BlacklistEntry{URL: repo.URL, Reason: reason, CreatedAt: at}
	return nil
}

func (m *memoryStore) ExpireBlacklist(_ context.Context, cutoff time.Time) ([]string, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []string
	for url, entry := range m.blacklist {
		if entry.CreatedAt.Before(cutoff) {
			expired = append(expired, url)
			delete(m.blacklist, url)
		}
	}
	sort.Strings(expired)

	var reactivated int64
	now := m.now()
	for _, repo := range m.repos {
		if repo.Status != StatusBlacklisted || !slices.Contains(expired, repo.URL) {
			continue
		}
		repo.Status = StatusActive
		repo.BlacklistReason = ""
		repo.BlacklistedAt = nil
		repo.RepoType = RepoTypeUnknown
		repo.UpdatedAt = now
		reactivated++
	}
	return expired, reactivated, nil
}

func (m *memoryStore) UpsertSkill(_ context.Context, repositoryID uuid.UUID, name string) (*Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := childKey{repositoryID, name}
	if id, ok := m.skillByName[key]; ok {
		s := m.skills[id]
		cp := *s
		cp.Reactivated = !s.IsActive
		s.IsActive = true
		cp.IsActive = true
		return &cp, nil
	}
	if _, ok := m.repos[repositoryID]; !ok {
		return nil, fmt.Errorf("failed to upsert skill %s: repository %s: %w", name, repositoryID, ErrNotFound)
	}
	s := &Skill{ID: uuid.New(), RepositoryID: repositoryID, Name: name, IsActive: true}
	m.skills[s.ID] = s
	m.skillByName[key] = s.ID
	cp := *s
	return &cp, nil
}

func (m *memoryStore) GetSkillVersion(_ context.Context, skillID uuid.UUID, version string) (*Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.skillVers[childKey{skillID, version}]
	if !ok {
		return nil, fmt.Errorf("skill version %s: %w", version, ErrNotFound)
	}
	return copyVersion(v), nil
}

func (m *memoryStore) SaveSkillVersion(_ context.Context, skillID uuid.UUID, w VersionWrite) (*Version, error) {
	if _, err := validators.SerializeMetadata(w.Metadata, m.maxMetaSize); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.skills[skillID]
	if !ok {
		return nil, fmt.Errorf("skill %s: %w", skillID, ErrNotFound)
	}
	v := m.upsertVersion(m.skillVers, skillID, w)
	s.LatestVersion = w.LatestVersion
	return copyVersion(v), nil
}

func (m *memoryStore) DeactivateMissingSkills(_ context.Context, repositoryID uuid.UUID, keep []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, s := range m.skills {
		if s.RepositoryID == repositoryID && s.IsActive && !slices.Contains(keep, s.Name) {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) ListSkills(_ context.Context, repositoryID uuid.UUID) ([]Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Skill{}
	for _, s := range m.skills {
		if s.RepositoryID == repositoryID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) ListSkillVersions(_ context.Context, skillID uuid.UUID) ([]Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return listVersions(m.skillVers, skillID), nil
}

func (m *memoryStore) GetPlugin(_ context.Context, repositoryID uuid.UUID, name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.pluginByKey[childKey{repositoryID, name}]
	if !ok {
		return nil, fmt.Errorf("plugin %s: %w", name, ErrNotFound)
	}
	cp := *m.plugins[id]
	return &cp, nil
}

func (m *memoryStore) UpsertPlugin(_ context.Context, repositoryID uuid.UUID, p PluginUpsert) (*Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.upsertPlugin(repositoryID, p)
}

// upsertPlugin requires m.mu held for writing.
func (m *memoryStore) upsertPlugin(repositoryID uuid.UUID, p PluginUpsert) (*Plugin, error) {
	key := childKey{repositoryID, p.Name}
	if id, ok := m.pluginByKey[key]; ok {
		existing := m.plugins[id]
		reactivated := !existing.IsActive
		existing.Description = p.Description
		existing.Source = p.Source
		existing.Strict = p.Strict
		existing.IsActive = true
		cp := *existing
		cp.Reactivated = reactivated
		return &cp, nil
	}
	if _, ok := m.repos[repositoryID]; !ok {
		return nil, fmt.Errorf("failed to upsert plugin %s: repository %s: %w", p.Name, repositoryID, ErrNotFound)
	}
	plugin := &Plugin{
		ID:           uuid.New(),
		RepositoryID: repositoryID,
		Name:         p.Name,
		Description:  p.Description,
		Source:       p.Source,
		Strict:       p.Strict,
		IsActive:     true,
	}
	m.plugins[plugin.ID] = plugin
	m.pluginByKey[key] = plugin.ID
	cp := *plugin
	return &cp, nil
}

func (m *memoryStore) GetPluginVersion(_ context.Context, pluginID uuid.UUID, version string) (*Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.pluginVers[childKey{pluginID, version}]
	if !ok {
		return nil, fmt.Errorf("plugin version %s: %w", version, ErrNotFound)
	}
	return copyVersion(v), nil
}

func (m *memoryStore) SavePluginVersion(
	_ context.Context,
	repositoryID uuid.UUID,
	p PluginUpsert,
	w VersionWrite,
	components []PluginComponent,
) (*Plugin, *Version, error) {
	if _, err := validators.SerializeMetadata(w.Metadata, m.maxMetaSize); err != nil {
		return nil, nil, err
	}
	seen := map[string]struct{}{}
	for _, c := range components {
		if _, err := validators.SerializeMetadata(c.Metadata, m.maxMetaSize); err != nil {
			return nil, nil, fmt.Errorf("component %s: %w", c.Path, err)
		}
		key := string(c.Kind) + "\x00" + c.Path
		if _, dup := seen[key]; dup {
			return nil, nil, fmt.Errorf("failed to insert component %s: duplicate %s component", c.Path, c.Kind)
		}
		seen[key] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	plugin, err := m.upsertPlugin(repositoryID, p)
	if err != nil {
		return nil, nil, err
	}
	v := m.upsertVersion(m.pluginVers, plugin.ID, w)
	m.components[v.ID] = slices.Clone(components)
	m.plugins[plugin.ID].LatestVersion = w.LatestVersion
	plugin.LatestVersion = w.LatestVersion
	return plugin, copyVersion(v), nil
}

func (m *memoryStore) ListPluginComponents(_ context.Context, pluginVersionID uuid.UUID) ([]PluginComponent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kindOrder := map[ComponentKind]int{ComponentCommand: 0, ComponentAgent: 1, ComponentSkill: 2}
	out := slices.Clone(m.components[pluginVersionID])
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return kindOrder[out[i].Kind] < kindOrder[out[j].Kind]
		}
		return out[i].Path < out[j].Path
	})
	if out == nil {
		out = []PluginComponent{}
	}
	return out, nil
}

func (m *memoryStore) DeactivateMissingPlugins(_ context.Context, repositoryID uuid.UUID, keep []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, p := range m.plugins {
		if p.RepositoryID == repositoryID && p.IsActive && !slices.Contains(keep, p.Name) {
			p.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) ListPlugins(_ context.Context, repositoryID uuid.UUID) ([]Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Plugin{}
	for _, p := range m.plugins {
		if p.RepositoryID == repositoryID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) UpsertDiscoveryRegistry(_ context.Context, r DiscoveryRegistry) (*DiscoveryRegistry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	interval := r.Interval
	if interval <= 0 {
		interval = DefaultDiscoveryInterval
	}
	for _, existing := range m.registries {
		if existing.Name == r.Name {
			existing.Platform = r.Platform
			existing.Token = r.Token
			existing.Queries = slices.Clone(r.Queries)
			existing.Interval = interval
			return copyRegistry(existing), nil
		}
	}

	now := m.now()
	reg := &DiscoveryRegistry{
		ID:        uuid.New(),
		Name:      r.Name,
		Platform:  r.Platform,
		Token:     r.Token,
		Queries:   slices.Clone(r.Queries),
		Interval:  interval,
		NextRunAt: &now,
	}
	m.registries[reg.ID] = reg
	return copyRegistry(reg), nil
}

func (m *memoryStore) GetDiscoveryRegistry(_ context.Context, id uuid.UUID) (*DiscoveryRegistry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.registries[id]
	if !ok {
		return nil, fmt.Errorf("discovery registry %s: %w", id, ErrNotFound)
	}
	return copyRegistry(reg), nil
}

func (m *memoryStore) ListDueDiscoveryRegistries(_ context.Context, now time.Time) ([]DiscoveryRegistry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []DiscoveryRegistry{}
	for _, reg := range m.registries {
		if reg.NextRunAt == nil || !reg.NextRunAt.After(now) {
			out = append(out, *copyRegistry(reg))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].NextRunAt, out[j].NextRunAt
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return strings.Compare(out[i].Name, out[j].Name) < 0
	})
	return out, nil
}

func (m *memoryStore) RecordDiscoveryRun(_ context.Context, id uuid.UUID, ranAt, nextRunAt time.Time, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.registries[id]
	if !ok {
		return fmt.Errorf("discovery registry %s: %w", id, ErrNotFound)
	}
	reg.LastRunAt = &ranAt
	reg.NextRunAt = &nextRunAt
	reg.LastStatus = status
	return nil
}

// upsertVersion must be called with m.mu held.
func (m *memoryStore) upsertVersion(versions map[childKey]*Version, parentID uuid.UUID, w VersionWrite) *Version {
	now := m.now()
	key := childKey{parentID, w.Version}
	v, ok := versions[key]
	if !ok {
		v = &Version{ID: uuid.New(), ParentID: parentID, Version: w.Version, CreatedAt: now}
		versions[key] = v
	}
	v.Description = w.Description
	v.Readme = w.Readme
	v.StorageKey = w.StorageKey
	v.StorageURL = w.StorageURL
	v.FileHash = w.FileHash
	v.Metadata = maps.Clone(w.Metadata)
	v.UpdatedAt = now
	return v
}

func listVersions(versions map[childKey]*Version, parentID uuid.UUID) []Version {
	out := []Version{}
	for key, v := range versions {
		if key.parent == parentID {
			out = append(out, *copyVersion(v))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Version < out[j].Version
	})
	return out
}

func copyVersion(v *Version) *Version {
	cp := *v
	cp.Metadata = maps.Clone(v.Metadata)
	return &cp
}

func copyRegistry(r *DiscoveryRegistry) *DiscoveryRegistry {
	cp := *r
	cp.Queries = slices.Clone(r.Queries)
	return &cp
}
