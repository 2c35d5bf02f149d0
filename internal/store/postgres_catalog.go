package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stacklok/toolhive-skill-sync/internal/db/pgtypes"
	"github.com/stacklok/toolhive-skill-sync/internal/db/sqlc"
	"github.com/stacklok/toolhive-skill-sync/internal/otel"
)

func (s *pgStore) UpsertSkill(ctx context.Context, repositoryID uuid.UUID, name string) (*Skill, error) {
	ctx, span := s.startSpan(ctx, "store.UpsertSkill", otel.AttrSkillName.String(name))
	defer span.End()

	row, err := s.queries().UpsertSkill(ctx, sqlc.UpsertSkillParams{
		RepositoryID: repositoryID,
		Name:         name,
		Now:          s.now(),
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to upsert skill %s: %w", name, err)
	}
	sk := skillFromRow(sqlc.Skill{
		ID:            row.ID,
		RepositoryID:  row.RepositoryID,
		Name:          row.Name,
		LatestVersion: row.LatestVersion,
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	})
	sk.Reactivated = row.Reactivated
	return sk, nil
}

func (s *pgStore) GetSkillVersion(ctx context.Context, skillID uuid.UUID, version string) (*Version, error) {
	ctx, span := s.startSpan(ctx, "store.GetSkillVersion", otel.AttrVersion.String(version))
	defer span.End()

	row, err := s.queries().GetSkillVersion(ctx, sqlc.GetSkillVersionParams{SkillID: skillID, Version: version})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("skill version %s: %w", version, ErrNotFound)
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get skill version: %w", err)
	}
	return skillVersionFromRow(row)
}

func (s *pgStore) SaveSkillVersion(ctx context.Context, skillID uuid.UUID, w VersionWrite) (*Version, error) {
	ctx, span := s.startSpan(ctx, "store.SaveSkillVersion", otel.AttrVersion.String(w.Version))
	defer span.End()

	metadata, err := s.encodeMetadata(w.Metadata)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	var saved sqlc.SkillVersion
	err = s.inTx(ctx, func(q *sqlc.Queries) error {
		now := s.now()
		saved, err = q.UpsertSkillVersion(ctx, sqlc.UpsertSkillVersionParams{
			SkillID:     skillID,
			Version:     w.Version,
			Description: w.Description,
			Readme:      w.Readme,
			StorageKey:  w.StorageKey,
			StorageUrl:  w.StorageURL,
			FileHash:    w.FileHash,
			Metadata:    metadata,
			Now:         now,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert skill version: %w", err)
		}
		if err := q.UpdateSkillLatestVersion(ctx, sqlc.UpdateSkillLatestVersionParams{
			LatestVersion: nullIfEmpty(w.LatestVersion),
			Now:           now,
			ID:            skillID,
		}); err != nil {
			return fmt.Errorf("failed to update latest skill version: %w", err)
		}
		return nil
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return skillVersionFromRow(saved)
}

func (s *pgStore) DeactivateMissingSkills(ctx context.Context, repositoryID uuid.UUID, keep []string) (int64, error) {
	ctx, span := s.startSpan(ctx, "store.DeactivateMissingSkills", otel.AttrRepositoryID.String(repositoryID.String()))
	defer span.End()

	n, err := s.queries().DeactivateSkillsNotIn(ctx, sqlc.DeactivateSkillsNotInParams{
		Now:          s.now(),
		RepositoryID: repositoryID,
		Keep:         nonNil(keep),
	})
	if err != nil {
		otel.RecordError(span, err)
		return 0, fmt.Errorf("failed to deactivate missing skills: %w", err)
	}
	span.SetAttributes(otel.AttrResultCount.Int64(n))
	return n, nil
}

func (s *pgStore) ListSkills(ctx context.Context, repositoryID uuid.UUID) ([]Skill, error) {
	ctx, span := s.startSpan(ctx, "store.ListSkills", otel.AttrRepositoryID.String(repositoryID.String()))
	defer span.End()

	rows, err := s.queries().ListSkillsByRepository(ctx, repositoryID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list skills: %w", err)
	}
	out := make([]Skill, 0, len(rows))
	for _, row := range rows {
		out = append(out, *skillFromRow(row))
	}
	return out, nil
}

func (s *pgStore) ListSkillVersions(ctx context.Context, skillID uuid.UUID) ([]Version, error) {
	ctx, span := s.startSpan(ctx, "store.ListSkillVersions")
	defer span.End()

	rows, err := s.queries().ListSkillVersions(ctx, skillID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list skill versions: %w", err)
	}
	out := make([]Version, 0, len(rows))
	for _, row := range rows {
		v, err := skillVersionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (s *pgStore) GetPlugin(ctx context.Context, repositoryID uuid.UUID, name string) (*Plugin, error) {
	ctx, span := s.startSpan(ctx, "store.GetPlugin", otel.AttrPluginName.String(name))
	defer span.End()

	row, err := s.queries().GetPluginByName(ctx, sqlc.GetPluginByNameParams{RepositoryID: repositoryID, Name: name})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("plugin %s: %w", name, ErrNotFound)
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get plugin: %w", err)
	}
	return pluginFromRow(row), nil
}

func (s *pgStore) UpsertPlugin(ctx context.Context, repositoryID uuid.UUID, p PluginUpsert) (*Plugin, error) {
	ctx, span := s.startSpan(ctx, "store.UpsertPlugin", otel.AttrPluginName.String(p.Name))
	defer span.End()

	plugin, err := upsertPlugin(ctx, s.queries(), repositoryID, p, s.now())
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}
	return plugin, nil
}

func upsertPlugin(ctx context.Context, q *sqlc.Queries, repositoryID uuid.UUID, p PluginUpsert, now time.Time) (*Plugin, error) {
	row, err := q.UpsertPlugin(ctx, sqlc.UpsertPluginParams{
		RepositoryID: repositoryID,
		Name:         p.Name,
		Description:  p.Description,
		Source:       p.Source,
		Strict:       p.Strict,
		Now:          now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert plugin %s: %w", p.Name, err)
	}
	plugin := pluginFromRow(sqlc.Plugin{
		ID:            row.ID,
		RepositoryID:  row.RepositoryID,
		Name:          row.Name,
		Description:   row.Description,
		Source:        row.Source,
		Strict:        row.Strict,
		LatestVersion: row.LatestVersion,
		IsActive:      row.IsActive,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	})
	plugin.Reactivated = row.Reactivated
	return plugin, nil
}

func (s *pgStore) GetPluginVersion(ctx context.Context, pluginID uuid.UUID, version string) (*Version, error) {
	ctx, span := s.startSpan(ctx, "store.GetPluginVersion", otel.AttrVersion.String(version))
	defer span.End()

	row, err := s.queries().GetPluginVersion(ctx, sqlc.GetPluginVersionParams{PluginID: pluginID, Version: version})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("plugin version %s: %w", version, ErrNotFound)
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get plugin version: %w", err)
	}
	return pluginVersionFromRow(row)
}

func (s *pgStore) SavePluginVersion(
	ctx context.Context,
	repositoryID uuid.UUID,
	p PluginUpsert,
	w VersionWrite,
	components []PluginComponent,
) (*Plugin, *Version, error) {
	ctx, span := s.startSpan(ctx, "store.SavePluginVersion",
		otel.AttrPluginName.String(p.Name),
		otel.AttrVersion.String(w.Version))
	defer span.End()

	metadata, err := s.encodeMetadata(w.Metadata)
	if err != nil {
		otel.RecordError(span, err)
		return nil, nil, err
	}

	componentMeta := make([][]byte, len(components))
	for i, c := range components {
		if componentMeta[i], err = s.encodeMetadata(c.Metadata); err != nil {
			otel.RecordError(span, err)
			return nil, nil, fmt.Errorf("component %s: %w", c.Path, err)
		}
	}

	var (
		plugin *Plugin
		saved  sqlc.PluginVersion
	)
	err = s.inTx(ctx, func(q *sqlc.Queries) error {
		now := s.now()
		if plugin, err = upsertPlugin(ctx, q, repositoryID, p, now); err != nil {
			return err
		}

		saved, err = q.UpsertPluginVersion(ctx, sqlc.UpsertPluginVersionParams{
			PluginID:    plugin.ID,
			Version:     w.Version,
			Description: w.Description,
			Readme:      w.Readme,
			StorageKey:  w.StorageKey,
			StorageUrl:  w.StorageURL,
			FileHash:    w.FileHash,
			Metadata:    metadata,
			Now:         now,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert plugin version: %w", err)
		}

		if err := q.DeletePluginComponents(ctx, saved.ID); err != nil {
			return fmt.Errorf("failed to delete plugin components: %w", err)
		}
		for i, c := range components {
			if err := q.InsertPluginComponent(ctx, sqlc.InsertPluginComponentParams{
				PluginVersionID: saved.ID,
				Kind:            sqlc.ComponentKind(c.Kind),
				Path:            c.Path,
				Name:            c.Name,
				Description:     c.Description,
				Body:            c.Body,
				Metadata:        componentMeta[i],
				CreatedAt:       now,
			}); err != nil {
				return fmt.Errorf("failed to insert component %s: %w", c.Path, err)
			}
		}

		if err := q.UpdatePluginLatestVersion(ctx, sqlc.UpdatePluginLatestVersionParams{
			LatestVersion: nullIfEmpty(w.LatestVersion),
			Now:           now,
			ID:            plugin.ID,
		}); err != nil {
			return fmt.Errorf("failed to update latest plugin version: %w", err)
		}
		plugin.LatestVersion = w.LatestVersion
		return nil
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, nil, err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(components)))

	version, err := pluginVersionFromRow(saved)
	if err != nil {
		return nil, nil, err
	}
	return plugin, version, nil
}

func (s *pgStore) ListPluginComponents(ctx context.Context, pluginVersionID uuid.UUID) ([]PluginComponent, error) {
	ctx, span := s.startSpan(ctx, "store.ListPluginComponents")
	defer span.End()

	rows, err := s.queries().ListPluginComponents(ctx, pluginVersionID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list plugin components: %w", err)
	}
	out := make([]PluginComponent, 0, len(rows))
	for _, row := range rows {
		meta, err := decodeMetadata(row.Metadata)
		if err != nil {
			return nil, err
		}
		out = append(out, PluginComponent{
			Kind:        ComponentKind(row.Kind),
			Path:        row.Path,
			Name:        row.Name,
			Description: row.Description,
			Body:        row.Body,
			Metadata:    meta,
		})
	}
	return out, nil
}

func (s *pgStore) DeactivateMissingPlugins(ctx context.Context, repositoryID uuid.UUID, keep []string) (int64, error) {
	ctx, span := s.startSpan(ctx, "store.DeactivateMissingPlugins", otel.AttrRepositoryID.String(repositoryID.String()))
	defer span.End()

	n, err := s.queries().DeactivatePluginsNotIn(ctx, sqlc.DeactivatePluginsNotInParams{
		Now:          s.now(),
		RepositoryID: repositoryID,
		Keep:         nonNil(keep),
	})
	if err != nil {
		otel.RecordError(span, err)
		return 0, fmt.Errorf("failed to deactivate missing plugins: %w", err)
	}
	span.SetAttributes(otel.AttrResultCount.Int64(n))
	return n, nil
}

func (s *pgStore) ListPlugins(ctx context.Context, repositoryID uuid.UUID) ([]Plugin, error) {
	ctx, span := s.startSpan(ctx, "store.ListPlugins", otel.AttrRepositoryID.String(repositoryID.String()))
	defer span.End()

	rows, err := s.queries().ListPluginsByRepository(ctx, repositoryID)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list plugins: %w", err)
	}
	out := make([]Plugin, 0, len(rows))
	for _, row := range rows {
		out = append(out, *pluginFromRow(row))
	}
	return out, nil
}

func (s *pgStore) UpsertDiscoveryRegistry(ctx context.Context, r DiscoveryRegistry) (*DiscoveryRegistry, error) {
	ctx, span := s.startSpan(ctx, "store.UpsertDiscoveryRegistry", otel.AttrRegistryName.String(r.Name))
	defer span.End()

	queriesJSON, err := json.Marshal(nonNil(r.Queries))
	if err != nil {
		return nil, fmt.Errorf("failed to encode queries: %w", err)
	}
	now := s.now()
	row, err := s.queries().UpsertDiscoveryRegistry(ctx, sqlc.UpsertDiscoveryRegistryParams{
		Name:         r.Name,
		Platform:     r.Platform,
		Token:        nullIfEmpty(r.Token),
		QueriesJson:  queriesJSON,
		SyncInterval: pgtypes.NewInterval(r.Interval),
		Now:          &now,
	})
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to upsert discovery registry %s: %w", r.Name, err)
	}
	return registryFromRow(row)
}

func (s *pgStore) GetDiscoveryRegistry(ctx context.Context, id uuid.UUID) (*DiscoveryRegistry, error) {
	ctx, span := s.startSpan(ctx, "store.GetDiscoveryRegistry")
	defer span.End()

	row, err := s.queries().GetDiscoveryRegistry(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("discovery registry %s: %w", id, ErrNotFound)
		}
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to get discovery registry: %w", err)
	}
	return registryFromRow(row)
}

func (s *pgStore) ListDueDiscoveryRegistries(ctx context.Context, now time.Time) ([]DiscoveryRegistry, error) {
	ctx, span := s.startSpan(ctx, "store.ListDueDiscoveryRegistries")
	defer span.End()

	rows, err := s.queries().ListDueDiscoveryRegistries(ctx, &now)
	if err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("failed to list due discovery registries: %w", err)
	}
	out := make([]DiscoveryRegistry, 0, len(rows))
	for _, row := range rows {
		r, err := registryFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(out)))
	return out, nil
}

func (s *pgStore) RecordDiscoveryRun(ctx context.Context, id uuid.UUID, ranAt, nextRunAt time.Time, status string) error {
	ctx, span := s.startSpan(ctx, "store.RecordDiscoveryRun")
	defer span.End()

	n, err := s.queries().UpdateDiscoveryRegistryRun(ctx, sqlc.UpdateDiscoveryRegistryRunParams{
		LastRunAt:  &ranAt,
		NextRunAt:  &nextRunAt,
		LastStatus: &status,
		ID:         id,
	})
	if err != nil {
		otel.RecordError(span, err)
		return fmt.Errorf("failed to record discovery run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("discovery registry %s: %w", id, ErrNotFound)
	}
	return nil
}

func skillFromRow(row sqlc.Skill) *Skill {
	return &Skill{
		ID:            row.ID,
		RepositoryID:  row.RepositoryID,
		Name:          row.Name,
		LatestVersion: deref(row.LatestVersion),
		IsActive:      row.IsActive,
	}
}

func skillVersionFromRow(row sqlc.SkillVersion) (*Version, error) {
	meta, err := decodeMetadata(row.Metadata)
	if err != nil {
		return nil, err
	}
	return &Version{
		ID:          row.ID,
		ParentID:    row.SkillID,
		Version:     row.Version,
		Description: row.Description,
		Readme:      row.Readme,
		StorageKey:  row.StorageKey,
		StorageURL:  row.StorageUrl,
		FileHash:    row.FileHash,
		Metadata:    meta,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func pluginFromRow(row sqlc.Plugin) *Plugin {
	return &Plugin{
		ID:            row.ID,
		RepositoryID:  row.RepositoryID,
		Name:          row.Name,
		Description:   row.Description,
		Source:        row.Source,
		Strict:        row.Strict,
		LatestVersion: deref(row.LatestVersion),
		IsActive:      row.IsActive,
	}
}

func pluginVersionFromRow(row sqlc.PluginVersion) (*Version, error) {
	meta, err := decodeMetadata(row.Metadata)
	if err != nil {
		return nil, err
	}
	return &Version{
		ID:          row.ID,
		ParentID:    row.PluginID,
		Version:     row.Version,
		Description: row.Description,
		Readme:      row.Readme,
		StorageKey:  row.StorageKey,
		StorageURL:  row.StorageUrl,
		FileHash:    row.FileHash,
		Metadata:    meta,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func registryFromRow(row sqlc.DiscoveryRegistry) (*DiscoveryRegistry, error) {
	var queries []string
	if len(row.QueriesJson) > 0 {
		if err := json.Unmarshal(row.QueriesJson, &queries); err != nil {
			return nil, fmt.Errorf("failed to decode queries of registry %s: %w", row.Name, err)
		}
	}
	return &DiscoveryRegistry{
		ID:         row.ID,
		Name:       row.Name,
		Platform:   row.Platform,
		Token:      deref(row.Token),
		Queries:    queries,
		Interval:   row.SyncInterval.Or(DefaultDiscoveryInterval),
		LastRunAt:  row.LastRunAt,
		NextRunAt:  row.NextRunAt,
		LastStatus: deref(row.LastStatus),
	}, nil
}

// nonNil keeps ANY($n::text[]) and JSON encodings away from NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
