package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stacklok/toolhive-skill-sync/internal/archive"
	"github.com/stacklok/toolhive-skill-sync/internal/marketplace"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	"github.com/stacklok/toolhive-skill-sync/internal/validators"
	"github.com/stacklok/toolhive-skill-sync/internal/versions"
)

const pluginReadme = "README.md"

// syncPlugins persists every resolved plugin and deactivates plugins the
// manifest no longer lists.
func (m *manager) syncPlugins(
	ctx context.Context,
	repo *store.Repository,
	resolved *marketplace.Result,
	result *Result,
) error {
	for _, d := range resolved.Skipped {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Path:    d.Path,
			Subject: d.Plugin,
			Message: d.Message,
		})
	}

	keep := make([]string, 0, len(resolved.Plugins))
	for _, p := range resolved.Plugins {
		out, err := m.persistPlugin(ctx, repo, p)
		if errors.Is(err, validators.ErrInvalidMetadata) {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{Path: p.Root, Subject: p.Name(), Message: err.Error()})
			slog.WarnContext(ctx, "Skipping plugin with unstorable metadata",
				"repository_id", repo.ID,
				"plugin_name", p.Name(),
				"error", err)
			continue
		}
		if err != nil {
			return err
		}
		keep = append(keep, p.Name())
		if out.written {
			result.PluginsWritten++
		}
		if out.reactivated {
			result.Reactivated++
		}
	}
	for _, entry := range resolved.Unresolved {
		row, err := m.store.UpsertPlugin(ctx, repo.ID, entryUpsert(entry))
		if err != nil {
			return err
		}
		slog.DebugContext(ctx, "Plugin kept without a version",
			"repository_id", repo.ID,
			"plugin_name", entry.Name)
		keep = append(keep, entry.Name)
		if row.Reactivated {
			result.Reactivated++
		}
	}
	result.PluginsFound = len(keep)

	n, err := m.store.DeactivateMissingPlugins(ctx, repo.ID, keep)
	if err != nil {
		return fmt.Errorf("failed to deactivate plugins: %w", err)
	}
	result.Deactivated += n
	return nil
}

// persistPlugin writes a plugin version unless one with the same version and
// hash already exists. The plugin row, its version and its components are
// saved together.
func (m *manager) persistPlugin(ctx context.Context, repo *store.Repository, p *marketplace.Plugin) (persisted, error) {
	upsert := entryUpsert(p.Entry)
	upsert.Description = p.Description()

	components := make([]store.PluginComponent, 0, len(p.Components))
	for _, c := range p.Components {
		if err := m.checkMetadata(c.Metadata); err != nil {
			return persisted{}, fmt.Errorf("component %s: %w", c.Path, err)
		}
		components = append(components, store.PluginComponent{
			Kind:        store.ComponentKind(c.Kind),
			Path:        c.Path,
			Name:        c.Name,
			Description: c.Description,
			Body:        c.Body,
			Metadata:    c.Metadata,
		})
	}
	meta := p.Metadata()
	if err := m.checkMetadata(meta); err != nil {
		return persisted{}, err
	}

	var latest string
	current, err := m.store.GetPlugin(ctx, repo.ID, p.Name())
	switch {
	case err == nil:
		latest = current.LatestVersion
		existing, err := m.store.GetPluginVersion(ctx, current.ID, p.Version)
		switch {
		case err == nil && existing.FileHash == p.Hash:
			row, err := m.store.UpsertPlugin(ctx, repo.ID, upsert)
			if err != nil {
				return persisted{}, err
			}
			return persisted{reactivated: row.Reactivated}, nil
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return persisted{}, err
		}
	case !errors.Is(err, store.ErrNotFound):
		return persisted{}, err
	}

	packed, err := archive.Pack(p.Files)
	if err != nil {
		return persisted{}, err
	}
	key := PluginKey(p.Name(), p.Version)
	url, err := m.storage.Upload(ctx, key, packed)
	if err != nil {
		return persisted{}, fmt.Errorf("failed to upload plugin %s: %w", p.Name(), err)
	}

	row, _, err := m.store.SavePluginVersion(ctx, repo.ID, upsert, store.VersionWrite{
		Version:       p.Version,
		Description:   p.Description(),
		Readme:        string(p.Files[pluginReadme]),
		StorageKey:    key,
		StorageURL:    url,
		FileHash:      p.Hash,
		Metadata:      meta,
		LatestVersion: versions.Latest(latest, p.Version),
	}, components)
	if err != nil {
		return persisted{}, err
	}

	slog.InfoContext(ctx, "Plugin version stored",
		"repository_id", repo.ID,
		"plugin_name", p.Name(),
		"version", p.Version,
		"component_count", len(components),
		"storage_key", key)
	return persisted{written: true, reactivated: row.Reactivated}, nil
}

func entryUpsert(entry marketplace.Entry) store.PluginUpsert {
	return store.PluginUpsert{
		Name:        entry.Name,
		Description: entry.Description,
		Source:      entry.SourceString(),
		Strict:      entry.Strict,
	}
}
