package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/stacklok/toolhive-skill-sync/internal/archive"
	"github.com/stacklok/toolhive-skill-sync/internal/skill"
	"github.com/stacklok/toolhive-skill-sync/internal/store"
	"github.com/stacklok/toolhive-skill-sync/internal/validators"
	"github.com/stacklok/toolhive-skill-sync/internal/versions"
)

// persisted is what storing one skill or plugin changed.
type persisted struct {
	written     bool
	reactivated bool
}

// skillCandidate is a SKILL.md that resolved and is ready to persist.
type skillCandidate struct {
	path  string
	dir   string
	skill *skill.Skill
	files archive.Files
	hash  string
}

// skillCandidates lists SKILL.md paths in lexical order, excluding paths
// under any of the exclude prefixes.
func skillCandidates(files archive.Files, exclude []string) []string {
	var out []string
	for _, p := range files.Paths() {
		if path.Base(p) != skill.FileName || underAny(p, exclude) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func underAny(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}

// resolveSkills folds candidates into resolved skills plus diagnostics.
// A bad or duplicate candidate never stops the fold.
func resolveSkills(files archive.Files, paths []string) ([]skillCandidate, []Diagnostic) {
	var (
		resolved []skillCandidate
		diags    []Diagnostic
		seen     = map[string]string{}
	)
	for _, p := range paths {
		sk, err := skill.Resolve(files[p])
		if err != nil {
			diags = append(diags, Diagnostic{Path: p, Message: err.Error()})
			continue
		}
		name := sk.Frontmatter.Name
		if first, dup := seen[name]; dup {
			diags = append(diags, Diagnostic{
				Path:    p,
				Subject: name,
				Message: fmt.Sprintf("duplicate skill name, already defined in %s", first),
			})
			continue
		}
		seen[name] = p

		dir := path.Dir(p)
		if dir == "." {
			dir = ""
		}
		subtree := files.Subtree(dir)
		resolved = append(resolved, skillCandidate{
			path:  p,
			dir:   dir,
			skill: sk,
			files: subtree,
			hash:  versions.ContentHash(subtree),
		})
	}
	return resolved, diags
}

// syncStandalone persists every valid SKILL.md outside exclude and
// deactivates skills no longer present.
func (m *manager) syncStandalone(
	ctx context.Context,
	repo *store.Repository,
	files archive.Files,
	exclude []string,
	result *Result,
) error {
	candidates, diags := resolveSkills(files, skillCandidates(files, exclude))
	result.Diagnostics = append(result.Diagnostics, diags...)
	for _, d := range diags {
		slog.DebugContext(ctx, "Skipping skill candidate",
			"repository_id", repo.ID,
			"path", d.Path,
			"reason", d.Message)
	}

	keep := make([]string, 0, len(candidates))
	for _, c := range candidates {
		name := c.skill.Frontmatter.Name
		out, err := m.persistSkill(ctx, repo, c)
		if errors.Is(err, validators.ErrInvalidMetadata) {
			result.Diagnostics = append(result.Diagnostics, Diagnostic{Path: c.path, Subject: name, Message: err.Error()})
			slog.WarnContext(ctx, "Skipping skill with unstorable metadata",
				"repository_id", repo.ID,
				"skill_name", name,
				"path", c.path,
				"error", err)
			continue
		}
		if err != nil {
			return err
		}
		keep = append(keep, name)
		if out.written {
			result.SkillsWritten++
		}
		if out.reactivated {
			result.Reactivated++
		}
	}
	result.SkillsFound = len(keep)

	n, err := m.store.DeactivateMissingSkills(ctx, repo.ID, keep)
	if err != nil {
		return fmt.Errorf("failed to deactivate skills: %w", err)
	}
	result.Deactivated += n
	return nil
}

// persistSkill writes a skill version unless one with the same version and
// hash already exists.
func (m *manager) persistSkill(ctx context.Context, repo *store.Repository, c skillCandidate) (persisted, error) {
	name := c.skill.Frontmatter.Name
	version, err := versions.Resolve(c.skill.Version(), c.hash)
	if err != nil {
		return persisted{}, err
	}
	meta := skillMetadata(c)
	if err := m.checkMetadata(meta); err != nil {
		return persisted{}, err
	}

	row, err := m.store.UpsertSkill(ctx, repo.ID, name)
	if err != nil {
		return persisted{}, err
	}
	out := persisted{reactivated: row.Reactivated}

	existing, err := m.store.GetSkillVersion(ctx, row.ID, version)
	switch {
	case err == nil && existing.FileHash == c.hash:
		return out, nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return out, err
	}

	packed, err := archive.Pack(c.files)
	if err != nil {
		return out, err
	}
	key := SkillKey(name, version)
	url, err := m.storage.Upload(ctx, key, packed)
	if err != nil {
		return out, fmt.Errorf("failed to upload skill %s: %w", name, err)
	}

	if _, err := m.store.SaveSkillVersion(ctx, row.ID, store.VersionWrite{
		Version:       version,
		Description:   c.skill.Frontmatter.Description,
		Readme:        c.skill.Body,
		StorageKey:    key,
		StorageURL:    url,
		FileHash:      c.hash,
		Metadata:      meta,
		LatestVersion: versions.Latest(row.LatestVersion, version),
	}); err != nil {
		return out, err
	}

	slog.InfoContext(ctx, "Skill version stored",
		"repository_id", repo.ID,
		"skill_name", name,
		"version", version,
		"storage_key", key)
	out.written = true
	return out, nil
}

func skillMetadata(c skillCandidate) map[string]any {
	fm := c.skill.Frontmatter
	meta := map[string]any{
		"path": c.path,
	}
	if fm.License != "" {
		meta["license"] = fm.License
	}
	if fm.Compatibility != "" {
		meta["compatibility"] = fm.Compatibility
	}
	if len(fm.AllowedTools) > 0 {
		meta["allowed-tools"] = []string(fm.AllowedTools)
	}
	if len(fm.Metadata) > 0 {
		meta["metadata"] = fm.Metadata
	}
	return meta
}
