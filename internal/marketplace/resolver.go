package marketplace

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/stacklok/toolhive-skill-sync/internal/archive"
	"github.com/stacklok/toolhive-skill-sync/internal/versions"
)

// Kind is a plugin component kind.
type Kind string

const (
	// KindCommand is a slash command markdown file
	KindCommand Kind = "command"
	// KindAgent is a sub-agent markdown file
	KindAgent Kind = "agent"
	// KindSkill is a SKILL.md document
	KindSkill Kind = "skill"
)

// Kinds lists component kinds in extraction order.
var Kinds = []Kind{KindCommand, KindAgent, KindSkill}

// defaultDirs are the per-kind directories used when a plugin manifest does not override them.
var defaultDirs = map[Kind]string{
	KindCommand: "commands",
	KindAgent:   "agents",
	KindSkill:   "skills",
}

// listKeys name the explicit component lists in a marketplace entry or plugin manifest.
var listKeys = map[Kind]string{
	KindCommand: "commands",
	KindAgent:   "agents",
	KindSkill:   "skills",
}

// dirKeys name the directory overrides in a plugin manifest.
var dirKeys = map[Kind]string{
	KindCommand: "commandsDir",
	KindAgent:   "agentsDir",
	KindSkill:   "skillsDir",
}

// Diagnostic records why an entry or file was skipped.
type Diagnostic struct {
	Plugin  string `json:"plugin,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// Plugin is a fully resolved marketplace plugin, ready to be persisted.
type Plugin struct {
	Entry      Entry
	Root       string
	Manifest   map[string]any
	Dirs       map[Kind]string
	Explicit   map[Kind][]string
	Files      archive.Files
	Hash       string
	Version    string
	Components []Component
}

// Name returns the plugin name from its marketplace entry.
func (p *Plugin) Name() string {
	return p.Entry.Name
}

// Description prefers the marketplace entry description over the plugin manifest's.
func (p *Plugin) Description() string {
	if p.Entry.Description != "" {
		return p.Entry.Description
	}
	return stringField(p.Manifest, "description")
}

// SourceString renders the entry source for storage.
func (p *Plugin) SourceString() string {
	return p.Entry.SourceString()
}

// ResolvedManifest describes the layout actually used to extract components.
func (p *Plugin) ResolvedManifest() map[string]any {
	resolved := map[string]any{
		"name":        p.Name(),
		"description": p.Description(),
		"version":     p.Version,
		"root":        p.Root,
		"strict":      p.Entry.Strict,
	}
	for _, kind := range Kinds {
		resolved[dirKeys[kind]] = p.Dirs[kind]
		paths := []string{}
		for _, c := range p.Components {
			if c.Kind == kind {
				paths = append(paths, c.Path)
			}
		}
		resolved[listKeys[kind]] = paths
	}
	return resolved
}

// Metadata is the blob stored with a plugin version.
func (p *Plugin) Metadata() map[string]any {
	var manifest any
	if p.Manifest != nil {
		manifest = p.Manifest
	}
	return map[string]any{
		"marketplace_entry": p.Entry.Raw,
		"manifest":          manifest,
		"resolved_manifest": p.ResolvedManifest(),
		"source":            p.Entry.Source,
		"strict":            p.Entry.Strict,
	}
}

// Result is the outcome of resolving a marketplace.
type Result struct {
	Manifest *Manifest
	Plugins  []*Plugin
	// Skipped lists entries and component files that could not be resolved.
	Skipped []Diagnostic
	// Unresolved are the named entries whose plugin root could not be
	// resolved. Their plugin rows are still kept, just without a version.
	Unresolved []Entry
	// ClaimedPrefixes are repository-relative directories owned by plugins.
	// Standalone skill scanning must not index files below them.
	ClaimedPrefixes []string
}

// Detect returns the marketplace manifest bytes when the archive has one.
func Detect(files archive.Files) ([]byte, bool) {
	data, ok := files[ManifestPath]
	return data, ok
}

// Resolve resolves every plugin entry of manifest against the archive files.
// Entries that cannot be resolved are reported in Result.Skipped and never
// fail the whole marketplace.
func Resolve(files archive.Files, manifest *Manifest) *Result {
	result := &Result{Manifest: manifest}
	claimed := map[string]struct{}{}
	seen := map[string]struct{}{}

	for _, entry := range manifest.Plugins {
		if _, dup := seen[entry.Name]; dup {
			result.Skipped = append(result.Skipped, Diagnostic{
				Plugin:  entry.Name,
				Message: "duplicate plugin name",
			})
			continue
		}

		seen[entry.Name] = struct{}{}

		plugin, diags, err := resolvePlugin(files, entry)
		result.Skipped = append(result.Skipped, diags...)
		if err != nil {
			result.Skipped = append(result.Skipped, Diagnostic{Plugin: entry.Name, Message: err.Error()})
			result.Unresolved = append(result.Unresolved, entry)
			continue
		}
		result.Plugins = append(result.Plugins, plugin)

		for _, kind := range Kinds {
			claimed[joinPath(plugin.Root, plugin.Dirs[kind])] = struct{}{}
		}
		for _, c := range plugin.Components {
			if c.Kind != KindSkill {
				continue
			}
			if dir := path.Dir(joinPath(plugin.Root, c.Path)); dir != "." && dir != "" {
				claimed[dir] = struct{}{}
			}
		}
	}

	for prefix := range claimed {
		if prefix != "" {
			result.ClaimedPrefixes = append(result.ClaimedPrefixes, prefix)
		}
	}
	sort.Strings(result.ClaimedPrefixes)
	return result
}

func resolvePlugin(files archive.Files, entry Entry) (*Plugin, []Diagnostic, error) {
	root, err := resolveRoot(entry.Source)
	if err != nil {
		return nil, nil, err
	}

	subtree := files.Subtree(root)
	if len(subtree) == 0 {
		return nil, nil, fmt.Errorf("plugin root %q not found in archive", root)
	}

	var diags []Diagnostic
	var manifest map[string]any
	if data, ok := subtree[PluginManifestPath]; ok {
		if err := json.Unmarshal(data, &manifest); err != nil {
			diags = append(diags, Diagnostic{
				Plugin:  entry.Name,
				Path:    joinPath(root, PluginManifestPath),
				Message: fmt.Sprintf("ignoring unparsable plugin manifest: %v", err),
			})
			manifest = nil
		}
	}

	plugin := &Plugin{
		Entry:    entry,
		Root:     root,
		Manifest: manifest,
		Dirs:     map[Kind]string{},
		Explicit: map[Kind][]string{},
		Files:    subtree,
		Hash:     versions.ContentHash(subtree),
	}

	explicitVersion := entry.Version
	if explicitVersion == "" {
		explicitVersion = strings.TrimSpace(stringField(manifest, "version"))
	}
	plugin.Version, err = versions.Resolve(explicitVersion, plugin.Hash)
	if err != nil {
		return nil, diags, err
	}

	for _, kind := range Kinds {
		plugin.Dirs[kind] = componentDir(manifest, entry.Raw, kind)
		if list, ok := explicitList(entry.Raw, manifest, kind); ok {
			plugin.Explicit[kind] = list
		}
	}

	components, componentDiags := extractComponents(plugin)
	plugin.Components = components
	diags = append(diags, componentDiags...)

	return plugin, diags, nil
}

// resolveRoot turns an entry source into a repository-relative directory.
func resolveRoot(source any) (string, error) {
	switch src := source.(type) {
	case nil:
		return "", nil
	case string:
		if strings.Contains(src, "://") {
			return "", fmt.Errorf("unsupported remote plugin source %q", src)
		}
		return archive.CleanDir(src), nil
	case map[string]any:
		for _, key := range []string{"path", "dir", "directory"} {
			if p, ok := src[key].(string); ok && p != "" {
				return archive.CleanDir(p), nil
			}
		}
		return "", fmt.Errorf("unsupported plugin source type %q", stringField(src, "source"))
	default:
		return "", fmt.Errorf("unsupported plugin source %v", source)
	}
}

// componentDir resolves the directory for kind, relative to the plugin root.
func componentDir(manifest, entry map[string]any, kind Kind) string {
	for _, obj := range []map[string]any{manifest, entry} {
		if dir, ok := dirValue(obj[dirKeys[kind]]); ok {
			return dir
		}
	}
	return defaultDirs[kind]
}

// dirValue accepts either a plain string or an object carrying path, dir or directory.
func dirValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return "", false
		}
		return archive.CleanDir(val), true
	case map[string]any:
		for _, key := range []string{"path", "dir", "directory"} {
			if s, ok := val[key].(string); ok && strings.TrimSpace(s) != "" {
				return archive.CleanDir(s), true
			}
		}
	}
	return "", false
}

// explicitList returns the declared component paths for kind. The
// marketplace entry wins over the plugin manifest.
func explicitList(entry, manifest map[string]any, kind Kind) ([]string, bool) {
	for _, obj := range []map[string]any{entry, manifest} {
		if obj == nil {
			continue
		}
		if v, present := obj[listKeys[kind]]; present {
			if list, ok := stringList(v); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func joinPath(root, rel string) string {
	if root == "" {
		return rel
	}
	if rel == "" {
		return root
	}
	return root + "/" + rel
}
