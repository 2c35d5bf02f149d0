package marketplace

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/stacklok/toolhive-skill-sync/internal/archive"
	"github.com/stacklok/toolhive-skill-sync/internal/skill"
)

// Component is a command, agent or skill file belonging to a plugin version.
// Path is relative to the plugin root.
type Component struct {
	Kind        Kind           `json:"kind"`
	Path        string         `json:"path"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Body        string         `json:"body"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Explicit    bool           `json:"explicit"`
}

type candidate struct {
	kind     Kind
	path     string
	explicit bool
}

// extractComponents applies explicit-then-scan precedence independently per
// kind. Explicit paths are always resolved; the kind directory is scanned
// too unless the plugin is strict and declared an explicit list for that
// kind. Candidates are deduplicated by (kind, path) with explicit entries
// first.
func extractComponents(p *Plugin) ([]Component, []Diagnostic) {
	var candidates []candidate
	seen := map[string]struct{}{}
	add := func(c candidate) {
		key := string(c.kind) + "\x00" + c.path
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		candidates = append(candidates, c)
	}

	for _, kind := range Kinds {
		explicit, hasExplicit := p.Explicit[kind]
		for _, declared := range explicit {
			for _, resolved := range expandExplicit(p.Files, kind, declared) {
				add(candidate{kind: kind, path: resolved, explicit: true})
			}
		}

		if p.Entry.Strict && hasExplicit {
			continue
		}
		for _, scanned := range scanKind(p.Files, kind, p.Dirs) {
			add(candidate{kind: kind, path: scanned})
		}
	}

	var (
		components []Component
		diags      []Diagnostic
	)
	for _, c := range candidates {
		component, err := parseComponent(p.Files, c)
		if err != nil {
			diags = append(diags, Diagnostic{
				Plugin:  p.Name(),
				Path:    c.path,
				Message: err.Error(),
			})
			continue
		}
		components = append(components, component)
	}
	return components, diags
}

// expandExplicit resolves one declared path: a .md file is used as is, a
// directory expands to the matching files beneath it.
func expandExplicit(files archive.Files, kind Kind, declared string) []string {
	cleaned := archive.CleanDir(declared)
	if cleaned == "" {
		return nil
	}
	if isMarkdown(cleaned) {
		if _, ok := files[cleaned]; ok {
			return []string{cleaned}
		}
		return nil
	}
	return matchingFiles(files, cleaned, kind)
}

// scanKind lists the files discovered by scanning a kind's directory. Skills
// are also looked for under the commands directory.
func scanKind(files archive.Files, kind Kind, dirs map[Kind]string) []string {
	switch kind {
	case KindSkill:
		found := matchingFiles(files, dirs[KindSkill], KindSkill)
		if dirs[KindCommand] != dirs[KindSkill] {
			found = append(found, matchingFiles(files, dirs[KindCommand], KindSkill)...)
		}
		return found
	default:
		return matchingFiles(files, dirs[kind], kind)
	}
}

// matchingFiles returns, in path order, files under dir that belong to kind:
// SKILL.md files for skills and other .md files for commands and agents.
func matchingFiles(files archive.Files, dir string, kind Kind) []string {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	var out []string
	for _, p := range files.Paths() {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		isSkill := path.Base(p) == skill.FileName
		switch kind {
		case KindSkill:
			if isSkill {
				out = append(out, p)
			}
		default:
			if !isSkill && isMarkdown(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

func parseComponent(files archive.Files, c candidate) (Component, error) {
	content := files[c.path]

	fm := map[string]any{}
	var body string
	doc, err := skill.ParseDocument(content)
	var missing *skill.MissingFrontmatterError
	switch {
	case err == nil:
		if _, err := json.Marshal(doc.Frontmatter); err != nil {
			return Component{}, fmt.Errorf("frontmatter cannot be stored as JSON: %w", err)
		}
		fm = doc.Frontmatter
		body = doc.Body
	case errors.As(err, &missing):
		body = strings.TrimSpace(strings.ReplaceAll(string(content), "\r\n", "\n"))
	default:
		return Component{}, err
	}

	name := strings.TrimSpace(stringField(fm, "name"))
	if name == "" {
		name = fallbackName(c.path)
	}

	return Component{
		Kind:        c.kind,
		Path:        c.path,
		Name:        name,
		Description: strings.TrimSpace(stringField(fm, "description")),
		Body:        body,
		Metadata:    fm,
		Explicit:    c.explicit,
	}, nil
}

// fallbackName is the parent directory for SKILL.md files and the file stem otherwise.
func fallbackName(p string) string {
	base := path.Base(p)
	if base == skill.FileName {
		dir := path.Base(path.Dir(p))
		if dir != "." && dir != "/" {
			return dir
		}
	}
	return strings.TrimSuffix(base, path.Ext(base))
}

func isMarkdown(p string) bool {
	return strings.EqualFold(path.Ext(p), ".md")
}
