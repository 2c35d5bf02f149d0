// Package skill parses SKILL.md documents: a YAML frontmatter block
// delimited by "---" lines followed by a markdown body.
package skill

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	delimiter = "---"

	// maxFrontmatterSize bounds the YAML block to keep parsing cheap.
	maxFrontmatterSize = 64 * 1024
)

// MissingFrontmatterError is returned when a document does not open with a
// frontmatter block or never closes it.
type MissingFrontmatterError struct {
	Reason string
}

func (e *MissingFrontmatterError) Error() string {
	return fmt.Sprintf("missing frontmatter: %s", e.Reason)
}

// Document is a split frontmatter document. Frontmatter holds the raw
// decoded YAML mapping.
type Document struct {
	Frontmatter map[string]any
	Body        string
}

// Split separates the frontmatter block from the body. Line endings are
// normalized to "\n" first.
func Split(content []byte) (frontmatter string, body string, err error) {
	raw := strings.ReplaceAll(string(content), "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	raw = strings.TrimPrefix(raw, "\ufeff")

	lines := strings.Split(raw, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delimiter {
		return "", "", &MissingFrontmatterError{Reason: "document must start with ---"}
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delimiter {
			end = i
			break
		}
	}
	if end < 0 {
		return "", "", &MissingFrontmatterError{Reason: "closing --- not found"}
	}

	frontmatter = strings.Join(lines[1:end], "\n")
	if end+1 < len(lines) {
		body = strings.Join(lines[end+1:], "\n")
	}
	return frontmatter, strings.TrimSpace(body), nil
}

// ParseDocument splits content and decodes the frontmatter into a generic
// mapping. An empty frontmatter block yields an empty mapping.
func ParseDocument(content []byte) (*Document, error) {
	front, body, err := Split(content)
	if err != nil {
		return nil, err
	}

	fm, err := decodeFrontmatter(front)
	if err != nil {
		return nil, err
	}

	return &Document{Frontmatter: fm, Body: body}, nil
}

func decodeFrontmatter(front string) (map[string]any, error) {
	if len(front) > maxFrontmatterSize {
		return nil, fmt.Errorf("frontmatter exceeds maximum size of %d bytes", maxFrontmatterSize)
	}

	fm := map[string]any{}
	if strings.TrimSpace(front) == "" {
		return fm, nil
	}
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter YAML: %w", err)
	}
	if fm == nil {
		fm = map[string]any{}
	}
	return normalizeMap(fm), nil
}

// normalizeMap rewrites nested YAML mappings with non-string keys into
// map[string]any so the result encodes as JSON.
func normalizeMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = normalizeValue(v)
	}
	return m
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return normalizeMap(val)
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeValue(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = normalizeValue(item)
		}
		return val
	default:
		return v
	}
}
