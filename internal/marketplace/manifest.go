// Package marketplace resolves repositories that publish a marketplace
// manifest: one or more plugins, each with command, agent and skill
// components.
package marketplace

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// ManifestPath is where a repository declares its marketplace.
	ManifestPath = ".claude-plugin/marketplace.json"

	// PluginManifestPath is a plugin's own manifest, relative to the plugin root.
	PluginManifestPath = ".claude-plugin/plugin.json"

	defaultSource = "./"
)

// ManifestError is returned when the marketplace manifest cannot be decoded.
type ManifestError struct {
	Err error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("invalid marketplace manifest: %v", e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// Manifest is a decoded marketplace manifest.
type Manifest struct {
	Name    string
	Plugins []Entry
	Raw     map[string]any
}

// Entry is one plugin listed in a marketplace manifest. Raw keeps the
// original JSON object so it can be stored with the plugin version.
type Entry struct {
	Name        string
	Description string
	Version     string
	Strict      bool
	Source      any
	Raw         map[string]any
}

// SourceString renders the source for storage. Object sources are stored as JSON.
func (e Entry) SourceString() string {
	if s, ok := e.Source.(string); ok {
		return s
	}
	data, err := json.Marshal(e.Source)
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseManifest decodes marketplace manifest bytes. A manifest without a
// plugins array decodes to zero entries; entries without a name are dropped.
func ParseManifest(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ManifestError{Err: err}
	}
	if raw == nil {
		return nil, &ManifestError{Err: fmt.Errorf("manifest must be a JSON object")}
	}

	m := &Manifest{
		Name: stringField(raw, "name"),
		Raw:  raw,
	}

	plugins, present := raw["plugins"]
	if !present || plugins == nil {
		return m, nil
	}
	list, ok := plugins.([]any)
	if !ok {
		return nil, &ManifestError{Err: fmt.Errorf("plugins must be an array")}
	}

	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name := strings.TrimSpace(stringField(obj, "name"))
		if name == "" {
			continue
		}
		source, hasSource := obj["source"]
		if !hasSource || source == nil {
			source = defaultSource
		}
		m.Plugins = append(m.Plugins, Entry{
			Name:        name,
			Description: stringField(obj, "description"),
			Version:     strings.TrimSpace(stringField(obj, "version")),
			Strict:      Boolish(obj["strict"]),
			Source:      source,
			Raw:         obj,
		})
	}

	return m, nil
}

// Boolish coerces loosely typed flags: true, 1, "true", "1" and "yes" are
// true; everything else, including nil, is false.
func Boolish(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val == 1
	case int:
		return val == 1
	case json.Number:
		return val.String() == "1"
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "1", "yes":
			return true
		}
	}
	return false
}

func stringField(obj map[string]any, key string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[key].(string)
	return s
}

// stringList reads a value that may be a single string or a list of strings.
func stringList(v any) ([]string, bool) {
	switch val := v.(type) {
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, false
		}
		return []string{val}, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out, true
	}
	return nil, false
}
