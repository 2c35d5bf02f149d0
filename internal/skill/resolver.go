package skill

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// FileName is the file name that marks a skill directory.
const FileName = "SKILL.md"

const (
	maxNameLength        = 64
	maxDescriptionLength = 1024
)

// allowedKeys is the closed set of frontmatter keys a SKILL.md may use.
var allowedKeys = map[string]struct{}{
	"name":          {},
	"description":   {},
	"license":       {},
	"compatibility": {},
	"allowed-tools": {},
	"metadata":      {},
}

// UnexpectedKeyError is returned when frontmatter carries keys outside the allowed set.
type UnexpectedKeyError struct {
	Keys []string
}

func (e *UnexpectedKeyError) Error() string {
	return fmt.Sprintf("unexpected frontmatter keys: %s", strings.Join(e.Keys, ", "))
}

// ValidationError names the frontmatter rule a document violates.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Frontmatter is the validated SKILL.md header.
type Frontmatter struct {
	Name          string         `yaml:"name" json:"name"`
	Description   string         `yaml:"description" json:"description"`
	License       string         `yaml:"license,omitempty" json:"license,omitempty"`
	Compatibility string         `yaml:"compatibility,omitempty" json:"compatibility,omitempty"`
	AllowedTools  StringList     `yaml:"allowed-tools,omitempty" json:"allowed-tools,omitempty"`
	Metadata      map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// StringList accepts either a YAML sequence of strings or a single
// space- or comma-separated string.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		fields := strings.FieldsFunc(node.Value, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		*l = fields
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*l = items
		return nil
	default:
		return fmt.Errorf("allowed-tools must be a string or a list of strings")
	}
}

// Skill is a validated SKILL.md document.
type Skill struct {
	Frontmatter Frontmatter
	Body        string
}

// Version returns metadata.version when the author supplied one.
func (s *Skill) Version() string {
	if s == nil || s.Frontmatter.Metadata == nil {
		return ""
	}
	v, ok := s.Frontmatter.Metadata["version"]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// Resolve splits, decodes and validates a SKILL.md document.
func Resolve(content []byte) (*Skill, error) {
	front, body, err := Split(content)
	if err != nil {
		return nil, err
	}

	raw, err := decodeFrontmatter(front)
	if err != nil {
		return nil, &ValidationError{Field: "frontmatter", Message: err.Error()}
	}

	var unexpected []string
	for key := range raw {
		if _, ok := allowedKeys[key]; !ok {
			unexpected = append(unexpected, key)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return nil, &UnexpectedKeyError{Keys: unexpected}
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return nil, &ValidationError{Field: "frontmatter", Message: fmt.Sprintf("invalid frontmatter: %v", err)}
	}

	if err := ValidateName(fm.Name); err != nil {
		return nil, err
	}
	if err := ValidateDescription(fm.Description); err != nil {
		return nil, err
	}
	if fm.Metadata != nil {
		fm.Metadata = normalizeMap(fm.Metadata)
		if _, err := json.Marshal(fm.Metadata); err != nil {
			return nil, &ValidationError{
				Field:   "metadata",
				Message: fmt.Sprintf("metadata cannot be stored as JSON: %v", err),
			}
		}
	}

	return &Skill{Frontmatter: fm, Body: body}, nil
}

// ValidateName checks a skill name: 1-64 characters of lowercase ASCII
// letters, digits and hyphens, with no leading, trailing or doubled hyphen.
func ValidateName(name string) error {
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("name must be 1-%d characters", maxNameLength),
		}
	}

	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return &ValidationError{
				Field:   "name",
				Message: fmt.Sprintf("name %q must contain only lowercase letters, digits, and hyphens", name),
			}
		}
	}

	if strings.HasPrefix(name, "-") || strings.HasSuffix(name, "-") {
		return &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("name %q must not start or end with a hyphen", name),
		}
	}

	if strings.Contains(name, "--") {
		return &ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("name %q must not contain consecutive hyphens", name),
		}
	}

	return nil
}

// ValidateDescription checks that a description has 1-1024 characters.
func ValidateDescription(description string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(description))
	if n == 0 || utf8.RuneCountInString(description) > maxDescriptionLength {
		return &ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("description must be 1-%d characters", maxDescriptionLength),
		}
	}
	return nil
}
