// Package validators provides validation functions for skill sync entities.
package validators

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxOwnerLength          = 39
	maxRepositoryNameLength = 100
)

var (
	// Owner pattern: alphanumeric, may contain single hyphens in the middle
	ownerPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

	// Repository pattern: alphanumeric, dots, underscores and hyphens
	repositoryPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// ValidateRepositoryFullName validates a code-host repository reference of the
// form owner/name and returns the owner and name parts.
//
// Examples of valid names:
//   - stacklok/toolhive
//   - some-org/skills.collection
//
// Examples of invalid names:
//   - toolhive (missing slash)
//   - org//repo (multiple slashes)
//   - -org/repo (owner starts with dash)
func ValidateRepositoryFullName(fullName string) (owner string, name string, err error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return "", "", fmt.Errorf("repository name cannot be empty")
	}

	if strings.Count(fullName, "/") != 1 {
		return "", "", fmt.Errorf("repository name must be in format 'owner/name' (e.g., 'stacklok/toolhive')")
	}

	owner, name, _ = strings.Cut(fullName, "/")
	if err := ValidateRepositoryParts(owner, name); err != nil {
		return "", "", err
	}
	return owner, name, nil
}

// ValidateRepositoryParts validates an owner and repository name pair.
func ValidateRepositoryParts(owner, name string) error {
	if owner == "" {
		return fmt.Errorf("owner part cannot be empty")
	}
	if name == "" {
		return fmt.Errorf("name part cannot be empty")
	}

	if len(owner) > maxOwnerLength {
		return fmt.Errorf("owner exceeds maximum length of %d characters", maxOwnerLength)
	}
	if len(name) > maxRepositoryNameLength {
		return fmt.Errorf("name exceeds maximum length of %d characters", maxRepositoryNameLength)
	}

	if !ownerPattern.MatchString(owner) || strings.Contains(owner, "--") {
		return fmt.Errorf(
			"owner '%s' is invalid. Owner must start and end with alphanumeric characters, "+
				"and may contain single hyphens in the middle",
			owner,
		)
	}

	if !repositoryPattern.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf(
			"name '%s' is invalid. Name may contain alphanumeric characters, dots, underscores, and hyphens",
			name,
		)
	}

	return nil
}

// IsValidRepositoryFullName reports whether fullName is a valid owner/name reference.
func IsValidRepositoryFullName(fullName string) bool {
	_, _, err := ValidateRepositoryFullName(fullName)
	return err == nil
}
