package filtering

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// NameFilter handles repository name filtering using glob patterns
type NameFilter interface {
	// ShouldInclude determines if a repository full name should be kept.
	// Returns (shouldInclude bool, reason string)
	ShouldInclude(name string) (bool, string)
}

type pattern struct {
	raw string
	g   glob.Glob
}

// globNameFilter implements name filtering with precompiled patterns
type globNameFilter struct {
	include []pattern
	exclude []pattern
}

var _ NameFilter = (*globNameFilter)(nil)

// NewNameFilter compiles include and exclude patterns. It fails on the
// first invalid pattern.
func NewNameFilter(include, exclude []string) (NameFilter, error) {
	inc, err := compileAll(include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exc, err := compileAll(exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return &globNameFilter{include: inc, exclude: exc}, nil
}

// ValidatePatterns reports the first pattern that does not compile.
func ValidatePatterns(patterns []string) error {
	_, err := compileAll(patterns)
	return err
}

func compileAll(patterns []string) ([]pattern, error) {
	out := make([]pattern, 0, len(patterns))
	for _, p := range patterns {
		compiled, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		out = append(out, pattern{raw: p, g: compiled})
	}
	return out, nil
}

// compilePattern compiles a glob pattern, supporting matching across slashes.
// gobwas/glob with no separators lets * match '/', unlike filepath.Match.
func compilePattern(p string) (glob.Glob, error) {
	if strings.TrimSpace(p) == "" {
		return nil, fmt.Errorf("pattern must not be empty")
	}
	// filepath.Match catches malformed character classes gobwas accepts
	if _, err := filepath.Match(p, "test"); err != nil {
		return nil, fmt.Errorf("%q: %w", p, err)
	}
	compiled, err := glob.Compile(strings.ToLower(p))
	if err != nil {
		return nil, fmt.Errorf("%q: %v", p, err)
	}
	return compiled, nil
}

// ShouldInclude determines if a repository should be kept
//
// Logic:
// 1. If name matches any exclude pattern -> exclude (exclude takes precedence)
// 2. If include patterns are specified and name matches any -> include
// 3. If include patterns are specified and name matches none -> exclude
// 4. Otherwise -> include
func (f *globNameFilter) ShouldInclude(name string) (bool, string) {
	lower := strings.ToLower(name)
	for _, p := range f.exclude {
		if p.g.Match(lower) {
			return false, fmt.Sprintf("excluded by pattern '%s'", p.raw)
		}
	}

	if len(f.include) > 0 {
		for _, p := range f.include {
			if p.g.Match(lower) {
				return true, fmt.Sprintf("included by pattern '%s'", p.raw)
			}
		}
		return false, "no match found in include patterns"
	}

	if len(f.exclude) > 0 {
		return true, "no match in exclude patterns"
	}
	return true, "no name filters specified"
}
