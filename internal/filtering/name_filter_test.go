package filtering

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameFilter_ShouldInclude(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		repo       string
		include    []string
		exclude    []string
		want       bool
		wantReason string
	}{
		{
			name:       "no patterns",
			repo:       "acme/skills",
			want:       true,
			wantReason: "no name filters specified",
		},
		{
			name:       "include owner wildcard",
			repo:       "anthropics/skills",
			include:    []string{"anthropics/*"},
			want:       true,
			wantReason: "included by pattern 'anthropics/*'",
		},
		{
			name:    "include is case-insensitive",
			repo:    "Anthropics/Skills",
			include: []string{"anthropics/*"},
			want:    true,
		},
		{
			name:    "star crosses the separator",
			repo:    "acme/claude-skills",
			include: []string{"*skills*"},
			want:    true,
		},
		{
			name:       "no include match",
			repo:       "acme/tools",
			include:    []string{"anthropics/*"},
			want:       false,
			wantReason: "no match found in include patterns",
		},
		{
			name:       "exclude wins over include",
			repo:       "anthropics/skills-archive",
			include:    []string{"anthropics/*"},
			exclude:    []string{"*-archive"},
			want:       false,
			wantReason: "excluded by pattern '*-archive'",
		},
		{
			name:       "exclude only",
			repo:       "acme/skills",
			exclude:    []string{"spam/*"},
			want:       true,
			wantReason: "no match in exclude patterns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, err := NewNameFilter(tt.include, tt.exclude)
			require.NoError(t, err)

			got, reason := f.ShouldInclude(tt.repo)
			assert.Equal(t, tt.want, got)
			if tt.wantReason != "" {
				assert.Equal(t, tt.wantReason, reason)
			}
		})
	}
}

func TestNewNameFilter_InvalidPatterns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		include []string
		exclude []string
		wantErr string
	}{
		{name: "bad include class", include: []string{"[acme"}, wantErr: "invalid include pattern"},
		{name: "bad exclude class", exclude: []string{"acme/[z-"}, wantErr: "invalid exclude pattern"},
		{name: "empty pattern", include: []string{"  "}, wantErr: "must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewNameFilter(tt.include, tt.exclude)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidatePatterns(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidatePatterns([]string{"acme/*", "*/skills"}))
	require.Error(t, ValidatePatterns([]string{"acme/[x"}))
}
