package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/toolhive-skill-sync/internal/config"
)

func rdsConfig(region string) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:     "skills.cluster-abc.eu-west-1.rds.amazonaws.com",
		Port:     5432,
		User:     "skill_sync",
		Database: "skills",
		DynamicAuth: &config.DynamicAuthConfig{
			AWSRDSIAM: &config.DynamicAuthAWSRDSIAM{Region: region},
		},
	}
}

func TestResolveRegion(t *testing.T) {
	t.Parallel()

	detected := func(context.Context) (string, error) { return "eu-west-1", nil }
	failing := func(context.Context) (string, error) { return "", errors.New("no IMDS") }

	tests := []struct {
		name       string
		configured string
		detect     regionDetector
		wantRegion string
		wantErr    string
	}{
		{name: "static region", configured: "us-east-1", detect: failing, wantRegion: "us-east-1"},
		{name: "detected region", configured: RegionDetect, detect: detected, wantRegion: "eu-west-1"},
		{name: "detection failure", configured: RegionDetect, detect: failing, wantErr: "failed to get region from IMDS"},
		{name: "missing region", configured: "", detect: detected, wantErr: ErrRegionNotConfigured.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			region, err := resolveRegion(context.Background(), tt.configured, tt.detect)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRegion, region)
		})
	}
}

func TestTokenSource_ReusesTokenUntilStale(t *testing.T) {
	t.Parallel()

	var (
		calls     int
		endpoints []string
	)
	build := func(_ context.Context, endpoint, region, user string) (string, error) {
		calls++
		endpoints = append(endpoints, endpoint)
		assert.Equal(t, "us-east-1", region)
		assert.Equal(t, "migrator", user)
		return "token-" + string(rune('a'+calls-1)), nil
	}

	src, err := newTokenSource(context.Background(), rdsConfig("us-east-1"), "migrator", nil, build)
	require.NoError(t, err)

	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	ctx := context.Background()
	first, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-a", first)

	now = now.Add(tokenReuse - time.Second)
	again, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-a", again)

	now = now.Add(2 * time.Second)
	fresh, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-b", fresh)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "skills.cluster-abc.eu-west-1.rds.amazonaws.com:5432", endpoints[0])
}

func TestTokenSource_BuildErrorIsNotCached(t *testing.T) {
	t.Parallel()

	fail := true
	build := func(context.Context, string, string, string) (string, error) {
		if fail {
			return "", errors.New("no credentials")
		}
		return "token", nil
	}

	src, err := newTokenSource(context.Background(), rdsConfig("us-east-1"), "app", nil, build)
	require.NoError(t, err)

	_, err = src.Token(context.Background())
	require.ErrorContains(t, err, "no credentials")

	fail = false
	token, err := src.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token", token)
}

func TestNewTokenSource_RequiresRDSIAM(t *testing.T) {
	t.Parallel()

	_, err := NewTokenSource(context.Background(), &config.DatabaseConfig{User: "app"}, "app")
	require.ErrorContains(t, err, "not configured")

	_, err = NewTokenSource(context.Background(), rdsConfig(""), "app")
	require.ErrorIs(t, err, ErrRegionNotConfigured)
}
