// Package aws issues AWS RDS IAM authentication tokens for PostgreSQL.
package aws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"

	"github.com/stacklok/toolhive-skill-sync/internal/config"
)

const (
	// RegionDetect reads the region from the instance metadata service.
	RegionDetect = "detect"

	// tokenReuse is how long a token is handed out again. RDS accepts a
	// token for 15 minutes after it was signed.
	tokenReuse = 10 * time.Minute

	imdsTimeout = 2 * time.Second
)

// ErrRegionNotConfigured is returned when awsRdsIam has no region.
var ErrRegionNotConfigured = errors.New("AWS RDS IAM region is not configured")

type (
	regionDetector func(ctx context.Context) (string, error)
	tokenBuilder   func(ctx context.Context, endpoint, region, user string) (string, error)
)

// TokenSource signs RDS IAM tokens for one database endpoint and user.
// A token is reused until it nears expiry so that a burst of new pool
// connections does not sign one token each.
type TokenSource struct {
	endpoint string
	region   string
	user     string
	build    tokenBuilder
	now      func() time.Time

	mu       sync.Mutex
	token    string
	signedAt time.Time
}

// NewTokenSource resolves the region once and returns a source for user.
func NewTokenSource(ctx context.Context, cfg *config.DatabaseConfig, user string) (*TokenSource, error) {
	return newTokenSource(ctx, cfg, user, detectRegion, buildToken)
}

func newTokenSource(
	ctx context.Context,
	cfg *config.DatabaseConfig,
	user string,
	detect regionDetector,
	build tokenBuilder,
) (*TokenSource, error) {
	if cfg.DynamicAuth == nil || cfg.DynamicAuth.AWSRDSIAM == nil {
		return nil, errors.New("AWS RDS IAM authentication is not configured")
	}
	region, err := resolveRegion(ctx, cfg.DynamicAuth.AWSRDSIAM.Region, detect)
	if err != nil {
		return nil, err
	}
	return &TokenSource{
		endpoint: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		region:   region,
		user:     user,
		build:    build,
		now:      time.Now,
	}, nil
}

// Token returns a valid token, signing a new one when the cached one is stale.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Sub(s.signedAt) < tokenReuse {
		return s.token, nil
	}
	token, err := s.build(ctx, s.endpoint, s.region, s.user)
	if err != nil {
		return "", err
	}
	s.token, s.signedAt = token, s.now()
	return token, nil
}

func resolveRegion(ctx context.Context, configured string, detect regionDetector) (string, error) {
	switch configured {
	case "":
		return "", ErrRegionNotConfigured
	case RegionDetect:
		region, err := detect(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get region from IMDS: %w", err)
		}
		return region, nil
	default:
		return configured, nil
	}
}

func detectRegion(ctx context.Context) (string, error) {
	client := imds.New(imds.Options{HTTPClient: &http.Client{Timeout: imdsTimeout}})
	out, err := client.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", err
	}
	return out.Region, nil
}

// buildToken signs a token with the default credential chain of the workload.
func buildToken(ctx context.Context, endpoint, region, user string) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}
	token, err := auth.BuildAuthToken(ctx, endpoint, region, user, awsCfg.Credentials)
	if err != nil {
		return "", fmt.Errorf("failed to build authentication token: %w", err)
	}
	return token, nil
}
