// Package auth supplies short-lived database passwords to the worker's
// connection pool and to migrations.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stacklok/toolhive-skill-sync/internal/app/storage/auth/aws"
	"github.com/stacklok/toolhive-skill-sync/internal/config"
)

var (
	errConfigRequired = errors.New("database configuration is required")
	errNoAuthMethod   = errors.New("dynamic auth is configured but no supported auth method (e.g., awsRdsIam) is specified")
)

// TokenSource issues passwords for one database user.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// NewTokenSource returns the source selected by cfg.DynamicAuth, or nil
// when the database uses a static password.
func NewTokenSource(ctx context.Context, cfg *config.DatabaseConfig, user string) (TokenSource, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}
	switch {
	case cfg.DynamicAuth == nil:
		return nil, nil
	case cfg.DynamicAuth.AWSRDSIAM != nil:
		src, err := aws.NewTokenSource(ctx, cfg, user)
		if err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, errNoAuthMethod
	}
}

// BeforeConnect is a pgx hook that sets a token from src as the password
// of every new connection.
func BeforeConnect(src TokenSource) func(context.Context, *pgx.ConnConfig) error {
	return func(ctx context.Context, cc *pgx.ConnConfig) error {
		token, err := src.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to get database auth token: %w", err)
		}
		cc.Password = token
		return nil
	}
}
