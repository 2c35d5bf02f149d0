package auth

import (
	"context"
	"fmt"

	"github.com/stacklok/toolhive-skill-sync/internal/config"
)

// MigrationConnectionString returns a connection string for the migration
// user. A dynamic token is embedded as the password because golang-migrate
// opens its own connection and cannot run a BeforeConnect hook. Without
// dynamic auth the string carries no password and pgpass applies.
func MigrationConnectionString(ctx context.Context, cfg *config.DatabaseConfig) (string, error) {
	if cfg == nil {
		return "", errConfigRequired
	}

	user := cfg.GetMigrationUser()
	src, err := NewTokenSource(ctx, cfg, user)
	if err != nil {
		return "", fmt.Errorf("failed to resolve auth token for migration user: %w", err)
	}

	var token string
	if src != nil {
		if token, err = src.Token(ctx); err != nil {
			return "", fmt.Errorf("failed to resolve auth token for migration user: %w", err)
		}
	}
	return cfg.BuildConnectionStringWithAuth(user, token), nil
}
