// Package storage builds the PostgreSQL connection pool used by the store.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stacklok/toolhive-skill-sync/internal/app/storage/auth"
	"github.com/stacklok/toolhive-skill-sync/internal/config"
)

// enumTypes are the custom enums whose array types pgx must learn about.
var enumTypes = []string{"repository_status", "component_kind"}

// NewPool creates a database connection pool with proper configuration.
// When dynamic auth is configured every new connection gets a fresh token.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration is required")
	}

	connStr, err := cfg.GetConnectionString()
	if err != nil {
		return nil, err
	}

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	}
	lifetime, err := cfg.GetConnMaxLifetime()
	if err != nil {
		return nil, err
	}
	if lifetime > 0 {
		poolConfig.MaxConnLifetime = lifetime
	}

	tokens, err := auth.NewTokenSource(ctx, cfg, cfg.User)
	if err != nil {
		return nil, fmt.Errorf("failed to configure dynamic database auth: %w", err)
	}
	if tokens != nil {
		poolConfig.BeforeConnect = auth.BeforeConnect(tokens)
	}

	poolConfig.AfterConnect = registerCustomArrayCodecs

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}

	slog.Info("Database connection pool created",
		"host", cfg.Host,
		"database", cfg.Database,
		"dynamic_auth", cfg.DynamicAuth != nil)
	return pool, nil
}

// registerCustomArrayCodecs registers codecs for the custom enum array types.
// pgx doesn't know how to encode Go slices of custom enum types into
// PostgreSQL array types on its own.
func registerCustomArrayCodecs(ctx context.Context, conn *pgx.Conn) error {
	for _, enumName := range enumTypes {
		var enumOID uint32
		err := conn.QueryRow(ctx, "SELECT oid FROM pg_type WHERE typname = $1", enumName).Scan(&enumOID)
		if err != nil {
			return fmt.Errorf("failed to get %s OID: %w", enumName, err)
		}

		// PostgreSQL prefixes array types with _
		var arrayOID uint32
		err = conn.QueryRow(ctx, "SELECT oid FROM pg_type WHERE typname = $1", "_"+enumName).Scan(&arrayOID)
		if err != nil {
			return fmt.Errorf("failed to get %s[] array OID: %w", enumName, err)
		}

		conn.TypeMap().RegisterType(&pgtype.Type{
			Name: enumName + "[]",
			OID:  arrayOID,
			Codec: &pgtype.ArrayCodec{
				ElementType: &pgtype.Type{
					Name:  enumName,
					OID:   enumOID,
					Codec: pgtype.TextCodec{},
				},
			},
		})
	}

	return nil
}
