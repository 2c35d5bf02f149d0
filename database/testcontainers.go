package database

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	// testImageEnv overrides the Postgres image used by database tests.
	testImageEnv = "THV_SKILL_SYNC_TEST_POSTGRES_IMAGE"
	testImage    = "postgres:16-alpine"

	testDatabase = "skillsync"
	testUser     = "skillsync"
	testPassword = "skillsync"
)

type quietLogger struct{}

func (quietLogger) Printf(string, ...any) {}

var _ tclog.Logger = quietLogger{}

func testPostgresImage() string {
	if image := os.Getenv(testImageEnv); image != "" {
		return image
	}
	return testImage
}

// SetupTestDBContainer starts a throwaway Postgres and returns a pool on its
// empty database plus a func that closes the pool and removes the container.
// Skipped with -short.
func SetupTestDBContainer(t *testing.T, ctx context.Context) (*pgxpool.Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Postgres container in short mode")
	}

	container, err := postgres.Run(ctx, testPostgresImage(),
		postgres.WithDatabase(testDatabase),
		postgres.WithUsername(testUser),
		postgres.WithPassword(testPassword),
		postgres.BasicWaitStrategies(),
		tc.WithLogger(quietLogger{}),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	return pool, func() {
		pool.Close()
		tc.CleanupContainer(t, container)
	}
}

// SetupTestDB is SetupTestDBContainer with the schema migrated. Every down
// migration runs once before the final up so broken rollbacks fail early.
func SetupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	t.Helper()

	ctx := context.Background()
	pool, cleanup := SetupTestDBContainer(t, ctx)
	dsn := pool.Config().ConnString()

	require.NoError(t, MigrateUp(ctx, dsn))
	require.NoError(t, MigrateDown(ctx, dsn, 0))
	require.NoError(t, MigrateUp(ctx, dsn))

	return pool, cleanup
}
