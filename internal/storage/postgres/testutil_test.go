package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container and applies migrations.
// Returns a cleanup function that must be called after tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applyTestMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}
	return pool, cleanup
}

// applyTestMigrations creates the schema used by the stores under test.
// Mirrors internal/storage/migrations/postgres/0001_init.sql; inlined here to
// avoid an import cycle between the migrations package and this one.
func applyTestMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS token_states (
			address TEXT PRIMARY KEY,
			state TEXT NOT NULL DEFAULT 'NEW',
			reason TEXT NOT NULL DEFAULT '',
			tx_hash TEXT NOT NULL DEFAULT '',
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			position_id TEXT PRIMARY KEY,
			wallet_address TEXT NOT NULL,
			mint TEXT NOT NULL,
			symbol TEXT NOT NULL DEFAULT '',
			amount_sol DOUBLE PRECISION NOT NULL,
			token_amount DOUBLE PRECISION NOT NULL,
			entry_price_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
			opened_at BIGINT NOT NULL,
			closed_at BIGINT NOT NULL DEFAULT 0,
			exit_reason TEXT NOT NULL DEFAULT '',
			pnl_sol DOUBLE PRECISION NOT NULL DEFAULT 0,
			demo BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE TABLE IF NOT EXISTS payment_records (
			signature TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			pack_id TEXT NOT NULL DEFAULT '',
			nonce TEXT NOT NULL DEFAULT '',
			lamports BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'PENDING',
			reason TEXT NOT NULL DEFAULT '',
			slot BIGINT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL,
			confirmed_at BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS user_balances (
			user_id TEXT PRIMARY KEY,
			lamports BIGINT NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		_, err := pool.Exec(ctx, stmt)
		require.NoError(t, err, "failed to apply test schema")
	}
}
