// Package testutil provides shared helpers for PostgreSQL integration tests.
//
// A single postgres container is started per test binary. Each test gets its
// own freshly created database, dropped when the test completes. Setting
// DATABASE_URL (or DATABASE_HOST and friends) points the tests at an existing
// server instead.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error
)

// ensureSingleton returns the admin DSN, starting the container on first use.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		if cfg := GetDatabaseConfig(); cfg.URL != "" {
			singletonDSN = cfg.URL
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithEnv(map[string]string{
				"POSTGRES_INITDB_ARGS": "--auth-host=trust",
			}),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		// Container is not stored - ryuk will handle cleanup automatically
		singletonDSN = dsn
	})
	return singletonDSN, singletonErr
}

// SkipIfUnavailable skips t in -short mode, or when no database is
// configured and no container provider is reachable.
func SkipIfUnavailable(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL test in short mode")
	}
	if GetDatabaseConfig().URL == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}
}

// AdminDSN returns the DSN of the maintenance database.
func AdminDSN(t *testing.T) string {
	t.Helper()
	SkipIfUnavailable(t)
	dsn, err := ensureSingleton()
	require.NoError(t, err, "failed to start PostgreSQL container")
	return dsn
}

// EmptyDB creates an empty database and returns a connection to it along
// with its DSN. Both are cleaned up when the test completes.
func EmptyDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	adminDSN := AdminDSN(t)

	name := UniqueDBName("empty")
	require.NoError(t, createDatabase(adminDSN, name), "failed to create empty database")

	dsn := ReplaceDBName(adminDSN, name)
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err, "failed to connect to empty database")
	require.NoError(t, db.Ping(), "failed to ping empty database")

	registerCleanup(t, db, adminDSN, name)
	return db, dsn
}

// DropAfter drops the named database when tb completes. Use it for databases
// created by the code under test.
func DropAfter(tb testing.TB, adminDSN, name string) {
	tb.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = dropDatabase(ctx, adminDSN, name)
	})
}

func registerCleanup(tb testing.TB, db *sql.DB, adminDSN, name string) {
	tb.Cleanup(func() {
		_ = db.Close()

		// Drop database in background
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = dropDatabase(ctx, adminDSN, name)
		}()
	})
}

// UniqueDBName generates a unique database name with the given prefix.
func UniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

func createDatabase(adminDSN, name string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", name))
	return err
}

func dropDatabase(ctx context.Context, adminDSN, name string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// Force disconnect all users
	_, _ = db.ExecContext(ctx, `
		SELECT pg_terminate_backend(pid)
		FROM pg_stat_activity
		WHERE datname = $1 AND pid <> pg_backend_pid()
	`, name)

	_, err = db.ExecContext(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", name))
	return err
}

// ReplaceDBName replaces the database name in a postgres:// DSN.
func ReplaceDBName(dsn, newDB string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	u.Path = "/" + newDB
	return u.String()
}
