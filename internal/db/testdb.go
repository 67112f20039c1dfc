package db

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// PostgresTestDSNEnv names the variable that enables Postgres-backed tests.
const PostgresTestDSNEnv = "OPREMA_TEST_POSTGRES_DSN"

// NewTestDB creates a migrated SQLite database in a temporary directory.
// A file is used rather than ":memory:" so that every pooled connection sees
// the same database.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sqlite3")
	database, err := OpenSQLite(path, Options{LockTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := Migrate(context.Background(), database); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return database
}

// NewPostgresTestDB creates a migrated Postgres schema private to the test.
// The test is skipped unless OPREMA_TEST_POSTGRES_DSN holds a URL-style DSN.
func NewPostgresTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv(PostgresTestDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresTestDSNEnv)
	}

	ctx := context.Background()
	admin, err := OpenPostgres(dsn, Options{})
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	t.Cleanup(func() { admin.Close() })

	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())
	if _, err := admin.ExecContext(ctx, "CREATE SCHEMA "+schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	t.Cleanup(func() {
		admin.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
	})

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	database, err := OpenPostgres(dsn+sep+"search_path="+schema, Options{LockTimeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("opening test schema: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := Migrate(ctx, database); err != nil {
		t.Fatalf("migrating test schema: %v", err)
	}

	return database
}

// ForEachDialect runs fn against a fresh SQLite database and, when
// configured, a fresh Postgres schema.
func ForEachDialect(t *testing.T, fn func(t *testing.T, database *DB)) {
	t.Helper()

	t.Run(string(DialectSQLite), func(t *testing.T) {
		fn(t, NewTestDB(t))
	})
	t.Run(string(DialectPostgres), func(t *testing.T) {
		fn(t, NewPostgresTestDB(t))
	})
}
