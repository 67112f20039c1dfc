package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestRebind(t *testing.T) {
	q := `UPDATE t SET a = ? WHERE id = ? AND b = ?`

	if got := rebind(DialectSQLite, q); got != q {
		t.Errorf("sqlite rebind changed query: %q", got)
	}

	want := `UPDATE t SET a = $1 WHERE id = $2 AND b = $3`
	if got := rebind(DialectPostgres, q); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN("data.sqlite3", 2500*time.Millisecond)
	for _, want := range []string{"data.sqlite3?", "busy_timeout(2500)", "foreign_keys(1)", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}

	dsn = sqliteDSN("file:data.sqlite3?mode=rwc", time.Second)
	if !strings.HasPrefix(dsn, "file:data.sqlite3?mode=rwc&_pragma") {
		t.Errorf("expected params appended with &, got %q", dsn)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x", Options{}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestMigrateIdempotent(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()

	if err := Migrate(ctx, database); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	v, err := SchemaVersion(ctx, database)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("expected schema version 1, got %d", v)
	}
}

func TestQuantityCheckConstraint(t *testing.T) {
	ForEachDialect(t, func(t *testing.T, database *DB) {
		ctx := context.Background()

		_, err := database.ExecContext(ctx,
			`INSERT INTO inventory_items (name, category, quantity_available) VALUES (?, ?, ?)`,
			"Laptop", "IT", -1,
		)
		if err == nil {
			t.Error("expected check constraint to reject negative quantity")
		}
	})
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped cancel", fmt.Errorf("locking: %w", context.Canceled), true},
		{"bad conn", driver.ErrBadConn, true},
		{"pg lock timeout", &pgconn.PgError{Code: "55P03"}, true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg connection", &pgconn.PgError{Code: "08006"}, true},
		{"pg unique", &pgconn.PgError{Code: "23505"}, false},
	}

	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	database := NewTestDB(t)
	ctx := context.Background()

	insert := `INSERT INTO users (email, full_name, password_hash, role) VALUES (?, ?, ?, ?)`
	if _, err := database.ExecContext(ctx, insert, "a@example.com", "A", "x", "staff"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := database.ExecContext(ctx, insert, "a@example.com", "B", "x", "staff")
	if err == nil {
		t.Fatal("expected duplicate email to fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
	if IsTransient(err) {
		t.Error("unique violation must not be transient")
	}
}
