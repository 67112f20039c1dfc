package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL engine behind a DB.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DefaultLockTimeout bounds how long a transaction waits for a contended row.
const DefaultLockTimeout = 5 * time.Second

// Options tune a database connection.
type Options struct {
	// LockTimeout maps to busy_timeout on SQLite and lock_timeout on Postgres.
	LockTimeout  time.Duration
	MaxOpenConns int
}

// Querier is implemented by both DB and Tx so store functions can run either
// on the pool or inside an open transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Dialect() Dialect
}

// DB wraps a connection pool and rewrites '?' placeholders for the dialect.
type DB struct {
	*sql.DB
	dialect     Dialect
	lockTimeout time.Duration
}

// Tx is a transaction started from a DB.
type Tx struct {
	*sql.Tx
	dialect     Dialect
	lockTimeout time.Duration
}

// Open opens a database for the named driver ("sqlite" or "postgres").
func Open(driver, dsn string, opts Options) (*DB, error) {
	switch Dialect(driver) {
	case DialectSQLite:
		return OpenSQLite(dsn, opts)
	case DialectPostgres:
		return OpenPostgres(dsn, opts)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// OpenSQLite opens a SQLite database file. Pragmas are passed through the DSN
// so every pooled connection gets them, and transactions begin IMMEDIATE so
// writers queue on busy_timeout instead of failing on a stale snapshot.
func OpenSQLite(path string, opts Options) (*DB, error) {
	opts = withDefaults(opts)

	sqlDB, err := sql.Open("sqlite", sqliteDSN(path, opts.LockTimeout))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &DB{DB: sqlDB, dialect: DialectSQLite, lockTimeout: opts.LockTimeout}, nil
}

// OpenPostgres opens a Postgres database through the pgx stdlib driver.
func OpenPostgres(dsn string, opts Options) (*DB, error) {
	opts = withDefaults(opts)

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &DB{DB: sqlDB, dialect: DialectPostgres, lockTimeout: opts.LockTimeout}, nil
}

func withDefaults(opts Options) Options {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	return opts
}

func sqliteDSN(path string, busy time.Duration) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join([]string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busy.Milliseconds()),
		"_pragma=foreign_keys(1)",
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_time_format=sqlite",
		"_txlock=immediate",
	}, "&")
}

// Dialect reports the SQL engine.
func (d *DB) Dialect() Dialect { return d.dialect }

// LockTimeout reports the configured lock wait bound.
func (d *DB) LockTimeout() time.Duration { return d.lockTimeout }

// BeginTx starts a transaction.
func (d *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := d.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{Tx: tx, dialect: d.dialect, lockTimeout: d.lockTimeout}, nil
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, rebind(d.dialect, query), args...)
}

func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, rebind(d.dialect, query), args...)
}

func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.DB.QueryRowContext(ctx, rebind(d.dialect, query), args...)
}

// Dialect reports the SQL engine.
func (t *Tx) Dialect() Dialect { return t.dialect }

// LockTimeout reports the configured lock wait bound.
func (t *Tx) LockTimeout() time.Duration { return t.lockTimeout }

func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.Tx.ExecContext(ctx, rebind(t.dialect, query), args...)
}

func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.Tx.QueryContext(ctx, rebind(t.dialect, query), args...)
}

func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.Tx.QueryRowContext(ctx, rebind(t.dialect, query), args...)
}

func rebind(d Dialect, query string) string {
	if d == DialectPostgres {
		return sqlx.Rebind(sqlx.DOLLAR, query)
	}
	return query
}
