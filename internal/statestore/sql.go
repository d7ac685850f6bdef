package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

const createStateTable = `
CREATE TABLE IF NOT EXISTS state_maps (
    name       TEXT PRIMARY KEY,
    payload    TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

const (
	pgSelectState = `SELECT payload FROM state_maps WHERE name = $1`
	pgUpsertState = `
INSERT INTO state_maps (name, payload, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (name) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`

	liteSelectState = `SELECT payload FROM state_maps WHERE name = ?`
	liteUpsertState = `
INSERT INTO state_maps (name, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
)

// SQLBackend keeps one row per map. Each write is a single upsert.
type SQLBackend struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
}

// OpenSQL connects with driver ("postgres" or "sqlite3") and ensures the
// state table exists.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLBackend, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported state driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable wal: %w", err)
		}
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout=5000;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if _, err := db.ExecContext(ctx, createStateTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}

	return &SQLBackend{db: db, driver: driver, timeout: 5 * time.Second}, nil
}

func (b *SQLBackend) Read(name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	query := pgSelectState
	if b.driver == DriverSQLite {
		query = liteSelectState
	}

	var payload string
	err := b.db.QueryRowContext(ctx, query, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	return []byte(payload), nil
}

func (b *SQLBackend) Write(name string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	query := pgUpsertState
	if b.driver == DriverSQLite {
		query = liteUpsertState
	}

	if _, err := b.db.ExecContext(ctx, query, name, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert %s: %w", name, err)
	}
	return nil
}

// Ping backs the health endpoint.
func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}
