// Package sqlite implements the store.Store interface backed by a SQLite file.
//
// It is the single-node backend: one writer connection in WAL mode, with
// timestamps stored as INTEGER unix milliseconds (UTC) so that range and
// lease comparisons are plain integer comparisons.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DriverName is the database/sql driver registered by mattn/go-sqlite3.
const DriverName = "sqlite3"

// SQLiteStore implements store.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// Open creates or opens the SQLite database at path, applies pragmas and
// runs pending migrations. Safe to call repeatedly on the same file.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open(DriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite has a single writer; one connection avoids SQLITE_BUSY and
	// keeps the claim upsert strictly serialized.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Claim(ctx context.Context, p store.ClaimParams) (store.ClaimResult, error) {
	return queryClaim(ctx, s.db, p)
}

func (s *SQLiteStore) MarkProcessed(ctx context.Context, eventID string, at time.Time) (bool, error) {
	return queryMarkProcessed(ctx, s.db, eventID, at)
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, eventID, lastError string) (int, bool, error) {
	return queryMarkFailed(ctx, s.db, eventID, lastError)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, eventID string) (*model.Record, error) {
	return queryGetRecord(ctx, s.db, eventID)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter model.RecordFilter) ([]*model.Record, error) {
	return queryListRecords(ctx, s.db, filter)
}

func (s *SQLiteStore) Counts(ctx context.Context, maxAttempts int) (model.Counts, error) {
	return queryCounts(ctx, s.db, maxAttempts)
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]*model.Record, error) {
	return queryRecent(ctx, s.db, limit)
}

func (s *SQLiteStore) CountsByType(ctx context.Context, since time.Time) ([]model.TypeCount, error) {
	return queryCountsByType(ctx, s.db, since)
}

func (s *SQLiteStore) WindowCounts(ctx context.Context, since time.Time) (model.WindowCounts, error) {
	return queryWindowCounts(ctx, s.db, since)
}
