// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/eventledger/internal/model"
	"github.com/alfredjeanlab/eventledger/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Driver names accepted by New. "postgres" is lib/pq, "pgx" is jackc/pgx.
const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL using
// the named database/sql driver, configures the connection pool, and runs
// any pending migrations.
func New(driver, databaseURL string) (*PostgresStore, error) {
	switch driver {
	case "":
		driver = DriverPQ
	case DriverPQ, DriverPGX:
	default:
		return nil, fmt.Errorf("unsupported postgres driver %q", driver)
	}

	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already opened database. Migrations are not run.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Claim(ctx context.Context, p store.ClaimParams) (store.ClaimResult, error) {
	return queryClaim(ctx, s.db, p)
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, eventID string, at time.Time) (bool, error) {
	return queryMarkProcessed(ctx, s.db, eventID, at)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, eventID, lastError string) (int, bool, error) {
	return queryMarkFailed(ctx, s.db, eventID, lastError)
}

func (s *PostgresStore) GetRecord(ctx context.Context, eventID string) (*model.Record, error) {
	return queryGetRecord(ctx, s.db, eventID)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter model.RecordFilter) ([]*model.Record, error) {
	return queryListRecords(ctx, s.db, filter)
}

func (s *PostgresStore) Counts(ctx context.Context, maxAttempts int) (model.Counts, error) {
	return queryCounts(ctx, s.db, maxAttempts)
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*model.Record, error) {
	return queryRecent(ctx, s.db, limit)
}

func (s *PostgresStore) CountsByType(ctx context.Context, since time.Time) ([]model.TypeCount, error) {
	return queryCountsByType(ctx, s.db, since)
}

func (s *PostgresStore) WindowCounts(ctx context.Context, since time.Time) (model.WindowCounts, error) {
	return queryWindowCounts(ctx, s.db, since)
}
