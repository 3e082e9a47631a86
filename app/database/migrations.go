package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const migrationsTable = "schema_migrations"

// ErrDirtySchema is returned when a previous migration stopped halfway. The
// schema has to be repaired by hand before the service can start.
var ErrDirtySchema = errors.New("database schema is dirty")

func newMigrator(db *DB) (*migrate.Migrate, error) {
	scripts, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	target, err := sqlite.WithInstance(db.DB, &sqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	return migrate.NewWithInstance("iofs", scripts, "sqlite", target)
}

// RunMigrations brings the schema to the latest embedded version and returns
// that version. The migrator is not closed since that would close db too.
func RunMigrations(db *DB) (uint, bool, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, false, err
	}

	current, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		// fresh database
	case err != nil:
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return current, true, fmt.Errorf("%w at version %d", ErrDirtySchema, current)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, false, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, dirty, nil
}
