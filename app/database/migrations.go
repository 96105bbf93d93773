package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// SchemaVersion is the state of festival_details after migrating.
type SchemaVersion struct {
	Version uint
	Applied int
}

// RunMigrations brings the detail store up to the newest embedded schema.
// A dirty schema left by an interrupted run is reported instead of migrated.
func RunMigrations(db *DB) (SchemaVersion, error) {
	m, err := newMigrator(db)
	if err != nil {
		return SchemaVersion{}, err
	}

	before, err := currentVersion(m)
	if err != nil {
		return SchemaVersion{}, err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return SchemaVersion{}, fmt.Errorf("failed to migrate festival_details from version %d: %w", before, err)
	}

	after, err := currentVersion(m)
	if err != nil {
		return SchemaVersion{}, err
	}

	if after != before {
		slog.Info("Detail store migrated", "from", before, "to", after)
	}
	return SchemaVersion{Version: after, Applied: int(after) - int(before)}, nil
}

func newMigrator(db *DB) (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// currentVersion is zero on a fresh database.
func currentVersion(m *migrate.Migrate) (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty, fix it by hand before restarting", version)
	}
	return version, nil
}
