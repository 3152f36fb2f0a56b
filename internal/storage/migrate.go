package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// schemaVersion is the highest migration this build understands.
const schemaVersion = 1

// RunMigrations brings the cache schema to the current version.
//
// Upgrades are destructive: a dirty database or one written by a different
// schema version is dropped wholesale and rebuilt. The cache only mirrors
// server-owned data, so the loss is bounded to stale replicas.
func RunMigrations(dbPath string) error {
	m, err := newMigrator(dbPath)
	if err != nil {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		m.Close()
		return fmt.Errorf("read schema version: %w", err)
	}
	if dirty || version > schemaVersion {
		slog.Warn("Cache schema mismatch, discarding cached data",
			"found_version", version,
			"supported_version", schemaVersion,
			"dirty", dirty)
		if err := m.Drop(); err != nil {
			m.Close()
			return fmt.Errorf("drop cache schema: %w", err)
		}
		m.Close()
		// Drop removes the version table too; a fresh instance recreates it.
		if m, err = newMigrator(dbPath); err != nil {
			return err
		}
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// newMigrator opens its own connection so migrations don't interfere with
// the store's.
func newMigrator(dbPath string) (*migrate.Migrate, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}
