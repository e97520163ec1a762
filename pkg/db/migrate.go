package db

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"giggen/pkg/config"
)

// Migrate applies pending migrations over DIRECT_URL and returns the schema
// version the database ends up at. A dirty schema is an error: it needs a
// manual `migrate force` before the booking tables can be trusted.
func Migrate(migrationsPath string, cfg config.Config) (uint, error) {
	m, err := migrate.New(migrationsPath, migrationConnString(cfg))
	if err != nil {
		return 0, fmt.Errorf("open migrations %s: %w", migrationsPath, err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}
	return schemaVersion(m)
}

type versioner interface {
	Version() (uint, bool, error)
}

func schemaVersion(m versioner) (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("schema is dirty at version %d", version)
	}
	return version, nil
}
