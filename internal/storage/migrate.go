// internal/storage/migrate.go
package storage

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrations embed.FS

// Migrate applies every pending migration for the DB's dialect.
func (db *DB) Migrate() error {
	var (
		driver database.Driver
		err    error
	)

	switch db.Driver {
	case Postgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{
			MigrationsTable: "doceria_schema_migrations",
		})
	case SQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{
			MigrationsTable: "doceria_schema_migrations",
		})
	default:
		return fmt.Errorf("unsupported driver %q", db.Driver)
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrations, "migrations/"+string(db.Driver))
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(db.Driver), driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	// m.Close is not called: it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}
