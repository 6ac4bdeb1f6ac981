// Package migrations embeds the schema for each supported database dialect.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sqlite/*.sql
var sqliteFiles embed.FS

//go:embed postgres/*.sql
var postgresFiles embed.FS

// Dialects with embedded migrations.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// ErrUnsupportedDialect is returned for a dialect without embedded migrations.
var ErrUnsupportedDialect = errors.New("unsupported migration dialect")

// New builds a migrator for db. Closing the returned Migrate also closes db.
func New(db *sql.DB, dialect string) (*migrate.Migrate, error) {
	var (
		files  embed.FS
		dir    string
		driver database.Driver
		err    error
	)

	switch dialect {
	case DialectSQLite:
		files, dir = sqliteFiles, "sqlite"
		driver, err = sqlite.WithInstance(db, &sqlite.Config{})
	case DialectPostgres:
		files, dir = postgresFiles, "postgres"
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(files, dir)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

// Up applies every pending migration. The migrator is not closed so db stays
// usable by the caller.
func Up(db *sql.DB, dialect string) error {
	m, err := New(db, dialect)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}
