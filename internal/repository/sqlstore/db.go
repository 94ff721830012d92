// Package sqlstore implements the repositories on sqlx over PostgreSQL (pgx)
// or SQLite (modernc).
package sqlstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"digidoc/db/migrations"
	"digidoc/internal/config"
)

// Driver names registered with database/sql.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// NewDB opens a connection pool for the configured driver.
func NewDB(cfg *config.DBConfig) (*sqlx.DB, error) {
	if cfg.Driver == "sqlite" {
		return openSQLite(cfg.Path)
	}
	db, err := sqlx.Connect(DriverPostgres, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpen)
	db.SetMaxIdleConns(cfg.MaxIdle)
	return db, nil
}

// OpenSQLiteMemory opens a private in-memory database with the schema applied.
func OpenSQLiteMemory() (*sqlx.DB, error) {
	db, err := openSQLite(":memory:")
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openSQLite(path string) (*sqlx.DB, error) {
	dsn := path
	if !strings.Contains(dsn, "_time_format=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		// Sortable timestamps so claim queries can compare them as text.
		dsn += sep + "_time_format=sqlite"
	}
	db, err := sqlx.Connect(DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}
	return db, nil
}

// NewMigrator returns a migrate instance bound to db and the embedded
// migrations. The caller must not Close it, as that would close db.
func NewMigrator(db *sqlx.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("sqlstore.NewMigrator: %w", err)
	}

	var (
		drv  database.Driver
		name string
	)
	switch db.DriverName() {
	case DriverSQLite:
		name = "sqlite"
		drv, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	default:
		name = "pgx5"
		drv, err = migratepgx.WithInstance(db.DB, &migratepgx.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("sqlstore.NewMigrator: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, name, drv)
	if err != nil {
		return nil, fmt.Errorf("sqlstore.NewMigrator: %w", err)
	}
	return m, nil
}

// Migrate applies every pending migration.
func Migrate(db *sqlx.DB) error {
	m, err := NewMigrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore.Migrate: %w", err)
	}
	return nil
}

// isSQLite reports whether db speaks the sqlite dialect.
func isSQLite(db *sqlx.DB) bool {
	return db.DriverName() == DriverSQLite
}
