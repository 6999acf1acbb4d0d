// Package repository persists prediction history and training runs.
package repository

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported database types
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

func init() {
	// queries are written with ? placeholders and rebound per driver
	sqlx.BindDriver(SQLite, sqlx.QUESTION)
}

// Open connects to an SQLite file or a PostgreSQL URL and applies pending migrations.
func Open(dbType, path string, logger *zap.Logger) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch dbType {
	case SQLite:
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err = sqlx.Connect(SQLite, path)
		if err == nil {
			// a single writer avoids SQLITE_BUSY under concurrent requests
			db.SetMaxOpenConns(1)
		}
	case Postgres:
		db, err = sqlx.Connect(Postgres, path)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := Migrate(db, dbType, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Database ready", zap.String("type", dbType))
	return db, nil
}

// Migrate runs the embedded migrations for dbType.
func Migrate(db *sqlx.DB, dbType string, logger *zap.Logger) error {
	var (
		driver database.Driver
		err    error
	)
	switch dbType {
	case SQLite:
		driver, err = sqlite.WithInstance(db.DB, &sqlite.Config{})
	case Postgres:
		driver, err = postgres.WithInstance(db.DB, &postgres.Config{})
	default:
		return fmt.Errorf("unsupported database type %q", dbType)
	}
	if err != nil {
		return fmt.Errorf("couldn't get database instance for running migrations: %w", err)
	}

	source, err := iofs.New(migrations, "migrations/"+dbType)
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, dbType, driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Database migration was run successfully", zap.Uint("version", version))
	return nil
}
