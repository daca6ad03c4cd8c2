package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

// Dialect selects the migration set.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) goose() (goose.Dialect, error) {
	switch d {
	case DialectPostgres:
		return goose.DialectPostgres, nil
	case DialectSQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("unsupported migration dialect %q", d)
	}
}

// Migrations returns the embedded migration files of a dialect.
func Migrations(d Dialect) (fs.FS, error) {
	return fs.Sub(migrations, "migrations/"+string(d))
}

// Migrate applies every pending migration for the dialect.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	dialect, err := d.goose()
	if err != nil {
		return err
	}
	fsys, err := Migrations(d)
	if err != nil {
		return fmt.Errorf("Migrate: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("Migrate: NewProvider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("Migrate: Up: %w", err)
	}
	for _, r := range results {
		slog.Info("migration applied",
			slog.String("dialect", string(d)),
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration))
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func MigrateDown(ctx context.Context, db *sql.DB, d Dialect) error {
	dialect, err := d.goose()
	if err != nil {
		return err
	}
	fsys, err := Migrations(d)
	if err != nil {
		return fmt.Errorf("MigrateDown: %w", err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("MigrateDown: NewProvider: %w", err)
	}
	if _, err := provider.Down(ctx); err != nil {
		return fmt.Errorf("MigrateDown: %w", err)
	}
	return nil
}
