// Package migrations embeds the goose migrations of the sample database.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS holds one directory of migrations per dialect. sqlite has no SERIAL,
// so its DDL differs from postgres.
//
//go:embed postgres/*.sql sqlite3/*.sql
var FS embed.FS

var dirs = map[string]string{
	"postgres": "postgres",
	"sqlite3":  "sqlite3",
	"sqlite":   "sqlite3",
}

// Dir returns the embedded migration directory of a goose dialect
func Dir(dialect string) (string, error) {
	dir, ok := dirs[dialect]
	if !ok {
		return "", fmt.Errorf("unsupported dialect: %s", dialect)
	}
	return dir, nil
}

// Run executes a goose command against db using the embedded migrations.
// Supported commands are up, down, status and version.
func Run(db *sql.DB, dialect, command string) error {
	dir, err := Dir(dialect)
	if err != nil {
		return err
	}

	goose.SetBaseFS(FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	switch command {
	case "up":
		if err := goose.Up(db, dir); err != nil {
			return fmt.Errorf("failed to run up migrations: %w", err)
		}
	case "down":
		if err := goose.Down(db, dir); err != nil {
			return fmt.Errorf("failed to run down migration: %w", err)
		}
	case "status":
		if err := goose.Status(db, dir); err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
	case "version":
		if err := goose.Version(db, dir); err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
	return nil
}
