package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/fsdh/datahub-samples/internal/config"
	"github.com/fsdh/datahub-samples/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	args := os.Args[1:]
	if len(args) == 0 {
		return fmt.Errorf("usage: migrate [up|down|status|version]")
	}
	command := args[0]

	driverName, dialect, dsn := "postgres", "postgres", cfg.Database.ConnectionString()
	if cfg.Database.Driver == "sqlite" {
		driverName, dialect, dsn = "sqlite3", "sqlite3", cfg.Database.Path
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrations.Run(db, dialect, command); err != nil {
		return err
	}

	switch command {
	case "up":
		fmt.Println("Migrations applied successfully")
	case "down":
		fmt.Println("Migration rolled back successfully")
	}
	return nil
}
