package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tendant/simple-filestore/pkg/filestore/config"
	"github.com/tendant/simple-filestore/pkg/filestore/repo/postgres"
)

// Usage: migrate [up|down|status]. Connection settings come from
// DATABASE_URL and DB_SCHEMA.
func main() {
	flag.Parse()
	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if cfg.DatabaseType != "postgres" {
		slog.Error("Migrations require a postgres DATABASE_URL", "database_type", cfg.DatabaseType)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := config.NewPool(ctx, cfg.DatabaseURL, cfg.DBSchema)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := config.EnsureSchema(ctx, pool, cfg.DBSchema); err != nil {
		slog.Error("Failed to prepare schema", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigration(ctx, pool, command); err != nil {
		slog.Error("Migration failed", "command", command, "error", err)
		os.Exit(1)
	}
	slog.Info("Migration finished", "command", command, "schema", cfg.DBSchema)
}
