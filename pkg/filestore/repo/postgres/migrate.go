package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const migrationsDir = "migrations"

// Migrate applies the embedded SQL migrations via goose.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return RunMigration(ctx, pool, "up")
}

// RunMigration runs one goose command (up, down or status) against the
// embedded migrations.
func RunMigration(ctx context.Context, pool *pgxpool.Pool, command string) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrationFiles)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	var run func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error
	switch command {
	case "up":
		run = goose.UpContext
	case "down":
		run = goose.DownContext
	case "status":
		run = goose.StatusContext
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
	return run(ctx, db, migrationsDir)
}
