package main

// Run database migrations:
//   go run ./cmd/migrate [up|down|status]

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/RohitLad/resume-markup/internal/shared/config"
	"github.com/RohitLad/resume-markup/internal/shared/storage/db"
	"github.com/RohitLad/resume-markup/internal/shared/telemetry"
)

func main() {
	defer telemetry.Sync()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg := config.Load()
	ctx := context.Background()

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := run(ctx, command, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, sqlDB *sql.DB) error {
	switch command {
	case "up":
		return db.RunMigrations(ctx, sqlDB)
	case "down":
		return db.RollbackLast(ctx, sqlDB)
	case "status":
		version, err := db.Version(ctx, sqlDB)
		if err != nil {
			return err
		}
		telemetry.Info("migrate.status", map[string]any{"version": version})
		return nil
	default:
		return fmt.Errorf("unknown command %q (want up, down or status)", command)
	}
}
