package main

// Apply the decision history migrations:
//   go run ./cmd/migrate
//   go run ./cmd/migrate -list

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"invoice-console/internal/shared/config"
	"invoice-console/internal/shared/storage/db"
	"invoice-console/internal/shared/telemetry"
)

func main() {
	list := flag.Bool("list", false, "print the embedded migrations and exit")
	timeout := flag.Duration("timeout", time.Minute, "overall deadline for connecting and migrating")
	flag.Parse()

	if *list {
		names, err := db.MigrationNames()
		if err != nil {
			telemetry.Error("migrate.list_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	os.Exit(migrate(config.Load(), *timeout))
}

func migrate(cfg config.Config, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		return 1
	}
	defer sqlDB.Close()

	start := time.Now()
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"error": err.Error()})
		return 1
	}
	telemetry.Info("migrate.done", map[string]any{"duration_ms": time.Since(start).Milliseconds()})
	return 0
}
