// Package worker parses worker command flags and runs the contract sweeps.
package worker

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/atelierhq/atelier/internal/contract/service"
	entrypoint "github.com/atelierhq/atelier/internal/platform/cmd"
	"github.com/atelierhq/atelier/internal/storage/sqlite"
)

// Config holds worker command configuration.
type Config struct {
	DBPath        string        `env:"ATELIER_WORKER_DB_PATH" envDefault:"data/atelier.db"`
	SweepInterval time.Duration `env:"ATELIER_WORKER_SWEEP_INTERVAL" envDefault:"1m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Interval between sweep passes")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the sweep loop until the context is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("close database: %v", err)
			}
		}()

		svc := service.New(db)
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()

		log.Printf("sweeping every %s", cfg.SweepInterval)
		for {
			sweep(ctx, svc)
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})
}

// sweep runs one pass of both sweeps. Failures are logged and retried on
// the next tick rather than stopping the loop.
func sweep(ctx context.Context, svc *service.Service) {
	now := time.Now().UTC()
	if result, err := svc.SweepExpiredUploads(ctx, now); err != nil {
		log.Printf("sweep expired uploads: %v", err)
	} else if result.Processed > 0 || result.Skipped > 0 {
		log.Printf("uploads: accepted %d, skipped %d", result.Processed, result.Skipped)
	}
	if result, err := svc.SweepExpiredContracts(ctx, now); err != nil {
		log.Printf("sweep expired contracts: %v", err)
	} else if result.Processed > 0 || result.Skipped > 0 {
		log.Printf("contracts: expired %d, skipped %d", result.Processed, result.Skipped)
	}
}
