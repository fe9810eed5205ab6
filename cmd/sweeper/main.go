// Command sweeper runs one payment-expiration sweep and exits. It is meant
// to be scheduled externally, for example by a Kubernetes CronJob.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"staybook/internal/app/lifecycle"
	"staybook/internal/app/sweeper"
	"staybook/internal/infra/config"
	"staybook/internal/infra/db/postgres"
	"staybook/internal/infra/obs"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 1 for setup failures, 2 when the sweep
// itself reported errors.
func run() int {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV")).Error("invalid configuration", "error", err)
		return 1
	}
	logger := obs.NewLogger(cfg.Env).With("component", "sweeper")
	if cfg.StoreDriver != config.StorePostgres {
		logger.Error("sweeper needs a shared store", "store", cfg.StoreDriver)
		return 1
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres connect failed", "error", err)
		return 1
	}
	defer db.Close()

	engine, err := lifecycle.NewEngine(postgres.Factory{DB: db}, postgres.NewPropertyRepository(db), cfg.Lifecycle, lifecycle.WithLogger(logger))
	if err != nil {
		logger.Error("engine setup failed", "error", err)
		return 1
	}

	expired, err := sweeper.New(engine, cfg.SweepBatchSize, logger).SweepExpiredPayments(ctx)
	if err != nil {
		logger.Error("sweep finished with errors", "expired", expired, "error", err)
		return 2
	}
	logger.Info("sweep finished", "expired", expired)
	return 0
}
