// Sweeper is a long-running background process that expires offers past
// their deadline and reclaims job locks abandoned by crashed callers.
//
// It is safe to run more than one: every sweep action is guarded by the
// same per-job lock the interactive paths use, and re-expiring an already
// settled offer is a no-op.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/crewpool/dispatch/internal/config"
	"github.com/crewpool/dispatch/internal/observability"
	"github.com/crewpool/dispatch/internal/store"
	"github.com/crewpool/dispatch/internal/sweeper"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := observability.NewLogger("sweeper")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	storeLayer, err := store.NewStore(ctx, cfg.DatabaseURL, cfg.LockTTL)
	if err != nil {
		log.Fatal(err)
	}
	defer storeLayer.Close()

	sweeperID := uuid.New()

	s := sweeper.New(
		sweeperID,
		storeLayer,
		logger,
		cfg.SweepInterval,
		cfg.SweepBatchSize,
	)

	logger.Info("sweeper starting", "sweeper_id", sweeperID.String())

	s.Run(ctx)
}
