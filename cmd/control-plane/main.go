package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/crewpool/dispatch/internal/api"
	"github.com/crewpool/dispatch/internal/arbiter"
	"github.com/crewpool/dispatch/internal/config"
	"github.com/crewpool/dispatch/internal/observability"
	"github.com/crewpool/dispatch/internal/store"
	"github.com/crewpool/dispatch/internal/sweeper"
)

// @title Crew Dispatch API
// @version 1.0
// @description Job pool, claim arbitration, and offer dispatch for field-service crews.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @BasePath /
// @schemes http
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := observability.NewLogger("control-plane")

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

	if err := storeLayer.RunMigrations(ctx); err != nil {
		log.Fatal(err)
	}

	arb := arbiter.New(storeLayer, logger)

	// The control plane carries its own sweeper identity so the manual
	// sweep endpoint works without the standalone sweeper binary.
	sw := sweeper.New(uuid.New(), storeLayer, logger, cfg.SweepInterval, cfg.SweepBatchSize)

	server := api.NewServer(storeLayer, arb, logger, sw.SweepOnce, cfg.OfferTTL)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("control plane listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)
}
