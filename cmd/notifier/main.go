// Notifier tails the job event log and publishes each event to Redis for
// downstream consumers (worker apps, invoicing, analytics).
//
// Delivery is at-least-once: the cursor only advances after a successful
// publish, so a crash replays the tail rather than dropping it.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/crewpool/dispatch/internal/config"
	"github.com/crewpool/dispatch/internal/notifier"
	"github.com/crewpool/dispatch/internal/observability"
	"github.com/crewpool/dispatch/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := observability.NewLogger("notifier")

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

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal(err)
	}

	n := notifier.New(storeLayer, client, logger, notifier.Options{
		Channel:  cfg.EventChannel,
		Interval: cfg.NotifyInterval,
		Batch:    cfg.NotifyBatch,
	})

	logger.Info("notifier starting", "channel", cfg.EventChannel)

	n.Run(ctx)
}
