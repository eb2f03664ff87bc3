package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds shared runtime configuration for the control plane, sweeper,
// and notifier binaries.
type Config struct {
	Env            string
	HTTPAddr       string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	EventChannel   string
	LockTTL        time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int
	NotifyInterval time.Duration
	NotifyBatch    int
	OfferTTL       time.Duration
}

// Load reads configuration from environment variables with defaults suited to
// local development. DATABASE_URL has no default on purpose; mains fail fast
// without it.
func Load() Config {
	return Config{
		Env:            getEnv("APP_ENV", "dev"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		EventChannel:   getEnv("EVENT_CHANNEL", "dispatch.events"),
		LockTTL:        getEnvDuration("LOCK_TTL", 60*time.Second),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", time.Minute),
		SweepBatchSize: getEnvInt("SWEEP_BATCH_SIZE", 100),
		NotifyInterval: getEnvDuration("NOTIFY_INTERVAL", time.Second),
		NotifyBatch:    getEnvInt("NOTIFY_BATCH_SIZE", 100),
		OfferTTL:       getEnvDuration("OFFER_TTL", 10*time.Minute),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
