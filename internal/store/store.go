package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IMPORTANT:
// All job state transitions MUST go through TransitionJobState.
// Any direct UPDATE of jobs.state outside this gate is a correctness bug.

const DefaultLockTTL = 60 * time.Second

type Store struct {
	connectionPool *pgxpool.Pool
	lockTTL        time.Duration
}

func NewStore(ctx context.Context, databaseURL string, lockTTL time.Duration) (*Store, error) {
	config, err := pgxpool.ParseConfig(databaseURL)

	if err != nil {
		return nil, err
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}

	return &Store{connectionPool: pool, lockTTL: lockTTL}, nil
}

func (s *Store) Close() {
	s.connectionPool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.connectionPool.Ping(ctx)
}
