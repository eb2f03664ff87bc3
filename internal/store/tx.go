package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// TransactionFunc is the body of one atomic unit of work.
type TransactionFunc func(tx pgx.Tx) error

// WithTransaction begins a transaction, runs fn, and commits only if fn
// returns nil. Any error rolls the whole unit back, which is what keeps a
// state change and its audit event landing together or not at all.
func (s *Store) WithTransaction(
	ctx context.Context,
	fn TransactionFunc,
) error {
	tx, err := s.connectionPool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	// No-op after a successful commit.
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
