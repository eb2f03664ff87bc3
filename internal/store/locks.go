package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LockHandle identifies a held job lock. Release requires the handle so one
// actor can never drop a lock another actor has since taken over.
type LockHandle struct {
	JobID      uuid.UUID
	Holder     uuid.UUID
	Reason     string
	AcquiredAt time.Time
}

// AcquireLock takes the per-job mutation lock, failing fast with ErrLockHeld
// if a live lock exists. A lock older than the store's TTL is treated as
// abandoned and taken over atomically in the same statement.
func (s *Store) AcquireLock(
	ctx context.Context,
	jobID uuid.UUID,
	holder uuid.UUID,
	reason string,
) (*LockHandle, error) {
	var acquiredAt time.Time

	err := s.connectionPool.QueryRow(
		ctx,
		`
		INSERT INTO job_locks (job_id, holder, reason, acquired_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (job_id) DO UPDATE
		SET holder = EXCLUDED.holder,
			reason = EXCLUDED.reason,
			acquired_at = now()
		WHERE job_locks.acquired_at < now() - $4::interval
		RETURNING acquired_at
		`,
		jobID,
		holder,
		reason,
		s.lockTTL,
	).Scan(&acquiredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLockHeld
		}

		return nil, err
	}

	return &LockHandle{
		JobID:      jobID,
		Holder:     holder,
		Reason:     reason,
		AcquiredAt: acquiredAt,
	}, nil
}

// ReleaseLock drops the lock. Releasing a lock that expired and was taken
// over by someone else is a no-op.
func (s *Store) ReleaseLock(
	ctx context.Context,
	handle *LockHandle,
) error {
	_, err := s.connectionPool.Exec(
		ctx,
		`
		DELETE FROM job_locks
		WHERE job_id = $1
			AND holder = $2
		`,
		handle.JobID,
		handle.Holder,
	)

	return err
}

func (s *Store) IsLocked(
	ctx context.Context,
	jobID uuid.UUID,
) (bool, error) {
	var held bool

	err := s.connectionPool.QueryRow(
		ctx,
		`
		SELECT EXISTS (
			SELECT 1
			FROM job_locks
			WHERE job_id = $1
				AND acquired_at >= now() - $2::interval
		)
		`,
		jobID,
		s.lockTTL,
	).Scan(&held)

	return held, err
}

// ExpiredLocks lists locks past the TTL for the sweeper to reclaim.
func (s *Store) ExpiredLocks(
	ctx context.Context,
	limit int,
) ([]LockHandle, error) {
	rows, err := s.connectionPool.Query(
		ctx,
		`
		SELECT job_id, holder, reason, acquired_at
		FROM job_locks
		WHERE acquired_at < now() - $1::interval
		ORDER BY acquired_at
		LIMIT $2
		`,
		s.lockTTL,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locks []LockHandle
	for rows.Next() {
		var handle LockHandle
		if err := rows.Scan(
			&handle.JobID,
			&handle.Holder,
			&handle.Reason,
			&handle.AcquiredAt,
		); err != nil {
			return nil, err
		}
		locks = append(locks, handle)
	}

	return locks, rows.Err()
}

// ReclaimLock force-releases an abandoned lock and records a lock_reclaimed
// event in the same transaction. The conditional DELETE makes a second sweep
// over the same lock a no-op, so no duplicate event is written.
func (s *Store) ReclaimLock(
	ctx context.Context,
	actorID uuid.UUID,
	handle LockHandle,
) (bool, error) {
	reclaimed := false

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		commandTag, err := tx.Exec(
			ctx,
			`
			DELETE FROM job_locks
			WHERE job_id = $1
				AND holder = $2
				AND acquired_at < now() - $3::interval
			`,
			handle.JobID,
			handle.Holder,
			s.lockTTL,
		)
		if err != nil {
			return err
		}

		if commandTag.RowsAffected() == 0 {
			return nil
		}

		reclaimed = true

		return AppendEvent(ctx, tx, handle.JobID, actorID, EventLockReclaimed, ReclaimMetadata{
			Holder:      handle.Holder.String(),
			Reason:      handle.Reason,
			HeldSeconds: time.Since(handle.AcquiredAt).Seconds(),
		})
	})

	return reclaimed, err
}
