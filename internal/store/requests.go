package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestRejected = "rejected"
	RequestExpired  = "expired"
)

// JobRequest is a time-bounded offer of a job to a specific worker.
type JobRequest struct {
	ID          uuid.UUID
	JobID       uuid.UUID
	WorkerID    uuid.UUID
	Status      string
	Message     string
	ExpiresAt   time.Time
	RequestedAt time.Time
	RespondedAt *time.Time
}

// Expired applies the read-time expiry check: an offer past its deadline is
// expired for every reader, whether or not the sweeper has updated the row.
func (r *JobRequest) Expired(now time.Time) bool {
	return r.Status == RequestExpired ||
		(r.Status == RequestPending && !now.Before(r.ExpiresAt))
}

const requestColumns = `
	id,
	job_id,
	worker_id,
	status,
	message,
	expires_at,
	requested_at,
	responded_at
`

func CreateRequest(
	ctx context.Context,
	tx pgx.Tx,
	requestID uuid.UUID,
	jobID uuid.UUID,
	workerID uuid.UUID,
	message string,
	ttl time.Duration,
) (*JobRequest, error) {
	// Settle any stale pending row for this pair first so the partial
	// unique index does not block a legitimate re-offer.
	if _, err := tx.Exec(
		ctx,
		`
		UPDATE job_requests
		SET status = 'expired',
			responded_at = now()
		WHERE job_id = $1
			AND worker_id = $2
			AND status = 'pending'
			AND expires_at <= now()
		`,
		jobID,
		workerID,
	); err != nil {
		return nil, err
	}

	var duplicate bool
	if err := tx.QueryRow(
		ctx,
		`
		SELECT EXISTS (
			SELECT 1
			FROM job_requests
			WHERE job_id = $1
				AND worker_id = $2
				AND status = 'pending'
				AND expires_at > now()
		)
		`,
		jobID,
		workerID,
	).Scan(&duplicate); err != nil {
		return nil, err
	}
	if duplicate {
		return nil, ErrDuplicateOffer
	}

	row := tx.QueryRow(
		ctx,
		`
		INSERT INTO job_requests (id, job_id, worker_id, status, message, expires_at)
		VALUES ($1, $2, $3, 'pending', $4, now() + $5::interval)
		RETURNING `+requestColumns,
		requestID,
		jobID,
		workerID,
		message,
		ttl,
	)

	return scanRequest(row)
}

func (s *Store) GetRequestByID(
	ctx context.Context,
	requestID uuid.UUID,
) (*JobRequest, error) {
	row := s.connectionPool.QueryRow(
		ctx,
		`SELECT `+requestColumns+` FROM job_requests WHERE id = $1`,
		requestID,
	)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return request, nil
}

func GetRequestForUpdate(
	ctx context.Context,
	tx pgx.Tx,
	requestID uuid.UUID,
) (*JobRequest, error) {
	row := tx.QueryRow(
		ctx,
		`SELECT `+requestColumns+` FROM job_requests WHERE id = $1 FOR UPDATE`,
		requestID,
	)

	request, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}

	return request, nil
}

// MarkRequestStatus conditionally moves a request out of pending. Zero rows
// affected means another actor got there first.
func MarkRequestStatus(
	ctx context.Context,
	tx pgx.Tx,
	requestID uuid.UUID,
	nextStatus string,
) error {
	commandTag, err := tx.Exec(
		ctx,
		`
		UPDATE job_requests
		SET status = $2,
			responded_at = now()
		WHERE id = $1
			AND status = 'pending'
		`,
		requestID,
		nextStatus,
	)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() != 1 {
		return ErrStateConflict
	}

	return nil
}

// ExpireSiblingRequests expires every other pending offer on the job. Part of
// the accepting operation's atomic unit, so no per-sibling event is written.
func ExpireSiblingRequests(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
	exceptRequestID uuid.UUID,
) (int64, error) {
	commandTag, err := tx.Exec(
		ctx,
		`
		UPDATE job_requests
		SET status = 'expired',
			responded_at = now()
		WHERE job_id = $1
			AND id <> $2
			AND status = 'pending'
		`,
		jobID,
		exceptRequestID,
	)
	if err != nil {
		return 0, err
	}

	return commandTag.RowsAffected(), nil
}

func CountPendingRequests(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
) (int, error) {
	var count int

	err := tx.QueryRow(
		ctx,
		`
		SELECT COUNT(*)
		FROM job_requests
		WHERE job_id = $1
			AND status = 'pending'
			AND expires_at > now()
		`,
		jobID,
	).Scan(&count)

	return count, err
}

// ListPendingOffersFor returns the worker's open offers. Offers past their
// deadline are filtered out here even if the sweeper has not touched them yet.
func (s *Store) ListPendingOffersFor(
	ctx context.Context,
	workerID uuid.UUID,
) ([]JobRequest, error) {
	rows, err := s.connectionPool.Query(
		ctx,
		`
		SELECT `+requestColumns+`
		FROM job_requests
		WHERE worker_id = $1
			AND status = 'pending'
			AND expires_at > now()
		ORDER BY requested_at
		`,
		workerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRequests(rows)
}

// StalePendingRequests lists offers past their deadline for the sweeper.
func (s *Store) StalePendingRequests(
	ctx context.Context,
	limit int,
) ([]JobRequest, error) {
	rows, err := s.connectionPool.Query(
		ctx,
		`
		SELECT `+requestColumns+`
		FROM job_requests
		WHERE status = 'pending'
			AND expires_at <= now()
		ORDER BY expires_at
		LIMIT $1
		`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]JobRequest, error) {
	var requests []JobRequest

	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *request)
	}

	return requests, rows.Err()
}

func scanRequest(row pgx.Row) (*JobRequest, error) {
	var request JobRequest

	err := row.Scan(
		&request.ID,
		&request.JobID,
		&request.WorkerID,
		&request.Status,
		&request.Message,
		&request.ExpiresAt,
		&request.RequestedAt,
		&request.RespondedAt,
	)
	if err != nil {
		return nil, err
	}

	return &request, nil
}
