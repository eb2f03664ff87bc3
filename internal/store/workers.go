package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	WorkerAssigned  = "assigned"
	WorkerActive    = "active"
	WorkerCompleted = "completed"
	WorkerRemoved   = "removed"
)

// JobWorker is a worker's participation record on a job. Rows are never
// hard-deleted; removal flips the status so history survives.
type JobWorker struct {
	ID          int64
	JobID       uuid.UUID
	WorkerID    uuid.UUID
	IsLead      bool
	Status      string
	HoursWorked float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func AddJobWorker(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
	workerID uuid.UUID,
	isLead bool,
	status string,
) error {
	var exists bool
	if err := tx.QueryRow(
		ctx,
		`
		SELECT EXISTS (
			SELECT 1
			FROM job_workers
			WHERE job_id = $1
				AND worker_id = $2
				AND status <> 'removed'
		)
		`,
		jobID,
		workerID,
	).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrWorkerOnJob
	}

	_, err := tx.Exec(
		ctx,
		`
		INSERT INTO job_workers (job_id, worker_id, is_lead, status)
		VALUES ($1, $2, $3, $4)
		`,
		jobID,
		workerID,
		isLead,
		status,
	)

	return err
}

// MarkWorkerRemoved flips the non-removed participation row for the worker
// and reports whether it was the lead row.
func MarkWorkerRemoved(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
	workerID uuid.UUID,
	hoursWorked float64,
) (bool, error) {
	var wasLead bool

	err := tx.QueryRow(
		ctx,
		`
		UPDATE job_workers
		SET status = 'removed',
			hours_worked = hours_worked + $3,
			updated_at = now()
		WHERE job_id = $1
			AND worker_id = $2
			AND status <> 'removed'
		RETURNING is_lead
		`,
		jobID,
		workerID,
		hoursWorked,
	).Scan(&wasLead)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrWorkerNotFound
		}
		return false, err
	}

	return wasLead, nil
}

// SetCrewStatus moves every non-removed participation row on the job to the
// given status. Used when the job itself starts, completes, or is cancelled.
func SetCrewStatus(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
	status string,
	addHours float64,
) error {
	_, err := tx.Exec(
		ctx,
		`
		UPDATE job_workers
		SET status = $2,
			hours_worked = hours_worked + $3,
			updated_at = now()
		WHERE job_id = $1
			AND status <> 'removed'
		`,
		jobID,
		status,
		addHours,
	)

	return err
}

func (s *Store) ListCrew(
	ctx context.Context,
	jobID uuid.UUID,
) ([]JobWorker, error) {
	rows, err := s.connectionPool.Query(
		ctx,
		`
		SELECT id, job_id, worker_id, is_lead, status, hours_worked, created_at, updated_at
		FROM job_workers
		WHERE job_id = $1
		ORDER BY created_at
		`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var crew []JobWorker
	for rows.Next() {
		worker, err := scanJobWorker(rows)
		if err != nil {
			return nil, err
		}
		crew = append(crew, *worker)
	}

	return crew, rows.Err()
}

func scanJobWorker(row pgx.Row) (*JobWorker, error) {
	var worker JobWorker

	err := row.Scan(
		&worker.ID,
		&worker.JobID,
		&worker.WorkerID,
		&worker.IsLead,
		&worker.Status,
		&worker.HoursWorked,
		&worker.CreatedAt,
		&worker.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &worker, nil
}
