package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Job struct {
	ID             uuid.UUID
	State          string
	Title          string
	City           string
	Address        string
	EstimatedHours float64
	BonusCents     int64
	PriceCents     *int64
	AssignedWorker *uuid.UUID
	AssignedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

const jobColumns = `
	id,
	state,
	title,
	city,
	address,
	estimated_hours,
	bonus_cents,
	price_cents,
	assigned_worker,
	assigned_at,
	created_at,
	updated_at,
	deleted_at
`

type CreateJobParams struct {
	ID             uuid.UUID
	Title          string
	City           string
	Address        string
	EstimatedHours float64
	BonusCents     int64
	PriceCents     *int64
}

// CreateJob inserts a job in the pool state and appends the intake event in
// the same transaction.
func (s *Store) CreateJob(
	ctx context.Context,
	actorID uuid.UUID,
	params CreateJobParams,
) error {
	return s.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(
			ctx,
			`
			INSERT INTO jobs (
				id,
				state,
				title,
				city,
				address,
				estimated_hours,
				bonus_cents,
				price_cents
			)
			VALUES ($1, 'pool', $2, $3, $4, $5, $6, $7)
			`,
			params.ID,
			params.Title,
			params.City,
			params.Address,
			params.EstimatedHours,
			params.BonusCents,
			params.PriceCents,
		)
		if err != nil {
			return err
		}

		return AppendEvent(ctx, tx, params.ID, actorID, EventJobCreated, CreatedMetadata{
			Title: params.Title,
			City:  params.City,
		})
	})
}

func (s *Store) GetJobByID(
	ctx context.Context,
	jobID uuid.UUID,
) (*Job, error) {
	row := s.connectionPool.QueryRow(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		jobID,
	)

	return scanJob(row)
}

// GetJobForUpdate reads the authoritative job row inside the transaction.
// Business decisions must use this read, never a value cached from before the
// lock was taken.
func GetJobForUpdate(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
) (*Job, error) {
	row := tx.QueryRow(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		jobID,
	)

	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	return job, nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var job Job

	err := row.Scan(
		&job.ID,
		&job.State,
		&job.Title,
		&job.City,
		&job.Address,
		&job.EstimatedHours,
		&job.BonusCents,
		&job.PriceCents,
		&job.AssignedWorker,
		&job.AssignedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return &job, nil
}

// TransitionJobState is the single authorized mutation path for jobs.state.
// The WHERE clause re-checks the expected state so a drifted row fails with
// ErrStateConflict instead of applying a stale transition.
func TransitionJobState(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
	previousState string,
	nextState string,
) error {
	if err := ValidateJobTransition(previousState, nextState); err != nil {
		return ErrStateConflict
	}

	commandTag, err := tx.Exec(
		ctx,
		`
			UPDATE jobs
			SET state = $2,
					updated_at = now()
			WHERE id = $1
					AND state = $3
					AND deleted_at IS NULL
		`,
		jobID,
		nextState,
		previousState,
	)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() != 1 {
		return ErrStateConflict
	}

	return nil
}

func SetAssignment(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
	workerID uuid.UUID,
) error {
	_, err := tx.Exec(
		ctx,
		`
		UPDATE jobs
		SET assigned_worker = $2,
			assigned_at = now(),
			updated_at = now()
		WHERE id = $1
		`,
		jobID,
		workerID,
	)

	return err
}

func ClearAssignment(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
) error {
	_, err := tx.Exec(
		ctx,
		`
		UPDATE jobs
		SET assigned_worker = NULL,
			assigned_at = NULL,
			updated_at = now()
		WHERE id = $1
		`,
		jobID,
	)

	return err
}

// ListPool returns claimable jobs, oldest first. Soft-deleted rows never
// surface here.
func (s *Store) ListPool(
	ctx context.Context,
	limit int,
) ([]Job, error) {
	rows, err := s.connectionPool.Query(
		ctx,
		`
		SELECT `+jobColumns+`
		FROM jobs
		WHERE state = 'pool'
			AND deleted_at IS NULL
		ORDER BY created_at
		LIMIT $1
		`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectJobs(rows)
}

// CountPool reports the full pool size regardless of any listing limit.
func (s *Store) CountPool(ctx context.Context) (int64, error) {
	var count int64

	err := s.connectionPool.QueryRow(
		ctx,
		`
		SELECT COUNT(*)
		FROM jobs
		WHERE state = 'pool'
			AND deleted_at IS NULL
		`,
	).Scan(&count)

	return count, err
}

func collectJobs(rows pgx.Rows) ([]Job, error) {
	var jobs []Job

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}

	return jobs, rows.Err()
}

// SoftDeleteJob tombstones a job. The row and its audit history remain.
func (s *Store) SoftDeleteJob(
	ctx context.Context,
	jobID uuid.UUID,
) error {
	commandTag, err := s.connectionPool.Exec(
		ctx,
		`
		UPDATE jobs
		SET deleted_at = now(),
			updated_at = now()
		WHERE id = $1
			AND deleted_at IS NULL
		`,
		jobID,
	)
	if err != nil {
		return err
	}

	if commandTag.RowsAffected() == 0 {
		return ErrJobNotFound
	}

	return nil
}

type Assignment struct {
	Job  *Job
	Lead *JobWorker
	Crew []JobWorker
}

// CurrentAssignment reports who holds the job right now, plus any other crew
// members participating in it.
func (s *Store) CurrentAssignment(
	ctx context.Context,
	jobID uuid.UUID,
) (*Assignment, error) {
	job, err := s.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}

	crew, err := s.ListCrew(ctx, jobID)
	if err != nil {
		return nil, err
	}

	assignment := &Assignment{Job: job}
	for i := range crew {
		if crew[i].IsLead && crew[i].Status != WorkerRemoved {
			assignment.Lead = &crew[i]
		} else {
			assignment.Crew = append(assignment.Crew, crew[i])
		}
	}

	return assignment, nil
}
