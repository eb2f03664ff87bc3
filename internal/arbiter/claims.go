package arbiter

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crewpool/dispatch/internal/store"
	"github.com/crewpool/dispatch/internal/telemetry"
)

// Claim is a worker's self-service grab of a pooled job. Exactly one of any
// set of concurrent claimants wins; the rest get ErrAlreadyClaimed, which is
// deliberately distinct from ErrBusy so callers can tell "job is gone" from
// "try again in a moment".
func (a *Arbiter) Claim(
	ctx context.Context,
	jobID uuid.UUID,
	workerID uuid.UUID,
) (*Result, error) {
	var result *Result

	err := a.withJobLock(ctx, jobID, workerID, "claim", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobForUpdate(ctx, tx, jobID)
			if err != nil {
				return err
			}

			if job.State != store.JobPool {
				return store.ErrStateConflict
			}

			if err := store.TransitionJobState(ctx, tx, jobID, store.JobPool, store.JobAssigned); err != nil {
				return err
			}
			if err := store.SetAssignment(ctx, tx, jobID, workerID); err != nil {
				return err
			}
			if err := store.AddJobWorker(ctx, tx, jobID, workerID, true, store.WorkerAssigned); err != nil {
				return err
			}
			if err := store.AppendEvent(ctx, tx, jobID, workerID, store.EventJobClaimed, store.ClaimMetadata{
				WorkerID: workerID.String(),
			}); err != nil {
				return err
			}

			result = &Result{JobID: jobID, State: store.JobAssigned}
			return nil
		})
	})
	if err != nil {
		// A lost race on claim means the job was taken, not that the
		// caller should retry.
		if errors.Is(err, store.ErrStateConflict) {
			telemetry.ClaimsTotal.WithLabelValues("already_claimed").Inc()
			return nil, ErrAlreadyClaimed
		}
		if errors.Is(err, ErrBusy) {
			telemetry.ClaimsTotal.WithLabelValues("busy").Inc()
			return nil, err
		}
		return nil, translate(err)
	}

	telemetry.ClaimsTotal.WithLabelValues("ok").Inc()
	a.logger.Info("job claimed", "job_id", jobID.String(), "worker_id", workerID.String())

	return result, nil
}

// ReturnToPool releases a held job back to the pool with a recorded reason.
// Only the current lead worker may return a job.
func (a *Arbiter) ReturnToPool(
	ctx context.Context,
	jobID uuid.UUID,
	workerID uuid.UUID,
	reason string,
	reasonText string,
) (*Result, error) {
	if !ValidReturnReason(reason) {
		return nil, ErrInvalidReason
	}

	var result *Result

	err := a.withJobLock(ctx, jobID, workerID, "return", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobForUpdate(ctx, tx, jobID)
			if err != nil {
				return err
			}

			if job.State != store.JobAssigned && job.State != store.JobActive {
				return store.ErrStateConflict
			}
			if job.AssignedWorker == nil || *job.AssignedWorker != workerID {
				return ErrForbidden
			}

			held := timeHeld(job)

			if err := store.TransitionJobState(ctx, tx, jobID, job.State, store.JobPool); err != nil {
				return err
			}
			if err := store.ClearAssignment(ctx, tx, jobID); err != nil {
				return err
			}
			if _, err := store.MarkWorkerRemoved(ctx, tx, jobID, workerID, held.Hours()); err != nil {
				return err
			}
			if err := store.AppendEvent(ctx, tx, jobID, workerID, store.EventJobReturned, store.ReturnMetadata{
				Reason:          reason,
				ReasonText:      reasonText,
				TimeHeldMinutes: heldMinutes(held),
			}); err != nil {
				return err
			}

			result = &Result{JobID: jobID, State: store.JobPool}
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	telemetry.ReturnsTotal.WithLabelValues(reason).Inc()
	a.logger.Info("job returned to pool",
		"job_id", jobID.String(),
		"worker_id", workerID.String(),
		"reason", reason,
	)

	return result, nil
}

// Start marks the lead worker as on site: assigned -> active.
func (a *Arbiter) Start(
	ctx context.Context,
	jobID uuid.UUID,
	workerID uuid.UUID,
) (*Result, error) {
	var result *Result

	err := a.withJobLock(ctx, jobID, workerID, "start", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobForUpdate(ctx, tx, jobID)
			if err != nil {
				return err
			}

			if job.State != store.JobAssigned {
				return store.ErrStateConflict
			}
			if job.AssignedWorker == nil || *job.AssignedWorker != workerID {
				return ErrForbidden
			}

			if err := store.TransitionJobState(ctx, tx, jobID, store.JobAssigned, store.JobActive); err != nil {
				return err
			}
			if err := store.SetCrewStatus(ctx, tx, jobID, store.WorkerActive, 0); err != nil {
				return err
			}
			if err := store.AppendEvent(ctx, tx, jobID, workerID, store.EventJobStarted, nil); err != nil {
				return err
			}

			result = &Result{JobID: jobID, State: store.JobActive}
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	a.logger.Info("job started", "job_id", jobID.String(), "worker_id", workerID.String())

	return result, nil
}

// Complete finishes an active job. Admins may complete on a worker's behalf.
// Downstream consumers (invoicing and the like) react to the emitted event;
// their failures cannot undo this transition.
func (a *Arbiter) Complete(
	ctx context.Context,
	jobID uuid.UUID,
	actor Actor,
) (*Result, error) {
	var result *Result

	err := a.withJobLock(ctx, jobID, actor.ID, "complete", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobForUpdate(ctx, tx, jobID)
			if err != nil {
				return err
			}

			if job.State != store.JobActive {
				return store.ErrStateConflict
			}
			if !actor.IsAdmin() && (job.AssignedWorker == nil || *job.AssignedWorker != actor.ID) {
				return ErrForbidden
			}

			held := timeHeld(job)

			if err := store.TransitionJobState(ctx, tx, jobID, store.JobActive, store.JobCompleted); err != nil {
				return err
			}
			if err := store.SetCrewStatus(ctx, tx, jobID, store.WorkerCompleted, held.Hours()); err != nil {
				return err
			}
			if err := store.AppendEvent(ctx, tx, jobID, actor.ID, store.EventJobCompleted, store.CompleteMetadata{
				TimeHeldMinutes: heldMinutes(held),
			}); err != nil {
				return err
			}

			result = &Result{JobID: jobID, State: store.JobCompleted}
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	a.logger.Info("job completed", "job_id", jobID.String(), "actor_id", actor.ID.String())

	return result, nil
}

func timeHeld(job *store.Job) time.Duration {
	if job.AssignedAt == nil {
		return 0
	}
	return time.Since(*job.AssignedAt)
}

func heldMinutes(held time.Duration) int {
	return int(math.Round(held.Minutes()))
}
