package arbiter

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crewpool/dispatch/internal/store"
)

// AdminAssign hands a job directly to a worker, bypassing self-service.
// Upstream may attach a justification (e.g. the skills-mismatch override);
// it is stored verbatim on the event and never gates validity. Outstanding
// offers on the job are closed as part of the same transaction.
func (a *Arbiter) AdminAssign(
	ctx context.Context,
	jobID uuid.UUID,
	workerID uuid.UUID,
	justification string,
	actor Actor,
) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var result *Result

	err := a.withJobLock(ctx, jobID, actor.ID, "admin_assign", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobForUpdate(ctx, tx, jobID)
			if err != nil {
				return err
			}

			if job.State != store.JobPool && job.State != store.JobPendingRequest {
				return store.ErrStateConflict
			}

			if err := store.TransitionJobState(ctx, tx, jobID, job.State, store.JobAssigned); err != nil {
				return err
			}
			if err := store.SetAssignment(ctx, tx, jobID, workerID); err != nil {
				return err
			}
			if err := store.AddJobWorker(ctx, tx, jobID, workerID, true, store.WorkerAssigned); err != nil {
				return err
			}

			siblings, err := store.ExpireSiblingRequests(ctx, tx, jobID, uuid.Nil)
			if err != nil {
				return err
			}

			if err := store.AppendEvent(ctx, tx, jobID, actor.ID, store.EventJobAssigned, store.AssignMetadata{
				WorkerID:       workerID.String(),
				Via:            store.AssignViaAdmin,
				Justification:  justification,
				SiblingsClosed: siblings,
			}); err != nil {
				return err
			}

			result = &Result{JobID: jobID, State: store.JobAssigned}
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	a.logger.Info("job assigned by admin",
		"job_id", jobID.String(),
		"worker_id", workerID.String(),
		"admin_id", actor.ID.String(),
	)

	return result, nil
}

// Cancel retires a job from any non-terminal state. Crew rows are marked
// removed so the participation history stays intact.
func (a *Arbiter) Cancel(
	ctx context.Context,
	jobID uuid.UUID,
	actor Actor,
) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var result *Result

	err := a.withJobLock(ctx, jobID, actor.ID, "cancel", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobForUpdate(ctx, tx, jobID)
			if err != nil {
				return err
			}

			if store.IsTerminalState(job.State) {
				return store.ErrStateConflict
			}

			if err := store.TransitionJobState(ctx, tx, jobID, job.State, store.JobCancelled); err != nil {
				return err
			}
			if err := store.ClearAssignment(ctx, tx, jobID); err != nil {
				return err
			}
			if err := store.SetCrewStatus(ctx, tx, jobID, store.WorkerRemoved, 0); err != nil {
				return err
			}
			if _, err := store.ExpireSiblingRequests(ctx, tx, jobID, uuid.Nil); err != nil {
				return err
			}
			if err := store.AppendEvent(ctx, tx, jobID, actor.ID, store.EventJobCancelled, store.CancelMetadata{
				PreviousState: job.State,
			}); err != nil {
				return err
			}

			result = &Result{JobID: jobID, State: store.JobCancelled}
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	a.logger.Info("job cancelled", "job_id", jobID.String(), "admin_id", actor.ID.String())

	return result, nil
}

// AddWorker puts an extra, non-lead worker on an assigned or active job.
func (a *Arbiter) AddWorker(
	ctx context.Context,
	jobID uuid.UUID,
	workerID uuid.UUID,
	actor Actor,
) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var result *Result

	err := a.withJobLock(ctx, jobID, actor.ID, "add_worker", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobForUpdate(ctx, tx, jobID)
			if err != nil {
				return err
			}

			if job.State != store.JobAssigned && job.State != store.JobActive {
				return store.ErrStateConflict
			}

			crewStatus := store.WorkerAssigned
			if job.State == store.JobActive {
				crewStatus = store.WorkerActive
			}

			if err := store.AddJobWorker(ctx, tx, jobID, workerID, false, crewStatus); err != nil {
				return err
			}
			if err := store.AppendEvent(ctx, tx, jobID, actor.ID, store.EventWorkerAdded, store.CrewMetadata{
				WorkerID: workerID.String(),
			}); err != nil {
				return err
			}

			result = &Result{JobID: jobID, State: job.State}
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	a.logger.Info("worker added to job", "job_id", jobID.String(), "worker_id", workerID.String())

	return result, nil
}

// RemoveWorker takes a worker off a job. Removing a non-lead worker leaves
// the job state alone; removing the lead sends the job back to the pool, the
// same fallback as a worker-initiated return.
func (a *Arbiter) RemoveWorker(
	ctx context.Context,
	jobID uuid.UUID,
	workerID uuid.UUID,
	actor Actor,
) (*Result, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var result *Result

	err := a.withJobLock(ctx, jobID, actor.ID, "remove_worker", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobForUpdate(ctx, tx, jobID)
			if err != nil {
				return err
			}

			if store.IsTerminalState(job.State) {
				return store.ErrStateConflict
			}

			held := timeHeld(job)

			wasLead, err := store.MarkWorkerRemoved(ctx, tx, jobID, workerID, held.Hours())
			if err != nil {
				return err
			}

			resulting := job.State
			if wasLead && (job.State == store.JobAssigned || job.State == store.JobActive) {
				if err := store.TransitionJobState(ctx, tx, jobID, job.State, store.JobPool); err != nil {
					return err
				}
				if err := store.ClearAssignment(ctx, tx, jobID); err != nil {
					return err
				}
				resulting = store.JobPool
			}

			if err := store.AppendEvent(ctx, tx, jobID, actor.ID, store.EventWorkerRemoved, store.CrewMetadata{
				WorkerID:       workerID.String(),
				WasLead:        wasLead,
				ResultingState: resulting,
			}); err != nil {
				return err
			}

			result = &Result{JobID: jobID, State: resulting}
			return nil
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	a.logger.Info("worker removed from job",
		"job_id", jobID.String(),
		"worker_id", workerID.String(),
		"admin_id", actor.ID.String(),
	)

	return result, nil
}
