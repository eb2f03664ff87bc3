package arbiter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crewpool/dispatch/internal/store"
	"github.com/crewpool/dispatch/internal/telemetry"
)

// CreateOffer extends a time-bounded offer of the job to a specific worker.
// Admin only. A pooled job moves to pending_request; a job already carrying
// offers stays there and just gains one more.
func (a *Arbiter) CreateOffer(
	ctx context.Context,
	jobID uuid.UUID,
	workerID uuid.UUID,
	message string,
	ttl time.Duration,
	actor Actor,
) (*store.JobRequest, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}

	var request *store.JobRequest

	err := a.withJobLock(ctx, jobID, actor.ID, "create_offer", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			job, err := store.GetJobForUpdate(ctx, tx, jobID)
			if err != nil {
				return err
			}

			if job.State != store.JobPool && job.State != store.JobPendingRequest {
				return store.ErrStateConflict
			}

			request, err = store.CreateRequest(ctx, tx, uuid.New(), jobID, workerID, message, ttl)
			if err != nil {
				return err
			}

			if job.State == store.JobPool {
				if err := store.TransitionJobState(ctx, tx, jobID, store.JobPool, store.JobPendingRequest); err != nil {
					return err
				}
			}

			return store.AppendEvent(ctx, tx, jobID, actor.ID, store.EventOfferCreated, store.OfferMetadata{
				RequestID: request.ID.String(),
				WorkerID:  workerID.String(),
				Message:   message,
				ExpiresAt: request.ExpiresAt,
			})
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	telemetry.OffersCreated.Inc()
	a.logger.Info("offer created",
		"job_id", jobID.String(),
		"worker_id", workerID.String(),
		"request_id", request.ID.String(),
	)

	return request, nil
}

// Respond settles a pending offer. Accepting assigns the job to the worker
// and expires every sibling offer in the same transaction; no partial
// acceptance is ever observable. Rejecting leaves the job available, and if
// no live offers remain the job drops back to the open pool.
//
// An offer past its deadline is treated as already expired even if the
// sweeper has not updated the row yet.
func (a *Arbiter) Respond(
	ctx context.Context,
	requestID uuid.UUID,
	accept bool,
	actor Actor,
) (*Result, error) {
	// Unlocked read just to learn which job to lock; the locked re-read
	// below is authoritative.
	request, err := a.store.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, translate(err)
	}
	if request.WorkerID != actor.ID {
		return nil, ErrForbidden
	}

	var result *Result

	err = a.withJobLock(ctx, request.JobID, actor.ID, "respond", func() error {
		return a.store.WithTransaction(ctx, func(tx pgx.Tx) error {
			request, err := store.GetRequestForUpdate(ctx, tx, requestID)
			if err != nil {
				return err
			}

			if request.Status != store.RequestPending || request.Expired(time.Now()) {
				return store.ErrStateConflict
			}

			if accept {
				result, err = a.acceptOffer(ctx, tx, request, actor)
			} else {
				result, err = a.rejectOffer(ctx, tx, request, actor)
			}
			return err
		})
	})
	if err != nil {
		return nil, translate(err)
	}

	if accept {
		telemetry.OffersResponded.WithLabelValues("accepted").Inc()
	} else {
		telemetry.OffersResponded.WithLabelValues("rejected").Inc()
	}

	a.logger.Info("offer responded",
		"request_id", requestID.String(),
		"job_id", request.JobID.String(),
		"accepted", accept,
	)

	return result, nil
}

func (a *Arbiter) acceptOffer(
	ctx context.Context,
	tx pgx.Tx,
	request *store.JobRequest,
	actor Actor,
) (*Result, error) {
	job, err := store.GetJobForUpdate(ctx, tx, request.JobID)
	if err != nil {
		return nil, err
	}

	if job.State != store.JobPool && job.State != store.JobPendingRequest {
		return nil, store.ErrStateConflict
	}

	if err := store.MarkRequestStatus(ctx, tx, request.ID, store.RequestAccepted); err != nil {
		return nil, err
	}
	if err := store.TransitionJobState(ctx, tx, job.ID, job.State, store.JobAssigned); err != nil {
		return nil, err
	}
	if err := store.SetAssignment(ctx, tx, job.ID, request.WorkerID); err != nil {
		return nil, err
	}
	if err := store.AddJobWorker(ctx, tx, job.ID, request.WorkerID, true, store.WorkerAssigned); err != nil {
		return nil, err
	}

	siblings, err := store.ExpireSiblingRequests(ctx, tx, job.ID, request.ID)
	if err != nil {
		return nil, err
	}

	if err := store.AppendEvent(ctx, tx, job.ID, actor.ID, store.EventJobAssigned, store.AssignMetadata{
		WorkerID:       request.WorkerID.String(),
		Via:            store.AssignViaOffer,
		RequestID:      request.ID.String(),
		SiblingsClosed: siblings,
	}); err != nil {
		return nil, err
	}

	return &Result{JobID: job.ID, State: store.JobAssigned}, nil
}

func (a *Arbiter) rejectOffer(
	ctx context.Context,
	tx pgx.Tx,
	request *store.JobRequest,
	actor Actor,
) (*Result, error) {
	if err := store.MarkRequestStatus(ctx, tx, request.ID, store.RequestRejected); err != nil {
		return nil, err
	}

	job, err := store.GetJobForUpdate(ctx, tx, request.JobID)
	if err != nil {
		return nil, err
	}

	// Last live offer gone: reopen the job for pool claims.
	pending, err := store.CountPendingRequests(ctx, tx, request.JobID)
	if err != nil {
		return nil, err
	}
	state := job.State
	if pending == 0 && job.State == store.JobPendingRequest {
		if err := store.TransitionJobState(ctx, tx, job.ID, store.JobPendingRequest, store.JobPool); err != nil {
			return nil, err
		}
		state = store.JobPool
	}

	if err := store.AppendEvent(ctx, tx, request.JobID, actor.ID, store.EventOfferRejected, store.OfferRejectedMetadata{
		RequestID: request.ID.String(),
		WorkerID:  request.WorkerID.String(),
	}); err != nil {
		return nil, err
	}

	return &Result{JobID: job.ID, State: state}, nil
}
