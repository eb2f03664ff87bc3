package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/crewpool/dispatch/internal/store"
	"github.com/crewpool/dispatch/internal/telemetry"
)

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single pass. Safe to run concurrently with live traffic
// and with other sweepers: every mutation happens under the same per-job
// lock human operations take, and settling an already-settled request is a
// no-op, so repeated sweeps produce no duplicate events.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	stale, err := s.store.StalePendingRequests(ctx, s.batch)
	if err != nil {
		s.logger.Error("listing stale requests failed", "err", err)
	}
	for _, request := range stale {
		if err := s.expireRequest(ctx, request); err != nil {
			if errors.Is(err, store.ErrLockHeld) {
				// Someone is acting on the job right now; the next tick
				// will catch this request if it is still pending.
				continue
			}
			s.logger.Error("expiring request failed",
				"request_id", request.ID.String(),
				"job_id", request.JobID.String(),
				"err", err,
			)
		}
	}

	expired, err := s.store.ExpiredLocks(ctx, s.batch)
	if err != nil {
		s.logger.Error("listing expired locks failed", "err", err)
	}
	for _, lock := range expired {
		reclaimed, err := s.store.ReclaimLock(ctx, s.id, lock)
		if err != nil {
			s.logger.Error("lock reclaim failed", "job_id", lock.JobID.String(), "err", err)
			continue
		}
		if reclaimed {
			telemetry.LocksReclaimed.Inc()
			s.logger.Info("lock reclaimed",
				"job_id", lock.JobID.String(),
				"holder", lock.Holder.String(),
				"reason", lock.Reason,
			)
		}
	}
}

func (s *Sweeper) expireRequest(ctx context.Context, request store.JobRequest) error {
	handle, err := s.store.AcquireLock(ctx, request.JobID, s.id, "sweep")
	if err != nil {
		return err
	}
	defer s.store.ReleaseLock(context.WithoutCancel(ctx), handle)

	expired := false

	err = s.store.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := store.MarkRequestStatus(ctx, tx, request.ID, store.RequestExpired); err != nil {
			// Already settled by a response or an earlier sweep.
			if errors.Is(err, store.ErrStateConflict) {
				return nil
			}
			return err
		}
		expired = true

		// Last live offer gone: reopen the job for pool claims.
		pending, err := store.CountPendingRequests(ctx, tx, request.JobID)
		if err != nil {
			return err
		}
		if pending == 0 {
			job, err := store.GetJobForUpdate(ctx, tx, request.JobID)
			if err != nil {
				return err
			}
			if job.State == store.JobPendingRequest {
				if err := store.TransitionJobState(ctx, tx, job.ID, store.JobPendingRequest, store.JobPool); err != nil {
					return err
				}
			}
		}

		return store.AppendEvent(ctx, tx, request.JobID, s.id, store.EventRequestExpired, store.ExpiryMetadata{
			RequestID: request.ID.String(),
			WorkerID:  request.WorkerID.String(),
		})
	})
	if err != nil {
		return err
	}

	if expired {
		telemetry.RequestsExpired.Inc()
	}
	return nil
}
