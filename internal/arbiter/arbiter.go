// Package arbiter is the job lifecycle state machine. Every state-changing
// operation follows the same shape: acquire the per-job lock, validate the
// authoritative row inside a transaction, apply the conditional transition
// plus child-row mutations plus exactly one audit event, release the lock.
//
// The arbiter is the only layer that translates storage errors into the
// public outcome taxonomy. Components below it surface their own errors
// unchanged; components above it never see storage error text.
package arbiter

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/crewpool/dispatch/internal/store"
)

var (
	// ErrBusy: someone else holds the job lock right now. Retryable.
	ErrBusy = errors.New("another actor is operating on this job")

	// ErrAlreadyClaimed: the job was taken before this claim landed. The
	// caller should be told the job is gone, not asked to retry.
	ErrAlreadyClaimed = errors.New("job is no longer available")

	// ErrStateConflict: the job or request state drifted before the
	// conditional update applied. Nothing was written.
	ErrStateConflict = errors.New("state changed before the operation applied")

	// ErrInvalidReason: the return reason is outside the closed enumeration.
	ErrInvalidReason = errors.New("unknown return reason")

	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("actor may not perform this operation")
	ErrDuplicateOffer = errors.New("a pending offer already exists for this worker")
	ErrWorkerOnJob    = errors.New("worker already participates in this job")
)

const (
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)

// Actor is the authenticated caller. Identity and role arrive from upstream
// and are trusted as-is; the arbiter performs authorization, not
// authentication.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Result reports the job state an operation committed.
type Result struct {
	JobID uuid.UUID
	State string
}

type Arbiter struct {
	store  *store.Store
	logger *slog.Logger
}

func New(storeLayer *store.Store, logger *slog.Logger) *Arbiter {
	return &Arbiter{
		store:  storeLayer,
		logger: logger,
	}
}

// withJobLock runs fn under the per-job mutation lock. The lock is released
// on every exit path; a detached context keeps the release working when the
// caller's context is already cancelled. If release fails the lock times out
// and the sweeper reclaims it, so the job is never permanently stuck.
func (a *Arbiter) withJobLock(
	ctx context.Context,
	jobID uuid.UUID,
	holder uuid.UUID,
	reason string,
	fn func() error,
) error {
	handle, err := a.store.AcquireLock(ctx, jobID, holder, reason)
	if err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			return ErrBusy
		}
		return err
	}

	defer func() {
		if releaseErr := a.store.ReleaseLock(context.WithoutCancel(ctx), handle); releaseErr != nil {
			a.logger.Error("lock release failed",
				"job_id", jobID.String(),
				"holder", holder.String(),
				"err", releaseErr,
			)
		}
	}()

	return fn()
}

// translate maps store errors onto the public taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrStateConflict):
		return ErrStateConflict
	case errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrRequestNotFound),
		errors.Is(err, store.ErrWorkerNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrDuplicateOffer):
		return ErrDuplicateOffer
	case errors.Is(err, store.ErrWorkerOnJob):
		return ErrWorkerOnJob
	default:
		return err
	}
}
