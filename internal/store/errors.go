package store

import "errors"

var (
	// ErrStateConflict means the job was not in the expected state when the
	// conditional update ran. Callers lost a race; nothing was written.
	ErrStateConflict = errors.New("job state changed before the update applied")

	// ErrLockHeld means a live lock exists on the job. The caller must surface
	// a retry-later outcome, never overwrite.
	ErrLockHeld = errors.New("job is locked by another actor")

	ErrJobNotFound     = errors.New("job not found")
	ErrRequestNotFound = errors.New("job request not found")
	ErrWorkerNotFound  = errors.New("worker is not on this job")

	// ErrDuplicateOffer means a pending, unexpired offer already exists for the
	// same (job, worker) pair.
	ErrDuplicateOffer = errors.New("pending offer already exists for this worker")

	// ErrWorkerOnJob means the worker already has a non-removed participation
	// row on the job.
	ErrWorkerOnJob = errors.New("worker already participates in this job")
)
