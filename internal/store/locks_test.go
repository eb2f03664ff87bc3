package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAcquireLockExclusive(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	jobID := createTestJob(t, s)
	first := uuid.New()
	second := uuid.New()

	handle, err := s.AcquireLock(ctx, jobID, first, "claim")
	if err != nil {
		t.Fatal(err)
	}

	if held, err := s.IsLocked(ctx, jobID); err != nil || !held {
		t.Fatalf("expected job to read as locked, held=%v err=%v", held, err)
	}

	if _, err := s.AcquireLock(ctx, jobID, second, "claim"); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	if err := s.ReleaseLock(ctx, handle); err != nil {
		t.Fatal(err)
	}

	if held, err := s.IsLocked(ctx, jobID); err != nil || held {
		t.Fatalf("expected job to read as unlocked, held=%v err=%v", held, err)
	}

	if _, err := s.AcquireLock(ctx, jobID, second, "claim"); err != nil {
		t.Fatalf("lock should be free after release: %v", err)
	}
}

func TestAcquireLockTakesOverExpired(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreTTL(t, 50*time.Millisecond)

	jobID := createTestJob(t, s)

	if _, err := s.AcquireLock(ctx, jobID, uuid.New(), "claim"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	// Past the TTL the lock counts as abandoned and is taken over in the
	// same statement, not left for a separate cleanup step.
	if _, err := s.AcquireLock(ctx, jobID, uuid.New(), "claim"); err != nil {
		t.Fatalf("expected takeover of expired lock, got %v", err)
	}
}

func TestReleaseLockIgnoresTakenOverLock(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreTTL(t, 50*time.Millisecond)

	jobID := createTestJob(t, s)

	stale, err := s.AcquireLock(ctx, jobID, uuid.New(), "claim")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	current := uuid.New()
	if _, err := s.AcquireLock(ctx, jobID, current, "claim"); err != nil {
		t.Fatal(err)
	}

	// The original holder's release must not drop the new holder's lock.
	if err := s.ReleaseLock(ctx, stale); err != nil {
		t.Fatal(err)
	}

	if _, err := s.AcquireLock(ctx, jobID, uuid.New(), "claim"); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected current holder's lock to survive, got %v", err)
	}
}

func TestReclaimLockIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStoreTTL(t, 50*time.Millisecond)

	jobID := createTestJob(t, s)

	handle, err := s.AcquireLock(ctx, jobID, uuid.New(), "return")
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	expired, err := s.ExpiredLocks(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, lock := range expired {
		if lock.JobID == jobID {
			found = true
		}
	}
	if !found {
		t.Fatal("expired lock not listed")
	}

	sweeperID := uuid.New()

	reclaimed, err := s.ReclaimLock(ctx, sweeperID, *handle)
	if err != nil {
		t.Fatal(err)
	}
	if !reclaimed {
		t.Fatal("expected first reclaim to succeed")
	}

	// Second pass over the same handle is a no-op and writes no second event.
	reclaimed, err = s.ReclaimLock(ctx, sweeperID, *handle)
	if err != nil {
		t.Fatal(err)
	}
	if reclaimed {
		t.Fatal("expected second reclaim to be a no-op")
	}

	events, err := s.History(ctx, jobID)
	if err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, event := range events {
		if event.Kind == EventLockReclaimed {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one reclaim event, got %d", count)
	}
}
