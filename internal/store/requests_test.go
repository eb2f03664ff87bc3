package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func TestRequestExpiredReadTime(t *testing.T) {
	now := time.Now()

	request := JobRequest{Status: RequestPending, ExpiresAt: now.Add(time.Minute)}
	if request.Expired(now) {
		t.Error("pending offer before its deadline must not be expired")
	}

	// A pending row past its deadline is expired for every reader, even
	// before the sweeper touches it.
	request = JobRequest{Status: RequestPending, ExpiresAt: now.Add(-time.Second)}
	if !request.Expired(now) {
		t.Error("pending offer past its deadline must read as expired")
	}

	request = JobRequest{Status: RequestExpired, ExpiresAt: now.Add(time.Minute)}
	if !request.Expired(now) {
		t.Error("a settled expired row stays expired")
	}

	request = JobRequest{Status: RequestAccepted, ExpiresAt: now.Add(-time.Minute)}
	if request.Expired(now) {
		t.Error("accepted offer is settled, not expired")
	}
}

func TestCreateRequestRejectsDuplicatePending(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	jobID := createTestJob(t, s)
	workerID := uuid.New()

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := CreateRequest(ctx, tx, uuid.New(), jobID, workerID, "", time.Minute)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := CreateRequest(ctx, tx, uuid.New(), jobID, workerID, "", time.Minute)
		return err
	})
	if !errors.Is(err, ErrDuplicateOffer) {
		t.Fatalf("expected ErrDuplicateOffer, got %v", err)
	}

	// A different worker can still be offered the same job.
	err = s.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := CreateRequest(ctx, tx, uuid.New(), jobID, uuid.New(), "", time.Minute)
		return err
	})
	if err != nil {
		t.Fatalf("offer to a second worker should succeed: %v", err)
	}
}

func TestMarkRequestStatusSettlesOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	jobID := createTestJob(t, s)
	requestID := uuid.New()

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		_, err := CreateRequest(ctx, tx, requestID, jobID, uuid.New(), "", time.Minute)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.WithTransaction(ctx, func(tx pgx.Tx) error {
		return MarkRequestStatus(ctx, tx, requestID, RequestAccepted)
	})
	if err != nil {
		t.Fatal(err)
	}

	// Settled requests cannot be settled again.
	err = s.WithTransaction(ctx, func(tx pgx.Tx) error {
		return MarkRequestStatus(ctx, tx, requestID, RequestRejected)
	})
	if !errors.Is(err, ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}

	request, err := s.GetRequestByID(ctx, requestID)
	if err != nil {
		t.Fatal(err)
	}
	if request.Status != RequestAccepted {
		t.Fatalf("status overwritten to %s", request.Status)
	}
	if request.RespondedAt == nil {
		t.Fatal("responded_at not stamped")
	}
}

func TestExpireSiblingRequests(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	jobID := createTestJob(t, s)
	keptID := uuid.New()

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := CreateRequest(ctx, tx, keptID, jobID, uuid.New(), "", time.Minute); err != nil {
			return err
		}
		if _, err := CreateRequest(ctx, tx, uuid.New(), jobID, uuid.New(), "", time.Minute); err != nil {
			return err
		}
		_, err := CreateRequest(ctx, tx, uuid.New(), jobID, uuid.New(), "", time.Minute)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	var siblings int64
	err = s.WithTransaction(ctx, func(tx pgx.Tx) error {
		siblings, err = ExpireSiblingRequests(ctx, tx, jobID, keptID)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if siblings != 2 {
		t.Fatalf("expected 2 siblings expired, got %d", siblings)
	}

	kept, err := s.GetRequestByID(ctx, keptID)
	if err != nil {
		t.Fatal(err)
	}
	if kept.Status != RequestPending {
		t.Fatalf("kept offer was expired too: %s", kept.Status)
	}
}

func TestListPendingOffersFiltersStale(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	workerID := uuid.New()
	liveJob := createTestJob(t, s)
	staleJob := createTestJob(t, s)

	err := s.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := CreateRequest(ctx, tx, uuid.New(), liveJob, workerID, "", time.Minute); err != nil {
			return err
		}
		_, err := CreateRequest(ctx, tx, uuid.New(), staleJob, workerID, "", -time.Second)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	offers, err := s.ListPendingOffersFor(ctx, workerID)
	if err != nil {
		t.Fatal(err)
	}
	if len(offers) != 1 {
		t.Fatalf("expected 1 live offer, got %d", len(offers))
	}
	if offers[0].JobID != liveJob {
		t.Fatal("wrong offer surfaced")
	}

	stale, err := s.StalePendingRequests(ctx, 1000)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, request := range stale {
		if request.JobID == staleJob {
			found = true
		}
	}
	if !found {
		t.Fatal("stale offer not surfaced to the sweeper")
	}
}
