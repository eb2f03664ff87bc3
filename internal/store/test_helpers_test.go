package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// DB-backed tests run against TEST_DATABASE_URL and skip when it is unset.
// Every test works on freshly created rows, so no cleanup between tests is
// needed.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreTTL(t, DefaultLockTTL)
}

func newTestStoreTTL(t *testing.T, lockTTL time.Duration) *Store {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	s, err := NewStore(ctx, url, lockTTL)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)

	if err := s.RunMigrations(ctx); err != nil {
		t.Fatal(err)
	}

	return s
}

func createTestJob(t *testing.T, s *Store) uuid.UUID {
	t.Helper()

	jobID := uuid.New()
	err := s.CreateJob(context.Background(), uuid.New(), CreateJobParams{
		ID:             jobID,
		Title:          "Fix rooftop HVAC unit",
		City:           "Austin",
		Address:        "400 Congress Ave",
		EstimatedHours: 3,
		BonusCents:     1500,
	})
	if err != nil {
		t.Fatal(err)
	}

	return jobID
}
