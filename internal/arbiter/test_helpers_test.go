package arbiter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/crewpool/dispatch/internal/store"
)

// Arbitration tests run against a real Postgres via TEST_DATABASE_URL and
// skip when it is unset.
func newTestArbiter(t *testing.T) (*Arbiter, *store.Store) {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	storeLayer, err := store.NewStore(ctx, url, store.DefaultLockTTL)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(storeLayer.Close)

	if err := storeLayer.RunMigrations(ctx); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(storeLayer, logger), storeLayer
}

func createPoolJob(t *testing.T, s *store.Store) uuid.UUID {
	t.Helper()

	jobID := uuid.New()
	err := s.CreateJob(context.Background(), uuid.New(), store.CreateJobParams{
		ID:             jobID,
		Title:          "Replace water heater",
		City:           "Denver",
		Address:        "1144 Broadway",
		EstimatedHours: 2,
		BonusCents:     2000,
	})
	if err != nil {
		t.Fatal(err)
	}

	return jobID
}

func admin() Actor {
	return Actor{ID: uuid.New(), Role: RoleAdmin}
}

func worker(id uuid.UUID) Actor {
	return Actor{ID: id, Role: RoleWorker}
}
