// Package sweeper resolves time-based transitions no live request triggered:
// offers past their deadline and job locks abandoned by crashed callers. The
// tick interval bounds how stale either can get; that lag is documented
// behavior, not a bug, because every reader already applies the same expiry
// check at read time.
package sweeper

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/crewpool/dispatch/internal/store"
)

type Sweeper struct {
	id       uuid.UUID
	store    *store.Store
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func New(
	id uuid.UUID,
	storeLayer *store.Store,
	logger *slog.Logger,
	interval time.Duration,
	batch int,
) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}

	return &Sweeper{
		id:       id,
		store:    storeLayer,
		logger:   logger,
		interval: interval,
		batch:    batch,
	}
}
