package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Event kinds form a closed set. Each kind carries its own metadata shape;
// the JSONB column keeps storage schema-flexible while the Go side stays
// strongly typed.
const (
	EventJobCreated     = "job.created"
	EventOfferCreated   = "job.offer_created"
	EventOfferRejected  = "job.offer_rejected"
	EventJobClaimed     = "job.claimed"
	EventJobAssigned    = "job.assigned"
	EventJobStarted     = "job.started"
	EventJobReturned    = "job.returned_to_pool"
	EventJobCompleted   = "job.completed"
	EventJobCancelled   = "job.cancelled"
	EventWorkerAdded    = "worker.added"
	EventWorkerRemoved  = "worker.removed"
	EventRequestExpired = "request.expired"
	EventLockReclaimed  = "lock_reclaimed"
)

type CreatedMetadata struct {
	Title string `json:"title"`
	City  string `json:"city,omitempty"`
}

type OfferMetadata struct {
	RequestID string    `json:"request_id"`
	WorkerID  string    `json:"worker_id"`
	Message   string    `json:"message,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

type OfferRejectedMetadata struct {
	RequestID string `json:"request_id"`
	WorkerID  string `json:"worker_id"`
}

type ClaimMetadata struct {
	WorkerID string `json:"worker_id"`
}

// AssignMetadata covers both offer acceptance and direct admin assignment;
// Via distinguishes the two. Justification is stored verbatim, never parsed.
type AssignMetadata struct {
	WorkerID       string `json:"worker_id"`
	Via            string `json:"via"`
	RequestID      string `json:"request_id,omitempty"`
	Justification  string `json:"justification,omitempty"`
	SiblingsClosed int64  `json:"siblings_closed,omitempty"`
}

const (
	AssignViaOffer = "offer_accept"
	AssignViaAdmin = "admin"
)

type ReturnMetadata struct {
	Reason          string `json:"reason"`
	ReasonText      string `json:"reason_text,omitempty"`
	TimeHeldMinutes int    `json:"time_held_minutes"`
}

type CompleteMetadata struct {
	TimeHeldMinutes int `json:"time_held_minutes"`
}

type CancelMetadata struct {
	PreviousState string `json:"previous_state"`
}

type CrewMetadata struct {
	WorkerID       string `json:"worker_id"`
	WasLead        bool   `json:"was_lead,omitempty"`
	ResultingState string `json:"resulting_state,omitempty"`
}

type ExpiryMetadata struct {
	RequestID string `json:"request_id"`
	WorkerID  string `json:"worker_id"`
}

type ReclaimMetadata struct {
	Holder      string  `json:"holder"`
	Reason      string  `json:"reason,omitempty"`
	HeldSeconds float64 `json:"held_seconds"`
}

// JobEvent is one immutable audit record. Ordered per job by ID.
type JobEvent struct {
	ID        int64
	JobID     uuid.UUID
	ActorID   uuid.UUID
	Kind      string
	Metadata  json.RawMessage
	CreatedAt time.Time
}

// AppendEvent writes the audit record inside the caller's transaction so the
// state change and its event commit or roll back together.
func AppendEvent(
	ctx context.Context,
	tx pgx.Tx,
	jobID uuid.UUID,
	actorID uuid.UUID,
	kind string,
	metadata any,
) error {
	encoded := []byte(`{}`)
	if metadata != nil {
		var err error
		encoded, err = json.Marshal(metadata)
		if err != nil {
			return err
		}
	}

	_, err := tx.Exec(
		ctx,
		`
		INSERT INTO job_events (job_id, actor_id, kind, metadata)
		VALUES ($1, $2, $3, $4)
		`,
		jobID,
		actorID,
		kind,
		encoded,
	)

	return err
}

// History returns every event for the job in append order. This is the
// replayable record used to reconstruct who held a job and for how long.
func (s *Store) History(
	ctx context.Context,
	jobID uuid.UUID,
) ([]JobEvent, error) {
	rows, err := s.connectionPool.Query(
		ctx,
		`
		SELECT id, job_id, actor_id, kind, metadata, created_at
		FROM job_events
		WHERE job_id = $1
		ORDER BY id
		`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

// EventsAfter returns events with an ID greater than the cursor, oldest
// first. The notifier uses this as its hand-off point.
func (s *Store) EventsAfter(
	ctx context.Context,
	afterID int64,
	limit int,
) ([]JobEvent, error) {
	rows, err := s.connectionPool.Query(
		ctx,
		`
		SELECT id, job_id, actor_id, kind, metadata, created_at
		FROM job_events
		WHERE id > $1
		ORDER BY id
		LIMIT $2
		`,
		afterID,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (s *Store) NotifierCursor(ctx context.Context) (int64, error) {
	var lastEventID int64

	err := s.connectionPool.QueryRow(
		ctx,
		`SELECT last_event_id FROM notifier_cursor WHERE id = 1`,
	).Scan(&lastEventID)

	return lastEventID, err
}

// AdvanceNotifierCursor moves the cursor forward, never backward, so a
// delayed writer cannot cause events to be re-read forever.
func (s *Store) AdvanceNotifierCursor(
	ctx context.Context,
	eventID int64,
) error {
	_, err := s.connectionPool.Exec(
		ctx,
		`
		UPDATE notifier_cursor
		SET last_event_id = $1
		WHERE id = 1
			AND last_event_id < $1
		`,
		eventID,
	)

	return err
}

func collectEvents(rows pgx.Rows) ([]JobEvent, error) {
	var events []JobEvent

	for rows.Next() {
		var event JobEvent
		if err := rows.Scan(
			&event.ID,
			&event.JobID,
			&event.ActorID,
			&event.Kind,
			&event.Metadata,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, rows.Err()
}
