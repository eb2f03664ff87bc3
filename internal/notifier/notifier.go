// Notifier relays committed job events to external consumers over Redis
// pub/sub. It is deliberately decoupled from the core: the event log is the
// hand-off point, delivery is at-least-once, and a publish failure never
// affects the transition that produced the event.
package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crewpool/dispatch/internal/store"
	"github.com/crewpool/dispatch/internal/telemetry"
)

// EventSource is the slice of the store the notifier needs.
type EventSource interface {
	NotifierCursor(ctx context.Context) (int64, error)
	EventsAfter(ctx context.Context, afterID int64, limit int) ([]store.JobEvent, error)
	AdvanceNotifierCursor(ctx context.Context, eventID int64) error
}

type Notifier struct {
	source   EventSource
	client   *redis.Client
	channel  string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

type Options struct {
	Channel  string
	Interval time.Duration
	Batch    int
}

func New(
	source EventSource,
	client *redis.Client,
	logger *slog.Logger,
	opts Options,
) *Notifier {
	if opts.Channel == "" {
		opts.Channel = "dispatch.events"
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Batch <= 0 {
		opts.Batch = 100
	}

	return &Notifier{
		source:   source,
		client:   client,
		channel:  opts.Channel,
		logger:   logger,
		interval: opts.Interval,
		batch:    opts.Batch,
	}
}

// Envelope is the wire shape published for each event.
type Envelope struct {
	EventID   int64           `json:"event_id"`
	JobID     string          `json:"job_id"`
	ActorID   string          `json:"actor_id"`
	Kind      string          `json:"kind"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := n.PublishPending(ctx); err != nil {
				n.logger.Error("publishing events failed", "err", err)
			}
		}
	}
}

// PublishPending pushes every unpublished event to the channel in order. The
// cursor advances only after a successful publish, so a failure mid-batch
// re-delivers from the failed event onward: at-least-once, never skipping.
func (n *Notifier) PublishPending(ctx context.Context) error {
	cursor, err := n.source.NotifierCursor(ctx)
	if err != nil {
		return err
	}

	events, err := n.source.EventsAfter(ctx, cursor, n.batch)
	if err != nil {
		return err
	}

	for _, event := range events {
		payload, err := json.Marshal(Envelope{
			EventID:   event.ID,
			JobID:     event.JobID.String(),
			ActorID:   event.ActorID.String(),
			Kind:      event.Kind,
			Metadata:  event.Metadata,
			CreatedAt: event.CreatedAt,
		})
		if err != nil {
			return err
		}

		if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
			return err
		}

		if err := n.source.AdvanceNotifierCursor(ctx, event.ID); err != nil {
			return err
		}

		telemetry.EventsPublished.Inc()
	}

	return nil
}
