package notifier

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/crewpool/dispatch/internal/store"
)

// stubSource replaces the Postgres-backed event log so these tests only need
// miniredis.
type stubSource struct {
	events []store.JobEvent
	cursor int64
}

func (s *stubSource) NotifierCursor(_ context.Context) (int64, error) {
	return s.cursor, nil
}

func (s *stubSource) EventsAfter(_ context.Context, afterID int64, limit int) ([]store.JobEvent, error) {
	var out []store.JobEvent
	for _, event := range s.events {
		if event.ID > afterID && len(out) < limit {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *stubSource) AdvanceNotifierCursor(_ context.Context, eventID int64) error {
	if eventID > s.cursor {
		s.cursor = eventID
	}
	return nil
}

func testEvent(id int64, kind string) store.JobEvent {
	return store.JobEvent{
		ID:        id,
		JobID:     uuid.New(),
		ActorID:   uuid.New(),
		Kind:      kind,
		Metadata:  json.RawMessage(`{}`),
		CreatedAt: time.Now(),
	}
}

func newTestNotifier(t *testing.T, source EventSource) (*Notifier, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(source, client, logger, Options{Channel: "dispatch.events"}), client
}

func TestPublishPendingDeliversInOrder(t *testing.T) {
	ctx := context.Background()

	source := &stubSource{events: []store.JobEvent{
		testEvent(1, store.EventJobCreated),
		testEvent(2, store.EventJobClaimed),
		testEvent(3, store.EventJobCompleted),
	}}

	n, client := newTestNotifier(t, source)

	sub := client.Subscribe(ctx, "dispatch.events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, n.PublishPending(ctx))

	kinds := []string{store.EventJobCreated, store.EventJobClaimed, store.EventJobCompleted}
	for i, want := range kinds {
		receiveCtx, cancel := context.WithTimeout(ctx, time.Second)
		message, err := sub.ReceiveMessage(receiveCtx)
		cancel()
		require.NoError(t, err)

		var envelope Envelope
		require.NoError(t, json.Unmarshal([]byte(message.Payload), &envelope))
		require.Equal(t, int64(i+1), envelope.EventID)
		require.Equal(t, want, envelope.Kind)
	}

	require.Equal(t, int64(3), source.cursor, "cursor must land on the last published event")
}

func TestPublishPendingSkipsAlreadyPublished(t *testing.T) {
	ctx := context.Background()

	source := &stubSource{
		events: []store.JobEvent{
			testEvent(1, store.EventJobCreated),
			testEvent(2, store.EventJobClaimed),
		},
		cursor: 1,
	}

	n, client := newTestNotifier(t, source)

	sub := client.Subscribe(ctx, "dispatch.events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, n.PublishPending(ctx))

	receiveCtx, cancel := context.WithTimeout(ctx, time.Second)
	message, err := sub.ReceiveMessage(receiveCtx)
	cancel()
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal([]byte(message.Payload), &envelope))
	require.Equal(t, int64(2), envelope.EventID)

	// Nothing left behind the cursor: a second pass publishes nothing.
	require.NoError(t, n.PublishPending(ctx))

	receiveCtx, cancel = context.WithTimeout(ctx, 200*time.Millisecond)
	_, err = sub.ReceiveMessage(receiveCtx)
	cancel()
	require.Error(t, err, "no message expected after cursor caught up")
}

func TestPublishFailureLeavesCursorBehind(t *testing.T) {
	ctx := context.Background()

	source := &stubSource{events: []store.JobEvent{
		testEvent(1, store.EventJobCreated),
	}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := New(source, client, logger, Options{Channel: "dispatch.events"})

	// Redis down: the publish fails and the cursor does not move, so the
	// event is re-delivered on the next pass instead of being lost.
	mr.Close()

	require.Error(t, n.PublishPending(ctx))
	require.Equal(t, int64(0), source.cursor)
}
