package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prodfactory/flowsync/pkg/channels/gochannel"
	"github.com/prodfactory/flowsync/pkg/eventbus"
	"github.com/prodfactory/flowsync/pkg/events"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.ImportProgress, 1)

	require.NoError(t, bus.Handle(events.ImportCompletedEvent, func(_ context.Context, event any) error {
		progress, ok := event.(*events.ImportProgress)
		require.True(t, ok)
		received <- progress

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	sent := events.ImportProgress{
		ID:        bus.GenerateID(),
		Type:      events.ImportCompletedEvent,
		Timestamp: time.Now().UTC(),
		Total:     3,
	}
	require.NoError(t, bus.Publish(ctx, sent.ID, sent))

	select {
	case progress := <-received:
		assert.Equal(t, sent.ID, progress.ID)
		assert.Equal(t, events.ImportCompletedEvent, progress.Type)
		assert.Equal(t, 3, progress.Total)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the event")
	}
}

func TestUnhandledEventTypesAreDropped(t *testing.T) {
	bus := newBus(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *events.SyncCompleted, 1)

	require.NoError(t, bus.Handle(events.SyncCompletedEvent, func(_ context.Context, event any) error {
		completed, ok := event.(*events.SyncCompleted)
		require.True(t, ok)
		received <- completed

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for import progress: the bus acks and moves on.
	require.NoError(t, bus.Publish(ctx, "ignored", events.ImportProgress{
		ID:   bus.GenerateID(),
		Type: events.ImportStartedEvent,
	}))

	sync := events.SyncCompleted{ID: bus.GenerateID(), Mode: "detect", Synced: 2}
	require.NoError(t, bus.Publish(ctx, sync.ID, sync))

	select {
	case completed := <-received:
		assert.Equal(t, sync.ID, completed.ID)
		assert.Equal(t, 2, completed.Synced)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the event")
	}
}

func TestGenerateIDIsUnique(t *testing.T) {
	bus := newBus(t)

	seen := make(map[string]struct{})
	for range 100 {
		id := bus.GenerateID()
		assert.NotContains(t, seen, id)
		seen[id] = struct{}{}
	}
}
