package rota

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lunavale/rota/types"
)

func TestBroadcaster_SubscribePublish(t *testing.T) {
	b := newBroadcaster(4)

	first, stopFirst := b.subscribe()
	second, stopSecond := b.subscribe()
	defer stopFirst()
	defer stopSecond()

	b.publish(types.CursorUpdate{Cursor: 3})

	require.Equal(t, 3, (<-first).Cursor)
	require.Equal(t, 3, (<-second).Cursor)
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := newBroadcaster(4)

	ch, unsubscribe := b.subscribe()
	unsubscribe()

	// Channel is closed and later publishes are not delivered to it.
	_, ok := <-ch
	require.False(t, ok)

	b.publish(types.CursorUpdate{Cursor: 1})

	// Unsubscribing twice is safe.
	unsubscribe()
}

func TestBroadcaster_SlowSubscriberDropsUpdates(t *testing.T) {
	b := newBroadcaster(1)

	ch, unsubscribe := b.subscribe()
	defer unsubscribe()

	// The buffer holds one event; the second is dropped, not blocked on.
	b.publish(types.CursorUpdate{Cursor: 1})
	b.publish(types.CursorUpdate{Cursor: 2})

	require.Equal(t, 1, (<-ch).Cursor)

	select {
	case u := <-ch:
		t.Fatalf("unexpected buffered update: %+v", u)
	default:
	}

	// The subscriber catches up on the next event.
	b.publish(types.CursorUpdate{Cursor: 3})
	require.Equal(t, 3, (<-ch).Cursor)
}

func TestBroadcaster_CloseAll(t *testing.T) {
	b := newBroadcaster(4)

	first, _ := b.subscribe()
	second, _ := b.subscribe()

	b.closeAll()

	_, ok := <-first
	require.False(t, ok)
	_, ok = <-second
	require.False(t, ok)

	// Publishing after shutdown is a no-op.
	b.publish(types.CursorUpdate{Cursor: 9})
}
