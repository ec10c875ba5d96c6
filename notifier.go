package rota

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/lunavale/rota/types"
)

// broadcaster fans change-notification events out to session subscribers.
//
// Sends never block the watch loop: a subscriber whose buffer is full misses
// intermediate values and catches up on the next event. The cursor is a
// scalar, so last write wins and nothing needs to be merged.
type broadcaster struct {
	subscribers *xsync.Map[uint64, *updateSubscriber]
	nextID      atomic.Uint64
	buffer      int
}

func newBroadcaster(buffer int) *broadcaster {
	return &broadcaster{
		subscribers: xsync.NewMap[uint64, *updateSubscriber](),
		buffer:      buffer,
	}
}

// subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function that closes it.
func (b *broadcaster) subscribe() (<-chan types.CursorUpdate, func()) {
	id := b.nextID.Add(1)

	sub := &updateSubscriber{ch: make(chan types.CursorUpdate, b.buffer)}
	b.subscribers.Store(id, sub)

	unsubscribe := func() {
		if sub, ok := b.subscribers.LoadAndDelete(id); ok {
			sub.close()
		}
	}

	return sub.ch, unsubscribe
}

// publish delivers an event to every live subscriber without blocking.
func (b *broadcaster) publish(update types.CursorUpdate) {
	b.subscribers.Range(func(_ uint64, sub *updateSubscriber) bool {
		sub.trySend(update)

		return true
	})
}

// closeAll closes every subscriber channel; used on session shutdown.
func (b *broadcaster) closeAll() {
	b.subscribers.Range(func(id uint64, sub *updateSubscriber) bool {
		if sub, ok := b.subscribers.LoadAndDelete(id); ok {
			sub.close()
		}

		return true
	})
}

type updateSubscriber struct {
	ch     chan types.CursorUpdate
	mu     sync.Mutex
	closed bool
}

// trySend sends an update to the subscriber's channel without blocking.
func (s *updateSubscriber) trySend(update types.CursorUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- update:
	default:
		// Subscriber is slow; it will get the next update.
	}
}

// close safely closes the subscriber's channel.
func (s *updateSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
