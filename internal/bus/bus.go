// Package bus fans committed world events out to live subscribers (SSE
// clients). Delivery is lossy by design: a slow subscriber loses its oldest
// undelivered events rather than ever blocking the tick loop. The bus is a
// view, not a log of record — the event log is.
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/talgya/gridworld/internal/sim"
)

const defaultBuffer = 256

// Bus is the in-process broadcast hub.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int64]*Subscriber
	nextID int64
	buffer int

	dropped atomic.Int64
}

// Subscriber receives committed events on C until Unsubscribe is called.
type Subscriber struct {
	id  int64
	C   chan sim.WorldEvent
	bus *Bus
}

// New creates a bus with the default per-subscriber buffer.
func New() *Bus {
	return &Bus{subs: make(map[int64]*Subscriber), buffer: defaultBuffer}
}

// Subscribe registers a new subscriber.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &Subscriber{id: b.nextID, C: make(chan sim.WorldEvent, b.buffer), bus: b}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe removes the subscriber and closes its channel.
func (s *Subscriber) Unsubscribe() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s.id]; ok {
		delete(b.subs, s.id)
		close(s.C)
	}
}

// Publish delivers an event to every subscriber without blocking. When a
// subscriber's buffer is full its oldest undelivered event is dropped to
// make room.
func (b *Bus) Publish(ev sim.WorldEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.C <- ev:
		default:
			select {
			case <-sub.C:
				b.dropped.Add(1)
			default:
			}
			select {
			case sub.C <- ev:
			default:
				b.dropped.Add(1)
			}
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns the total number of events dropped for slow subscribers.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}
