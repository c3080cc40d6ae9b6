// Package bus provides a process-wide broadcast event bus: one publisher
// (the adapters), many subscribers (the aggregator, SSE clients, the MQTT
// bridge at the boundary). It follows the teacher's events.Bus shape
// (internal/events/bus.go) generalized from a single `models.State` snapshot
// channel to the richer tagged-union `Event` and from drop-newest to the
// spec's drop-oldest backpressure policy.
package bus

import (
	"sync"
	"sync/atomic"
)

// subBufferSize is the recommended per-subscriber queue depth from spec §4.1.
const subBufferSize = 1024

// Bus is a non-blocking publish-subscribe event bus. Publish never blocks
// and never fails observably; a slow subscriber has its oldest buffered
// events dropped rather than stalling the publisher.
type Bus struct {
	mu   sync.Mutex
	subs map[string]*Subscription
}

// New creates a new, empty event bus.
func New() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscription is a live subscriber's channel plus its lag counter.
type Subscription struct {
	id     string
	ch     chan Event
	lagged atomic.Int64
}

// Events returns the channel of delivered events.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Lagged returns the number of events dropped for this subscriber since the
// last call to Lagged, and resets the counter. Spec requires the bus expose
// a "lagged(n)" signal a subscriber can observe on its next read.
func (s *Subscription) Lagged() int64 { return s.lagged.Swap(0) }

// Subscribe registers a new subscriber identified by id (typically a
// uuid.New().String()) and returns its Subscription. Call Unsubscribe when
// done.
func (b *Bus) Subscribe(id string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{id: id, ch: make(chan Event, subBufferSize)}
	b.subs[id] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish broadcasts an event to every currently-subscribed receiver.
// Per subscriber: if the queue is full, the oldest queued event is dropped
// to make room (drop-oldest, not drop-newest) and the subscriber's lag
// counter is incremented. The publisher is never blocked.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub.ch <- e:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- e:
			default:
			}
			sub.lagged.Add(1)
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
