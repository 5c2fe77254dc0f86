// Package events provides an in-process, fire-and-forget broadcast of
// entity lifecycle events. Subscribers that fall behind lose events rather
// than back-pressuring mutation paths; aggregates always re-derive from the
// canonical store, so a dropped notification costs at most a stale cache
// entry until the next TTL expiry.
package events

import (
	"sync"

	"github.com/eddostedson/eddo-budg-go/internal/domain"
)

const subscriberBuffer = 64

// Bus fans lifecycle events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan domain.Event
	closed bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its receive channel.
// The channel is closed when the bus shuts down.
func (b *Bus) Subscribe() <-chan domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.Event, subscriberBuffer)
	b.subs = append(b.subs, ch)
	return ch
}

// Publish broadcasts an event to all subscribers without blocking.
// Events to full subscriber buffers are dropped.
func (b *Bus) Publish(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
