// Package events fans sync events out to in-process listeners: the
// websocket hub, the AMQP notification bridge and tests.
package events

import (
	"context"
	"sync"

	"pos-terminal/internal/logger"
	"pos-terminal/internal/models"
)

// Publisher is what the sync coordinator and order service emit into
type Publisher interface {
	Publish(event models.SyncEvent)
}

// Bus delivers each event to every subscriber. Slow subscribers lose events
// rather than stall the publisher.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan models.SyncEvent
	nextID int
	buffer int
	closed bool
}

func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{subs: make(map[int]chan models.SyncEvent), buffer: buffer}
}

// Publish never blocks
func (b *Bus) Publish(event models.SyncEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe returns a receive channel and a cancel func that closes it
func (b *Bus) Subscribe() (<-chan models.SyncEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan models.SyncEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

// Close closes every subscriber channel
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// Notifier forwards sync events to an external transport
type Notifier interface {
	PublishNotification(ctx context.Context, event models.SyncEvent) error
}

// Forward relays bus events to n until ctx is done. Delivery failures are
// logged and dropped.
func Forward(ctx context.Context, bus *Bus, n Notifier, log *logger.Logger) {
	ch, cancel := bus.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := n.PublishNotification(ctx, ev); err != nil {
				log.Warn("notification_forward_failed", "Failed to forward sync event", "", map[string]interface{}{
					"event": string(ev.Type),
					"error": err.Error(),
				})
			}
		}
	}
}
