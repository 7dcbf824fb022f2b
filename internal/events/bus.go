// Package events implements the oracle's event fan-out: an in-process
// publish/subscribe bus that multiple independent consumers (WebSocket hub,
// notifiers, Redis bridge, tests) attach to without coupling to the
// orchestrator. Publishing never blocks: a subscriber that cannot keep up
// has events dropped, which is acceptable for a monitoring surface.
package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/djinn-protocol/cerberus/internal/domain"
)

// Bus is the in-process event bus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan domain.Event
	nextID int
	closed bool
	logger *slog.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]chan domain.Event),
		logger: logger.With(slog.String("component", "events")),
	}
}

// Subscribe registers a new consumer with the given channel buffer and
// returns its event channel plus an unsubscribe function. The channel is
// closed on unsubscribe or bus close.
func (b *Bus) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan domain.Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan domain.Event, buffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking. Events
// for full subscriber buffers are dropped and counted in the log.
func (b *Bus) Publish(ev domain.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				slog.Int("subscriber", id),
				slog.String("event", string(ev.Type)),
			)
		}
	}
}

// Close shuts the bus down and closes every subscriber channel. Publish and
// Subscribe become no-ops afterwards.
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
