// Package events is the publish/subscribe boundary between the salvage
// pipeline and external subscribers (dashboards, alerting).
package events

import (
	"log/slog"
	"sync"

	"github.com/vietddude/salvage/internal/core/domain"
)

// Handler receives published events. Handlers run on the publisher's
// goroutine and must not block; panics are recovered and logged.
type Handler func(domain.Event)

// Bus is a concurrency-safe callback registry keyed by topic.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]Handler
	all  []Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic. An empty topic subscribes to
// every event.
func (b *Bus) Subscribe(topic string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if topic == "" {
		b.all = append(b.all, h)
		return
	}
	b.subs[topic] = append(b.subs[topic], h)
}

// Publish delivers an event to every handler subscribed to its topic.
func (b *Bus) Publish(e domain.Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[e.Topic])+len(b.all))
	handlers = append(handlers, b.subs[e.Topic]...)
	handlers = append(handlers, b.all...)
	b.mu.RUnlock()

	for _, h := range handlers {
		safeInvoke(h, e)
	}
}

func safeInvoke(h Handler, e domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked", "topic", e.Topic, "panic", r)
		}
	}()
	h(e)
}
