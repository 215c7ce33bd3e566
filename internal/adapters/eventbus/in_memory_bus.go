package eventbus

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// inMemoryEventBus implements the ports.EventBus interface
type inMemoryEventBus struct {
	log         zerolog.Logger
	subscribers map[string][]ports.EventHandler
	mu          sync.RWMutex
}

var _ ports.EventBus = (*inMemoryEventBus)(nil)

// NewInMemoryEventBus creates a new, empty event bus. Build exactly one at the
// composition root and inject it everywhere.
func NewInMemoryEventBus(baseLogger *zerolog.Logger) ports.EventBus {
	return &inMemoryEventBus{
		log:         baseLogger.With().Str("component", "in_memory_bus").Logger(),
		subscribers: make(map[string][]ports.EventHandler),
	}
}

// Publish runs every handler for event.Type one after another, in registration
// order. Handlers run outside the lock so they may publish or subscribe themselves.
func (b *inMemoryEventBus) Publish(ctx context.Context, event domain.Event) error {
	b.mu.RLock()
	handlers := append([]ports.EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		// No subscribers for this type, which is fine
		b.log.Debug().Str("type", event.Type).Msg("Published event with no subscribers")
		return nil
	}

	for i, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.log.Error().Err(err).
				Str("type", event.Type).
				Int("handler", i).
				Int("skipped", len(handlers)-i-1).
				Msg("Event handler failed, aborting delivery")
			return fmt.Errorf("handler %d for %q: %w", i, event.Type, err)
		}
	}

	b.log.Debug().Str("type", event.Type).Int("handlers", len(handlers)).Msg("Event published")
	return nil
}

// Subscribe registers a handler for a specific event type
func (b *inMemoryEventBus) Subscribe(eventType string, handler ports.EventHandler) {
	b.mu.Lock() // Lock for writing to the map
	defer b.mu.Unlock()

	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
	b.log.Debug().Str("type", eventType).Int("handlers", len(b.subscribers[eventType])).Msg("New handler subscribed")
}
