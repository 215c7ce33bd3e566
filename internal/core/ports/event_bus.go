package ports

import (
	"BackOffice/internal/core/domain"
	"context"
)

// EventHandler is a function that can handle a specific event type.
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus defines the interface for our in-process pub/sub system.
type EventBus interface {
	// Publish delivers the event to every handler subscribed to event.Type, in
	// registration order, and returns once all of them have finished. The first
	// handler error stops delivery and is returned to the publisher.
	Publish(ctx context.Context, event domain.Event) error

	// Subscribe registers a handler for an exact event type (no wildcards).
	Subscribe(eventType string, handler EventHandler)
}
