package handlers

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"

	"github.com/rs/zerolog"
)

// NotificationFanout forwards every notification.* event to a Notifier.
type NotificationFanout struct {
	notifier ports.Notifier
	log      zerolog.Logger
}

// NewNotificationFanout creates a fan-out to notifier.
func NewNotificationFanout(notifier ports.Notifier, baseLogger *zerolog.Logger) *NotificationFanout {
	return &NotificationFanout{
		notifier: notifier,
		log:      baseLogger.With().Str("component", "notification_fanout").Logger(),
	}
}

// Register subscribes to each notification type. The bus has no wildcards.
func (f *NotificationFanout) Register(bus ports.EventBus) {
	for _, t := range domain.NotificationTypes {
		bus.Subscribe(t, f.handle)
	}
}

// handle is best effort: a delivery failure is logged and never aborts the
// remaining subscribers of the event.
func (f *NotificationFanout) handle(ctx context.Context, e domain.Event) error {
	n := domain.NotificationFromEvent(e)
	if err := f.notifier.Notify(ctx, n); err != nil {
		f.log.Warn().Err(err).
			Str("kind", n.Kind).
			Str("correlation_id", e.Metadata.CorrelationID).
			Msg("Failed to deliver notification")
		return nil
	}
	f.log.Debug().Str("kind", n.Kind).Str("recipient", n.Recipient).Msg("Notification delivered")
	return nil
}
