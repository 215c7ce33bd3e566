package ports

import (
	"BackOffice/internal/core/domain"
	"context"
)

// SendMessageParams holds all possible options for sending a message.
type SendMessageParams struct {
	ChatID    int64
	Text      string
	ParseMode string // e.g., "MarkdownV2" or "HTML"
}

// BotClientPort defines the interface for *sending* messages.
type BotClientPort interface {
	SendMessage(ctx context.Context, params SendMessageParams) (int, error)
}

// Notifier delivers notification.* events to humans.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

// ExternalEventSink accepts events from outside the bounded contexts.
type ExternalEventSink interface {
	ProcessExternalEvent(ctx context.Context, ext domain.ExternalEvent, preserveOrder bool) (int, error)
}
