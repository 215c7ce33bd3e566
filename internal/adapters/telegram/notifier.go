package telegram

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"fmt"
	"strings"
)

var severityIcon = map[domain.Severity]string{
	domain.SeverityInfo:     "ℹ️",
	domain.SeverityWarning:  "⚠️",
	domain.SeverityCritical: "🚨",
}

// notifier posts notifications to the ops chat.
type notifier struct {
	client ports.BotClientPort
	chatID int64
}

var _ ports.Notifier = (*notifier)(nil)

// NewNotifier sends every notification to chatID.
func NewNotifier(client ports.BotClientPort, chatID int64) ports.Notifier {
	return &notifier{client: client, chatID: chatID}
}

func (n *notifier) Notify(ctx context.Context, note domain.Notification) error {
	if _, err := n.client.SendMessage(ctx, ports.SendMessageParams{
		ChatID: n.chatID,
		Text:   formatNotification(note),
	}); err != nil {
		return fmt.Errorf("send %s to chat %d: %w", note.Kind, n.chatID, err)
	}
	return nil
}

func formatNotification(note domain.Notification) string {
	var b strings.Builder
	icon, ok := severityIcon[note.Severity]
	if !ok {
		icon = severityIcon[domain.SeverityInfo]
	}
	fmt.Fprintf(&b, "%s %s\n%s", icon, note.Subject, note.Text)
	if note.Recipient != "" {
		fmt.Fprintf(&b, "\nfor: %s", note.Recipient)
	}
	return b.String()
}
