package memory

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"

	"github.com/rs/zerolog"
)

// logNotifier writes notifications to the log. It stands in for the Telegram
// notifier when the bot is disabled.
type logNotifier struct {
	log zerolog.Logger
}

var _ ports.Notifier = (*logNotifier)(nil)

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(baseLogger *zerolog.Logger) ports.Notifier {
	return &logNotifier{
		log: baseLogger.With().Str("component", "log_notifier").Logger(),
	}
}

func (n *logNotifier) Notify(ctx context.Context, note domain.Notification) error {
	var evt *zerolog.Event
	switch note.Severity {
	case domain.SeverityCritical:
		evt = n.log.Error()
	case domain.SeverityWarning:
		evt = n.log.Warn()
	default:
		evt = n.log.Info()
	}
	evt.Str("kind", note.Kind).
		Str("recipient", note.Recipient).
		Str("subject", note.Subject).
		Msg(note.Text)
	return nil
}
