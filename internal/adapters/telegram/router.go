package telegram

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// ExternalTypeMessage is the external event type produced for every chat message.
const ExternalTypeMessage = "telegram.webhook.message"

// StatusFunc renders the reply to /status.
type StatusFunc func(ctx context.Context) string

// Router turns Telegram updates into external events for the mapper. The
// /start and /status commands are answered directly.
type Router struct {
	log       zerolog.Logger
	sink      ports.ExternalEventSink
	botClient ports.BotClientPort
	status    StatusFunc
}

// NewRouter creates a new update router.
func NewRouter(
	sink ports.ExternalEventSink,
	botClient ports.BotClientPort,
	status StatusFunc,
	baseLogger *zerolog.Logger,
) *Router {
	return &Router{
		log:       baseLogger.With().Str("component", "tg_router").Logger(),
		sink:      sink,
		botClient: botClient,
		status:    status,
	}
}

// HandleUpdate is the main entry point for a new update from Telegram.
func (r *Router) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	// 1. Only messages are supported
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		r.log.Debug().Int("update_id", update.UpdateID).Msg("Ignoring unsupported update type")
		return
	}

	ctxLogger := r.log.With().
		Int64("chat_id", msg.Chat.ID).
		Int("message_id", msg.MessageID).
		Logger()
	ctx = ctxLogger.WithContext(ctx)

	// 2. Answer commands
	switch msg.Command() {
	case "start":
		r.reply(ctx, msg.Chat.ID, fmt.Sprintf("This chat's id is %d. Set BOT_NOTIFY_CHAT_ID to it to receive alerts here.", msg.Chat.ID))
		return
	case "status":
		if r.status != nil {
			r.reply(ctx, msg.Chat.ID, r.status(ctx))
		}
		return
	}

	// 3. Everything else goes through the mapper
	ext := toExternalEvent(update)
	n, err := r.sink.ProcessExternalEvent(ctx, ext, true)
	if err != nil {
		ctxLogger.Error().Err(err).Msg("Failed to process message")
		return
	}
	ctxLogger.Debug().Int("published", n).Msg("Message processed")
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if _, err := r.botClient.SendMessage(ctx, ports.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		r.log.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to reply")
	}
}

// toExternalEvent keeps Telegram's own field names; translation happens in the mapper.
func toExternalEvent(update *tgbotapi.Update) domain.ExternalEvent {
	msg := update.Message
	message := map[string]any{
		"message_id": msg.MessageID,
		"chat":       map[string]any{"id": msg.Chat.ID, "type": msg.Chat.Type},
		"text":       msg.Text,
		"date":       msg.Date,
	}
	if msg.From != nil {
		message["from"] = map[string]any{"id": msg.From.ID, "username": msg.From.UserName}
	}

	ts := time.Unix(int64(msg.Date), 0).UTC()
	if msg.Date == 0 {
		ts = time.Now().UTC()
	}
	return domain.ExternalEvent{
		EventType: ExternalTypeMessage,
		EventID:   fmt.Sprintf("tg-%d", update.UpdateID),
		Source:    "telegram",
		Timestamp: ts,
		Payload:   domain.Payload{"message": message},
	}
}
