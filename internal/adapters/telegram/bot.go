package telegram

import (
	"BackOffice/internal/core/ports"
	"BackOffice/internal/shared/config"
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Bot is the ops bot: it delivers notifications and feeds chat messages to the mapper.
type Bot struct {
	api    *tgbotapi.BotAPI
	client *tgClient
	cfg    *config.BotConfig
	log    zerolog.Logger
}

// NewBot connects to the Bot API.
func NewBot(cfg *config.BotConfig, debug bool, baseLogger *zerolog.Logger) (*Bot, error) {
	log := baseLogger.With().Str("bot", "ops").Logger()

	// 1. Create API
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("connect bot api: %w", err)
	}
	api.Debug = debug
	log.Info().Str("username", api.Self.UserName).Msg("Bot API connected")

	// 2. Create Client (Adapter)
	return &Bot{
		api:    api,
		client: newClient(api, &log),
		cfg:    cfg,
		log:    log,
	}, nil
}

// Client returns the outbound message client.
func (b *Bot) Client() ports.BotClientPort {
	return b.client
}

// Notifier returns a notifier for the configured ops chat.
func (b *Bot) Notifier() ports.Notifier {
	return NewNotifier(b.client, b.cfg.NotifyChatID)
}

// Run serves updates until ctx is done.
func (b *Bot) Run(ctx context.Context, sink ports.ExternalEventSink, status StatusFunc) error {
	// 1. Create Router
	router := NewRouter(sink, b.client, status, &b.log)

	// 2. Set Menu
	if err := b.client.SetMenuCommands(ctx); err != nil {
		b.log.Warn().Err(err).Msg("Continuing without a command menu")
	}

	// 3. Create and Start Server
	server := NewBotServer(b.api, router, b.cfg, &b.log)
	return server.Start(ctx)
}
