package mapper

import (
	"BackOffice/internal/core/domain"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// External event types understood out of the box.
const (
	TypeSportEventStarted   = "fantasy402.sport_event.started"
	TypeBetPlaced           = "fantasy402.bet.placed"
	TypeBetSettled          = "fantasy402.bet.settled"
	TypeAgentBalanceChanged = "fantasy402.agent.balance_changed"
	TypeCustomerRegistered  = "fantasy402.customer.registered"
	TypeTelegramMessage     = "telegram.webhook.message"
)

// RegisterDefaultMappings installs the built-in fantasy402 and telegram mappings.
func RegisterDefaultMappings(m *Mapper) {
	m.RegisterMapping(TypeSportEventStarted, mapSportEventStarted)
	m.RegisterMapping(TypeBetPlaced, mapBetPlaced)
	m.RegisterMapping(TypeBetSettled, mapBetSettled)
	m.RegisterMapping(TypeAgentBalanceChanged, mapAgentBalanceChanged)
	m.RegisterMapping(TypeCustomerRegistered, mapCustomerRegistered)
	m.RegisterMapping(TypeTelegramMessage, mapTelegramMessage)
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError("%s is missing", name)
	}
	return nil
}

func single(evt domain.Event) []domain.Event {
	return []domain.Event{evt}
}

func mapSportEventStarted(ext domain.ExternalEvent) ([]domain.Event, error) {
	p := ext.Payload
	id := p.String("event.id", p.String("event_id", ""))
	if err := requireField("event.id", id); err != nil {
		return nil, err
	}

	return single(domain.NewEvent(domain.EventExternalSportEventStarted, id, domain.AggregateSportEvent, domain.Payload{
		"sportEventId": id,
		"sport":        p.String("event.sport", "unknown"),
		"league":       p.String("event.league", ""),
		"homeTeam":     p.String("event.home_team", ""),
		"awayTeam":     p.String("event.away_team", ""),
		"startTime":    p.String("event.start_time", ext.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")),
	})), nil
}

func mapBetPlaced(ext domain.ExternalEvent) ([]domain.Event, error) {
	p := ext.Payload
	betID := p.String("bet.id", "")
	if err := requireField("bet.id", betID); err != nil {
		return nil, err
	}
	stake := p.Decimal("bet.stake", decimal.Zero)
	if !stake.IsPositive() {
		return nil, domain.NewValidationError("bet.stake must be positive, got %s", stake.String())
	}

	return single(domain.NewEvent(domain.EventExternalBetPlaced, betID, domain.AggregateBet, domain.Payload{
		"betId":      betID,
		"agentId":    p.String("bet.agent_id", ""),
		"customerId": p.String("bet.customer_id", ""),
		"sportEvent": p.String("bet.event_id", ""),
		"selection":  p.String("bet.selection", ""),
		"stake":      stake.String(),
		"odds":       p.Decimal("bet.odds", decimal.NewFromInt(1)).String(),
		"currency":   strings.ToUpper(p.String("bet.currency", "USD")),
	})), nil
}

func mapBetSettled(ext domain.ExternalEvent) ([]domain.Event, error) {
	p := ext.Payload
	betID := p.String("bet.id", "")
	if err := requireField("bet.id", betID); err != nil {
		return nil, err
	}

	result := strings.ToLower(p.String("bet.result", "unknown"))
	switch result {
	case "won", "lost", "void", "cashout", "unknown":
	default:
		return nil, domain.NewValidationError("bet.result %q is not a known outcome", result)
	}

	return single(domain.NewEvent(domain.EventExternalBetSettled, betID, domain.AggregateBet, domain.Payload{
		"betId":   betID,
		"agentId": p.String("bet.agent_id", ""),
		"result":  result,
		"payout":  p.Decimal("bet.payout", decimal.Zero).String(),
	})), nil
}

func mapAgentBalanceChanged(ext domain.ExternalEvent) ([]domain.Event, error) {
	p := ext.Payload
	agentID := p.String("agent.id", "")
	if err := requireField("agent.id", agentID); err != nil {
		return nil, err
	}
	balance := p.Decimal("agent.balance", decimal.Zero)
	previous := p.Decimal("agent.previous_balance", balance)

	return single(domain.NewEvent(domain.EventExternalAgentBalanceChanged, agentID, domain.AggregateAgentAccount, domain.Payload{
		"agentId":         agentID,
		"balance":         balance.String(),
		"previousBalance": previous.String(),
		"delta":           balance.Sub(previous).String(),
		"reason":          p.String("agent.reason", "unspecified"),
	})), nil
}

func mapCustomerRegistered(ext domain.ExternalEvent) ([]domain.Event, error) {
	p := ext.Payload
	customerID := p.String("customer.id", "")
	if err := requireField("customer.id", customerID); err != nil {
		return nil, err
	}

	return single(domain.NewEvent(domain.EventExternalCustomerRegistered, customerID, domain.AggregateCustomer, domain.Payload{
		"customerId": customerID,
		"agentId":    p.String("customer.agent_id", ""),
		"email":      strings.ToLower(p.String("customer.email", "")),
		"currency":   strings.ToUpper(p.String("customer.currency", "USD")),
	})), nil
}

func mapTelegramMessage(ext domain.ExternalEvent) ([]domain.Event, error) {
	p := ext.Payload
	chatID := p.Int("message.chat.id", 0)
	messageID := p.Int("message.message_id", 0)
	if chatID == 0 || messageID == 0 {
		return nil, domain.NewValidationError("message.chat.id and message.message_id are required")
	}

	aggID := fmt.Sprintf("%d:%d", chatID, messageID)
	return single(domain.NewEvent(domain.EventExternalTelegramMessage, aggID, domain.AggregateMessage, domain.Payload{
		"chatId":    chatID,
		"messageId": messageID,
		"fromId":    p.Int("message.from.id", 0),
		"username":  p.String("message.from.username", ""),
		"text":      p.String("message.text", ""),
	})), nil
}
