package handlers

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Rules are the thresholds the reactions apply.
type Rules struct {
	HighValueBetThreshold decimal.Decimal
	BonusMinDeposit       decimal.Decimal
	// IdempotencyTTL is how long a processed payment id is remembered.
	IdempotencyTTL time.Duration
}

// DomainEventHandlers wires the cross-domain reactions. Each handler performs one
// reaction and republishes a derived event; bounded contexts are only reached
// through their published contracts.
type DomainEventHandlers struct {
	bus         ports.EventBus
	balance     ports.BalanceService
	idempotency ports.IdempotencyStore
	rules       Rules
	log         zerolog.Logger
}

// New creates the handler set.
func New(balance ports.BalanceService, idempotency ports.IdempotencyStore, rules Rules, baseLogger *zerolog.Logger) *DomainEventHandlers {
	if rules.IdempotencyTTL <= 0 {
		rules.IdempotencyTTL = 24 * time.Hour
	}
	return &DomainEventHandlers{
		balance:     balance,
		idempotency: idempotency,
		rules:       rules,
		log:         baseLogger.With().Str("component", "domain_event_handlers").Logger(),
	}
}

// Register subscribes every reaction on bus and keeps bus for republishing.
func (h *DomainEventHandlers) Register(bus ports.EventBus) {
	h.bus = bus

	bus.Subscribe(domain.EventPaymentProcessed, h.onPaymentProcessed)
	bus.Subscribe(domain.EventPaymentFailed, h.onPaymentFailed)
	bus.Subscribe(domain.EventBalanceThresholdExceeded, h.onBalanceThresholdExceeded)
	bus.Subscribe(domain.EventBalanceFrozen, h.onBalanceFrozen)
	bus.Subscribe(domain.EventBalanceUnfrozen, h.onBalanceUnfrozen)
	bus.Subscribe(domain.EventExternalSportEventStarted, h.onSportEventStarted)
	bus.Subscribe(domain.EventExternalBetPlaced, h.onExternalBetPlaced)
	bus.Subscribe(domain.EventExternalBetSettled, h.onExternalBetSettled)
	bus.Subscribe(domain.EventExternalAgentBalanceChanged, h.onAgentBalanceChanged)
	bus.Subscribe(domain.EventExternalCustomerRegistered, h.onCustomerRegistered)
	bus.Subscribe(domain.EventExternalTelegramMessage, h.onTelegramMessage)
	bus.Subscribe(domain.EventCustomerOnboardingCompleted, h.onOnboardingCompleted)
	bus.Subscribe(domain.EventBonusAwarded, h.onBonusAwarded)

	h.log.Info().Msg("Domain event handlers registered")
}

// onPaymentProcessed credits the customer once per payment id, then announces
// the credit, the bonus check and a receipt.
func (h *DomainEventHandlers) onPaymentProcessed(ctx context.Context, e domain.Event) error {
	paymentID := e.Payload.String("paymentId", "")
	customerID := e.Payload.String("customerId", e.AggregateID)
	amount := e.Payload.Decimal("amount", decimal.Zero)
	currency := e.Payload.String("currency", "USD")
	log := h.log.With().Str("payment_id", paymentID).Str("customer_id", customerID).Logger()

	if paymentID == "" || customerID == "" || !amount.IsPositive() {
		return domain.NewValidationError("payment.processed is missing paymentId, customerId or a positive amount")
	}

	// 1. Deduplicate
	claimed, err := h.idempotency.Claim(ctx, "payment:"+paymentID, h.rules.IdempotencyTTL)
	if err != nil {
		return fmt.Errorf("claim payment %s: %w", paymentID, err)
	}
	if !claimed {
		log.Info().Msg("Duplicate payment.processed ignored")
		return nil
	}

	// 2. Credit, opening the account on first deposit
	change := domain.BalanceChange{
		AgentID:   customerID,
		Amount:    amount,
		Type:      domain.ChangeCredit,
		Reason:    "deposit",
		Reference: "payment:" + paymentID,
	}
	acc, err := h.balance.ProcessBalanceChange(ctx, change)
	if domain.IsCode(err, domain.CodeAccountNotFound) {
		log.Info().Msg("No balance account yet, opening one")
		if _, err = h.balance.CreateBalance(ctx, customerID, currency, decimal.Zero); err != nil {
			return fmt.Errorf("open balance for %s: %w", customerID, err)
		}
		acc, err = h.balance.ProcessBalanceChange(ctx, change)
	}
	if err != nil {
		return fmt.Errorf("credit payment %s: %w", paymentID, err)
	}

	// 3. Derived events
	if err := h.publish(ctx, e, domain.EventBalanceCredited, customerID, domain.AggregateCustomer, domain.Payload{
		"customerId": customerID,
		"paymentId":  paymentID,
		"amount":     amount.String(),
		"balance":    acc.Balance.String(),
	}); err != nil {
		return err
	}

	eligible := amount.GreaterThanOrEqual(h.rules.BonusMinDeposit)
	if err := h.publish(ctx, e, domain.EventBonusEligibilityCheck, customerID, domain.AggregateCustomer, domain.Payload{
		"customerId": customerID,
		"paymentId":  paymentID,
		"amount":     amount.String(),
		"eligible":   eligible,
	}); err != nil {
		return err
	}

	return h.notify(ctx, e, domain.NotificationPaymentReceived, customerID, domain.SeverityInfo,
		"Payment received", fmt.Sprintf("%s %s credited, balance %s", amount.String(), currency, acc.Balance.String()))
}

func (h *DomainEventHandlers) onPaymentFailed(ctx context.Context, e domain.Event) error {
	return h.notify(ctx, e, domain.NotificationPaymentFailed, e.Payload.String("customerId", e.AggregateID), domain.SeverityWarning,
		"Payment failed", fmt.Sprintf("Payment of %s failed: %s",
			e.Payload.String("amount", "?"), e.Payload.String("error", "unknown reason")))
}

func (h *DomainEventHandlers) onBalanceThresholdExceeded(ctx context.Context, e domain.Event) error {
	return h.notify(ctx, e, domain.NotificationBalanceAlert, e.AggregateID, domain.SeverityWarning,
		"Balance threshold exceeded", fmt.Sprintf("Account %s balance %s is above %s",
			e.AggregateID, e.Payload.String("balance", "?"), e.Payload.String("threshold", "?")))
}

func (h *DomainEventHandlers) onBalanceFrozen(ctx context.Context, e domain.Event) error {
	return h.notify(ctx, e, domain.NotificationAccountFrozen, e.AggregateID, domain.SeverityCritical,
		"Account frozen", fmt.Sprintf("Account %s frozen: %s", e.AggregateID, e.Payload.String("reason", "no reason given")))
}

func (h *DomainEventHandlers) onBalanceUnfrozen(ctx context.Context, e domain.Event) error {
	return h.notify(ctx, e, domain.NotificationAccountUnfrozen, e.AggregateID, domain.SeverityInfo,
		"Account unfrozen", fmt.Sprintf("Account %s is active again", e.AggregateID))
}

func (h *DomainEventHandlers) onSportEventStarted(ctx context.Context, e domain.Event) error {
	p := e.Payload
	return h.notify(ctx, e, domain.NotificationSportEventStarted, "", domain.SeverityInfo,
		"Event started", fmt.Sprintf("%s: %s vs %s has started",
			p.String("sport", "unknown"), p.String("homeTeam", "?"), p.String("awayTeam", "?")))
}

// onExternalBetPlaced raises bet.high_value_detected for stakes at or above the threshold.
func (h *DomainEventHandlers) onExternalBetPlaced(ctx context.Context, e domain.Event) error {
	stake := e.Payload.Decimal("stake", decimal.Zero)
	if stake.LessThan(h.rules.HighValueBetThreshold) {
		return nil
	}

	h.log.Info().
		Str("bet_id", e.AggregateID).
		Str("stake", stake.String()).
		Msg("High value bet detected")
	return h.publish(ctx, e, domain.EventBetHighValueDetected, e.AggregateID, domain.AggregateBet, domain.Payload{
		"betId":     e.AggregateID,
		"agentId":   e.Payload.String("agentId", ""),
		"stake":     stake.String(),
		"currency":  e.Payload.String("currency", "USD"),
		"threshold": h.rules.HighValueBetThreshold.String(),
	})
}

func (h *DomainEventHandlers) onExternalBetSettled(ctx context.Context, e domain.Event) error {
	p := e.Payload
	severity := domain.SeverityInfo
	if p.String("result", "") == "won" && p.Decimal("payout", decimal.Zero).GreaterThanOrEqual(h.rules.HighValueBetThreshold) {
		severity = domain.SeverityWarning
	}
	return h.notify(ctx, e, domain.NotificationBetSettled, p.String("agentId", ""), severity,
		"Bet settled", fmt.Sprintf("Bet %s settled as %s, payout %s", e.AggregateID, p.String("result", "unknown"), p.String("payout", "0")))
}

func (h *DomainEventHandlers) onAgentBalanceChanged(ctx context.Context, e domain.Event) error {
	return h.publish(ctx, e, domain.EventBalanceSyncRequired, e.AggregateID, domain.AggregateAgentAccount, domain.Payload{
		"agentId": e.AggregateID,
		"balance": e.Payload.String("balance", "0"),
		"reason":  e.Payload.String("reason", "unspecified"),
	})
}

// onCustomerRegistered opens a zero balance for a customer registered upstream.
// An existing account is left alone.
func (h *DomainEventHandlers) onCustomerRegistered(ctx context.Context, e domain.Event) error {
	customerID := e.Payload.String("customerId", e.AggregateID)
	currency := e.Payload.String("currency", "USD")

	_, err := h.balance.CreateBalance(ctx, customerID, currency, decimal.Zero)
	if domain.IsCode(err, domain.CodeAccountExists) {
		h.log.Debug().Str("customer_id", customerID).Msg("Balance already open")
		return nil
	}
	if err != nil {
		return fmt.Errorf("open balance for %s: %w", customerID, err)
	}
	h.log.Info().Str("customer_id", customerID).Str("currency", currency).Msg("Balance opened for registered customer")
	return nil
}

func (h *DomainEventHandlers) onTelegramMessage(ctx context.Context, e domain.Event) error {
	p := e.Payload
	from := p.String("username", "")
	if from == "" {
		from = p.String("fromId", "unknown")
	}
	return h.notify(ctx, e, domain.NotificationMessageReceived, "", domain.SeverityInfo,
		"Message received", fmt.Sprintf("%s: %s", from, p.String("text", "")))
}

func (h *DomainEventHandlers) onOnboardingCompleted(ctx context.Context, e domain.Event) error {
	name := e.Payload.String("firstName", "there")
	return h.notify(ctx, e, domain.NotificationWelcome, e.Payload.String("email", e.AggregateID), domain.SeverityInfo,
		"Welcome", fmt.Sprintf("Welcome aboard, %s!", name))
}

func (h *DomainEventHandlers) onBonusAwarded(ctx context.Context, e domain.Event) error {
	return h.notify(ctx, e, domain.NotificationBonusAwarded, e.Payload.String("customerId", e.AggregateID), domain.SeverityInfo,
		"Bonus awarded", fmt.Sprintf("A bonus of %s has been credited", e.Payload.String("bonus", "0")))
}

// --- helpers ---

func (h *DomainEventHandlers) publish(ctx context.Context, parent domain.Event, eventType, aggID string, aggType domain.AggregateType, payload domain.Payload) error {
	evt := domain.NewEvent(eventType, aggID, aggType, payload).CausedBy(parent)
	if err := h.bus.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

func (h *DomainEventHandlers) notify(ctx context.Context, parent domain.Event, kind, recipient string, severity domain.Severity, subject, text string) error {
	aggID := parent.AggregateID
	return h.publish(ctx, parent, kind, aggID, parent.AggregateType, domain.Payload{
		"severity":  string(severity),
		"subject":   subject,
		"text":      text,
		"recipient": recipient,
	})
}
