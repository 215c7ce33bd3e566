package balance

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Options configures the ledger.
type Options struct {
	// AlertThreshold raises balance.threshold.exceeded when a balance crosses it.
	// Zero disables the alert.
	AlertThreshold decimal.Decimal
}

// service is an in-memory Balance bounded context backed by a decimal ledger.
type service struct {
	bus      ports.EventBus
	opts     Options
	log      zerolog.Logger
	validate *validator.Validate

	mu       sync.Mutex
	accounts map[string]*domain.BalanceAccount
}

var _ ports.BalanceService = (*service)(nil)

// NewService creates the ledger. Domain events are published on bus.
func NewService(bus ports.EventBus, opts Options, baseLogger *zerolog.Logger) ports.BalanceService {
	return &service{
		bus:      bus,
		opts:     opts,
		log:      baseLogger.With().Str("component", "balance_service").Logger(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		accounts: make(map[string]*domain.BalanceAccount),
	}
}

func (s *service) CreateBalance(ctx context.Context, agentID, currency string, initial decimal.Decimal) (*domain.BalanceAccount, error) {
	if agentID == "" {
		return nil, domain.NewValidationError("account id is required")
	}
	if len(currency) != 3 {
		return nil, domain.NewValidationError("currency must be a 3-letter code, got %q", currency)
	}
	if initial.IsNegative() {
		return nil, domain.NewValidationError("initial balance cannot be negative, got %s", initial.String())
	}

	s.mu.Lock()
	if _, exists := s.accounts[agentID]; exists {
		s.mu.Unlock()
		return nil, domain.NewDomainError(domain.CodeAccountExists, "account %s already exists", agentID)
	}
	acc := &domain.BalanceAccount{
		AgentID:   agentID,
		Currency:  currency,
		Balance:   initial,
		Reserved:  decimal.Zero,
		UpdatedAt: time.Now().UTC(),
	}
	s.accounts[agentID] = acc
	snapshot := *acc
	s.mu.Unlock()

	s.log.Info().Str("account", agentID).Str("currency", currency).Msg("Balance account created")
	s.publish(ctx, domain.EventBalanceCreated, agentID, domain.Payload{
		"agentId":  agentID,
		"currency": currency,
		"balance":  initial.String(),
	})
	return &snapshot, nil
}

func (s *service) ProcessBalanceChange(ctx context.Context, change domain.BalanceChange) (*domain.BalanceAccount, error) {
	// 1. Validate
	if err := s.validate.Struct(change); err != nil {
		return nil, domain.NewValidationError("invalid balance change: %v", err)
	}
	if !change.Amount.IsPositive() {
		return nil, domain.NewValidationError("amount must be positive, got %s", change.Amount.String())
	}

	// 2. Apply
	s.mu.Lock()
	acc, ok := s.accounts[change.AgentID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.NewDomainError(domain.CodeAccountNotFound, "account %s not found", change.AgentID)
	}
	before := acc.Balance
	switch change.Type {
	case domain.ChangeDebit:
		if acc.Frozen {
			s.mu.Unlock()
			return nil, domain.NewDomainError(domain.CodeAccountFrozen, "account %s is frozen: %s", change.AgentID, acc.FrozenReason)
		}
		if change.Amount.GreaterThan(acc.Available()) {
			available := acc.Available()
			s.mu.Unlock()
			return nil, domain.ErrInsufficientBalance(change.AgentID, change.Amount, available)
		}
		acc.Balance = acc.Balance.Sub(change.Amount)
	case domain.ChangeCredit:
		acc.Balance = acc.Balance.Add(change.Amount)
	}
	acc.UpdatedAt = time.Now().UTC()
	snapshot := *acc
	s.mu.Unlock()

	s.log.Debug().
		Str("account", change.AgentID).
		Str("type", string(change.Type)).
		Str("amount", change.Amount.String()).
		Str("balance", snapshot.Balance.String()).
		Str("reference", change.Reference).
		Msg("Balance changed")

	// 3. Alert on an upward crossing only
	threshold := s.opts.AlertThreshold
	if threshold.IsPositive() && before.LessThan(threshold) && snapshot.Balance.GreaterThanOrEqual(threshold) {
		s.publish(ctx, domain.EventBalanceThresholdExceeded, change.AgentID, domain.Payload{
			"agentId":   change.AgentID,
			"balance":   snapshot.Balance.String(),
			"threshold": threshold.String(),
		})
	}
	return &snapshot, nil
}

func (s *service) GetBalanceStatus(ctx context.Context, agentID string) (*domain.BalanceAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[agentID]
	if !ok {
		return nil, domain.NewDomainError(domain.CodeAccountNotFound, "account %s not found", agentID)
	}
	snapshot := *acc
	return &snapshot, nil
}

func (s *service) Freeze(ctx context.Context, agentID, reason string) error {
	changed, err := s.setFrozen(agentID, true, reason)
	if err != nil {
		return err
	}
	if changed {
		s.log.Warn().Str("account", agentID).Str("reason", reason).Msg("Account frozen")
		s.publish(ctx, domain.EventBalanceFrozen, agentID, domain.Payload{"agentId": agentID, "reason": reason})
	}
	return nil
}

func (s *service) Unfreeze(ctx context.Context, agentID string) error {
	changed, err := s.setFrozen(agentID, false, "")
	if err != nil {
		return err
	}
	if changed {
		s.log.Info().Str("account", agentID).Msg("Account unfrozen")
		s.publish(ctx, domain.EventBalanceUnfrozen, agentID, domain.Payload{"agentId": agentID})
	}
	return nil
}

func (s *service) setFrozen(agentID string, frozen bool, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[agentID]
	if !ok {
		return false, domain.NewDomainError(domain.CodeAccountNotFound, "account %s not found", agentID)
	}
	changed := acc.Frozen != frozen
	acc.Frozen = frozen
	acc.FrozenReason = reason
	acc.UpdatedAt = time.Now().UTC()
	return changed, nil
}

// publish announces a ledger fact. The change is already applied, so a failing
// subscriber is logged rather than reported to the caller.
func (s *service) publish(ctx context.Context, eventType, agentID string, payload domain.Payload) {
	evt := domain.NewEvent(eventType, agentID, domain.AggregateAgentAccount, payload)
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.log.Warn().Err(err).Str("type", eventType).Str("account", agentID).Msg("Subscriber failed on balance event")
	}
}
