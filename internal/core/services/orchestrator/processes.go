package orchestrator

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/saga"
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

// DepositRequest starts a customer deposit.
type DepositRequest struct {
	CustomerID string          `json:"customerId" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" validate:"required,len=3"`
	Method     string          `json:"method" validate:"required,oneof=card bank_transfer crypto wallet"`
	Reference  string          `json:"reference,omitempty"`
}

// BetRequest places a bet on behalf of an agent.
type BetRequest struct {
	AgentID    string          `json:"agentId" validate:"required"`
	CustomerID string          `json:"customerId" validate:"required"`
	EventID    string          `json:"eventId" validate:"required"`
	Selection  string          `json:"selection" validate:"required"`
	Stake      decimal.Decimal `json:"stake"`
	Odds       decimal.Decimal `json:"odds"`
}

// OnboardingRequest registers a customer, optionally with a first deposit.
type OnboardingRequest struct {
	CustomerID     string          `json:"customerId" validate:"required"`
	FirstName      string          `json:"firstName" validate:"required,max=64"`
	LastName       string          `json:"lastName" validate:"required,max=64"`
	Email          string          `json:"email" validate:"required,email"`
	Phone          string          `json:"phone,omitempty" validate:"omitempty,e164"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	InitialDeposit decimal.Decimal `json:"initialDeposit"`
	DepositMethod  string          `json:"depositMethod,omitempty" validate:"omitempty,oneof=card bank_transfer crypto wallet"`
}

// CustomerDeposit validates the payment and hands it to Collections. Crediting
// the balance, bonus checks and notifications react to payment.processed.
func (o *Orchestrator) CustomerDeposit(ctx context.Context, req DepositRequest) (*domain.BusinessProcessResult, error) {
	req.Currency = strings.ToUpper(req.Currency)
	payload := domain.Payload{
		"customerId": req.CustomerID,
		"amount":     req.Amount.String(),
		"currency":   req.Currency,
		"method":     req.Method,
	}

	steps := []saga.Step{
		{
			ID:       "validate_payment",
			Name:     "Validate payment",
			Required: true,
			Action: func(ctx context.Context, s *saga.Scope) error {
				if !req.Amount.IsPositive() {
					return domain.NewValidationError("deposit amount must be positive, got %s", req.Amount.String())
				}
				if err := o.validate.Struct(req); err != nil {
					return domain.NewValidationError("invalid deposit request: %v", err)
				}
				return nil
			},
		},
		{
			ID:       "process_payment",
			Name:     "Process payment",
			Required: true,
			Action: func(ctx context.Context, s *saga.Scope) error {
				reference := req.Reference
				if reference == "" {
					reference = s.RunID
				}
				res, err := o.deps.Collections.ProcessPayment(ctx, domain.PaymentRequest{
					CustomerID: req.CustomerID,
					Amount:     req.Amount,
					Currency:   req.Currency,
					Method:     req.Method,
					Reference:  reference,
				})
				if err != nil {
					return err
				}
				s.RecordEffect("payment_processed:" + res.PaymentID)
				s.Set("paymentId", res.PaymentID)
				s.Set("status", string(res.Status))
				s.Set("amount", res.Amount.String())
				return nil
			},
		},
	}

	return o.run(ctx, ProcessCustomerDeposit, payload, req.CustomerID, domain.AggregateCustomer, steps)
}

// AgentBetPlacement checks the agent's funds, places the bet with the gateway,
// debits the stake and publishes an audit event. A failure after the gateway
// accepted the bet leaves that bet in place; AppliedEffects says so.
func (o *Orchestrator) AgentBetPlacement(ctx context.Context, req BetRequest) (*domain.BusinessProcessResult, error) {
	payload := domain.Payload{
		"agentId":    req.AgentID,
		"customerId": req.CustomerID,
		"eventId":    req.EventID,
		"stake":      req.Stake.String(),
	}

	steps := []saga.Step{
		{
			ID:       "validate_balance",
			Name:     "Validate agent balance",
			Required: true,
			Action: func(ctx context.Context, s *saga.Scope) error {
				// 1. Shape
				if err := o.validate.Struct(req); err != nil {
					return domain.NewValidationError("invalid bet request: %v", err)
				}
				if !req.Stake.IsPositive() {
					return domain.NewValidationError("stake must be positive, got %s", req.Stake.String())
				}
				if req.Odds.LessThanOrEqual(decimal.NewFromInt(1)) {
					return domain.NewValidationError("odds must be greater than 1, got %s", req.Odds.String())
				}

				// 2. Funds
				acc, err := o.deps.Balance.GetBalanceStatus(ctx, req.AgentID)
				if err != nil {
					return err
				}
				if acc.Frozen {
					return domain.NewDomainError(domain.CodeAccountFrozen, "agent %s is frozen: %s", req.AgentID, acc.FrozenReason)
				}
				if req.Stake.GreaterThan(acc.Available()) {
					return domain.ErrInsufficientBalance(req.AgentID, req.Stake, acc.Available())
				}
				s.Set("availableBefore", acc.Available().String())
				return nil
			},
		},
		{
			ID:   "risk_check",
			Name: "Risk check",
			Action: func(ctx context.Context, s *saga.Scope) error {
				flagged := o.opts.RiskStakeThreshold.IsPositive() && req.Stake.GreaterThan(o.opts.RiskStakeThreshold)
				if flagged {
					o.log.Warn().
						Str("agent_id", req.AgentID).
						Str("stake", req.Stake.String()).
						Str("threshold", o.opts.RiskStakeThreshold.String()).
						Msg("Stake above risk threshold")
				}
				s.Set("riskFlagged", flagged)
				return nil
			},
		},
		{
			ID:       "place_external_bet",
			Name:     "Place bet with gateway",
			Required: true,
			Action: func(ctx context.Context, s *saga.Scope) error {
				bet, err := o.deps.Gateway.PlaceBet(ctx, domain.ExternalBetRequest{
					AgentID:    req.AgentID,
					CustomerID: req.CustomerID,
					EventID:    req.EventID,
					Selection:  req.Selection,
					Stake:      req.Stake,
					Odds:       req.Odds,
				})
				if err != nil {
					return err
				}
				s.RecordEffect("external_bet_placed:" + bet.BetID)
				s.Set("externalBetId", bet.BetID)
				s.Set("acceptedOdds", bet.AcceptedOdds.String())
				return nil
			},
		},
		{
			ID:       "debit_balance",
			Name:     "Debit agent balance",
			Required: true,
			Action: func(ctx context.Context, s *saga.Scope) error {
				acc, err := o.deps.Balance.ProcessBalanceChange(ctx, domain.BalanceChange{
					AgentID:   req.AgentID,
					Amount:    req.Stake,
					Type:      domain.ChangeDebit,
					Reason:    "bet_placement",
					Reference: s.GetString("externalBetId", s.RunID),
				})
				if err != nil {
					return err
				}
				s.RecordEffect("balance_debited:" + req.Stake.String())
				s.Set("balanceAfter", acc.Balance.String())
				return nil
			},
		},
		{
			ID:       "publish_audit",
			Name:     "Publish audit event",
			Required: true,
			Action: func(ctx context.Context, s *saga.Scope) error {
				betID := s.GetString("externalBetId", "")
				return o.publish(ctx, s, domain.EventAuditBetPlaced, betID, domain.AggregateBet, domain.Payload{
					"externalBetId": betID,
					"agentId":       req.AgentID,
					"customerId":    req.CustomerID,
					"eventId":       req.EventID,
					"stake":         req.Stake.String(),
					"odds":          s.GetString("acceptedOdds", req.Odds.String()),
				})
			},
		},
	}

	return o.run(ctx, ProcessAgentBetPlacement, payload, req.AgentID, domain.AggregateAgent, steps)
}

// CustomerOnboarding validates the customer, opens a zero balance, optionally
// runs a first deposit and announces completion.
func (o *Orchestrator) CustomerOnboarding(ctx context.Context, req OnboardingRequest) (*domain.BusinessProcessResult, error) {
	req.Currency = strings.ToUpper(req.Currency)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	payload := domain.Payload{
		"customerId": req.CustomerID,
		"email":      req.Email,
	}

	steps := []saga.Step{
		{
			ID:       "validate_customer",
			Name:     "Validate customer",
			Required: true,
			Action: func(ctx context.Context, s *saga.Scope) error {
				if err := o.validate.Struct(req); err != nil {
					return domain.NewValidationError("invalid onboarding request: %v", err)
				}
				if req.InitialDeposit.IsNegative() {
					return domain.NewValidationError("initial deposit cannot be negative, got %s", req.InitialDeposit.String())
				}
				return nil
			},
		},
		{
			ID:       "create_balance",
			Name:     "Create balance account",
			Required: true,
			Action: func(ctx context.Context, s *saga.Scope) error {
				acc, err := o.deps.Balance.CreateBalance(ctx, req.CustomerID, req.Currency, decimal.Zero)
				if err != nil {
					return err
				}
				s.RecordEffect("balance_created:" + acc.AgentID)
				s.Set("balanceAccount", acc.AgentID)
				return nil
			},
		},
		{
			ID:       "initial_deposit",
			Name:     "Initial deposit",
			Required: true,
			Guard: func(s *saga.Scope) bool {
				return req.InitialDeposit.IsPositive()
			},
			Action: func(ctx context.Context, s *saga.Scope) error {
				method := req.DepositMethod
				if method == "" {
					method = "card"
				}
				res, err := o.CustomerDeposit(ctx, DepositRequest{
					CustomerID: req.CustomerID,
					Amount:     req.InitialDeposit,
					Currency:   req.Currency,
					Method:     method,
					Reference:  "onboarding:" + s.RunID,
				})
				if err != nil {
					return err
				}
				s.RecordEffect("deposit_process:" + res.ProcessID)
				s.Set("depositProcessId", res.ProcessID)
				s.Set("paymentId", res.Result["paymentId"])
				return nil
			},
		},
		{
			ID:       "publish_completed",
			Name:     "Publish onboarding completed",
			Required: true,
			Action: func(ctx context.Context, s *saga.Scope) error {
				return o.publish(ctx, s, domain.EventCustomerOnboardingCompleted, req.CustomerID, domain.AggregateCustomer, domain.Payload{
					"customerId":     req.CustomerID,
					"firstName":      req.FirstName,
					"email":          req.Email,
					"currency":       req.Currency,
					"initialDeposit": req.InitialDeposit.String(),
				})
			},
		},
	}

	return o.run(ctx, ProcessCustomerOnboarding, payload, req.CustomerID, domain.AggregateCustomer, steps)
}
