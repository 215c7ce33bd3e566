package workflow

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"BackOffice/internal/core/saga"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Built-in workflow names.
const (
	DepositProcessing  = "deposit_processing"
	HighValueBetReview = "high_value_bet_review"
	BalanceSync        = "balance_sync"
	BonusAward         = "bonus_award"
)

// Rules are the business thresholds the built-in workflows apply.
type Rules struct {
	HighValueBetThreshold decimal.Decimal
	BonusMinDeposit       decimal.Decimal
	BonusRate             decimal.Decimal
}

// Deps are the collaborators the built-in workflows act on.
type Deps struct {
	Bus         ports.EventBus
	Balance     ports.BalanceService
	Collections ports.CollectionsService
	Gateway     ports.BetGateway
	Rules       Rules
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// RegisterDefaults registers the four built-in workflows.
func (e *Engine) RegisterDefaults(deps Deps) error {
	defs := []Definition{
		depositProcessing(deps),
		highValueBetReview(deps),
		balanceSync(deps),
		bonusAward(deps),
	}
	for _, def := range defs {
		if err := e.Register(def); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return nil
}

// --- deposit_processing ---

func depositProcessing(deps Deps) Definition {
	return Definition{
		Name:          DepositProcessing,
		TriggerEvent:  domain.EventDepositInitiated,
		Timeout:       30 * time.Second,
		RetryAttempts: 2,
		Steps: []saga.Step{
			{
				ID:       "validate_deposit",
				Name:     "Validate deposit",
				Required: true,
				Action: func(ctx context.Context, s *saga.Scope) error {
					req := domain.PaymentRequest{
						CustomerID: s.Payload.String("customerId", ""),
						Amount:     s.Payload.Decimal("amount", decimal.Zero),
						Currency:   strings.ToUpper(s.Payload.String("currency", "USD")),
						Method:     s.Payload.String("method", "card"),
						Reference:  s.Payload.String("reference", s.RunID),
					}
					if !req.Amount.IsPositive() {
						return domain.NewValidationError("deposit amount must be positive, got %s", req.Amount.String())
					}
					if err := validate.Struct(req); err != nil {
						return domain.NewValidationError("invalid deposit: %v", err)
					}
					s.Set("paymentRequest", req)
					s.Set("amount", req.Amount)
					return nil
				},
			},
			{
				ID:            "process_payment",
				Name:          "Process payment",
				EventType:     "deposit.processing",
				AggregateType: domain.AggregateCustomer,
				Required:      true,
				Timeout:       10 * time.Second,
				Action: func(ctx context.Context, s *saga.Scope) error {
					v, _ := s.Get("paymentRequest")
					req, ok := v.(domain.PaymentRequest)
					if !ok {
						return fmt.Errorf("payment request missing from scope")
					}
					res, err := deps.Collections.ProcessPayment(ctx, req)
					if err != nil {
						return err
					}
					s.Set("paymentId", res.PaymentID)
					s.RecordEffect("payment_processed:" + res.PaymentID)
					return nil
				},
			},
			{
				ID:   "check_bonus",
				Name: "Check bonus eligibility",
				Guard: func(s *saga.Scope) bool {
					amount, ok := scopeDecimal(s, "amount")
					return ok && amount.GreaterThanOrEqual(deps.Rules.BonusMinDeposit)
				},
				Action: func(ctx context.Context, s *saga.Scope) error {
					amount, _ := scopeDecimal(s, "amount")
					s.Set("bonusEligible", true)
					s.Set("bonusEstimate", amount.Mul(deps.Rules.BonusRate).Round(2))
					return nil
				},
			},
			{
				ID:   "send_notification",
				Name: "Notify customer",
				Action: func(ctx context.Context, s *saga.Scope) error {
					amount, _ := scopeDecimal(s, "amount")
					customerID := s.Payload.String("customerId", "")
					return publish(ctx, deps.Bus, s, domain.NotificationDepositCompleted, customerID, domain.AggregateCustomer, domain.Payload{
						"severity":  string(domain.SeverityInfo),
						"subject":   "Deposit completed",
						"text":      fmt.Sprintf("Deposit of %s processed (payment %s)", amount.String(), s.GetString("paymentId", "-")),
						"recipient": customerID,
					})
				},
			},
		},
	}
}

// --- high_value_bet_review ---

func highValueBetReview(deps Deps) Definition {
	return Definition{
		Name:          HighValueBetReview,
		TriggerEvent:  domain.EventBetHighValueDetected,
		Timeout:       30 * time.Second,
		RetryAttempts: 1,
		Steps: []saga.Step{
			{
				ID:      "load_agent_account",
				Name:    "Load agent account",
				Timeout: 5 * time.Second,
				Action: func(ctx context.Context, s *saga.Scope) error {
					agentID := s.Payload.String("agentId", "")
					if agentID == "" {
						return domain.NewValidationError("agentId is missing")
					}
					acc, err := deps.Gateway.GetAgentAccount(ctx, agentID)
					if err != nil {
						return err
					}
					s.Set("agentHeadroom", acc.Balance.Add(acc.CreditLimit))
					return nil
				},
			},
			{
				ID:       "assess_risk",
				Name:     "Assess risk",
				Required: true,
				Action: func(ctx context.Context, s *saga.Scope) error {
					stake := s.Payload.Decimal("stake", decimal.Zero)
					if !stake.IsPositive() {
						return domain.NewValidationError("stake must be positive, got %s", stake.String())
					}
					level := "elevated"
					if stake.GreaterThanOrEqual(deps.Rules.HighValueBetThreshold.Mul(decimal.NewFromInt(2))) {
						level = "critical"
					}
					if headroom, ok := scopeDecimal(s, "agentHeadroom"); ok && stake.GreaterThan(headroom) {
						level = "critical"
					}
					s.Set("riskLevel", level)
					return nil
				},
			},
			{
				ID:   "freeze_agent",
				Name: "Freeze agent account",
				Guard: func(s *saga.Scope) bool {
					return s.GetString("riskLevel", "") == "critical"
				},
				Action: func(ctx context.Context, s *saga.Scope) error {
					agentID := s.Payload.String("agentId", "")
					reason := fmt.Sprintf("high value bet %s under review", s.Payload.String("betId", "?"))
					if err := deps.Balance.Freeze(ctx, agentID, reason); err != nil {
						return err
					}
					s.RecordEffect("agent_frozen:" + agentID)
					return nil
				},
			},
			{
				ID:   "notify_risk_team",
				Name: "Notify risk team",
				Action: func(ctx context.Context, s *saga.Scope) error {
					level := s.GetString("riskLevel", "elevated")
					severity := domain.SeverityWarning
					if level == "critical" {
						severity = domain.SeverityCritical
					}
					betID := s.Payload.String("betId", "")
					text := fmt.Sprintf("Bet %s by agent %s, stake %s, risk %s",
						betID, s.Payload.String("agentId", "?"), s.Payload.String("stake", "?"), level)
					return publish(ctx, deps.Bus, s, domain.NotificationRiskAlert, betID, domain.AggregateBet, domain.Payload{
						"severity": string(severity),
						"subject":  "High value bet",
						"text":     text,
					})
				},
			},
		},
	}
}

// --- balance_sync ---

func balanceSync(deps Deps) Definition {
	return Definition{
		Name:          BalanceSync,
		TriggerEvent:  domain.EventBalanceSyncRequired,
		Timeout:       30 * time.Second,
		RetryAttempts: 2,
		Steps: []saga.Step{
			{
				ID:       "resolve_reported_balance",
				Name:     "Resolve gateway balance",
				Required: true,
				Timeout:  5 * time.Second,
				Action: func(ctx context.Context, s *saga.Scope) error {
					agentID := s.Payload.String("agentId", "")
					if agentID == "" {
						return domain.NewValidationError("agentId is missing")
					}
					if s.Payload.Has("balance") {
						s.Set("reportedBalance", s.Payload.Decimal("balance", decimal.Zero))
						return nil
					}
					acc, err := deps.Gateway.GetAgentAccount(ctx, agentID)
					if err != nil {
						return err
					}
					s.Set("reportedBalance", acc.Balance)
					return nil
				},
			},
			{
				ID:       "fetch_local_balance",
				Name:     "Fetch local balance",
				Required: true,
				Action: func(ctx context.Context, s *saga.Scope) error {
					acc, err := deps.Balance.GetBalanceStatus(ctx, s.Payload.String("agentId", ""))
					if err != nil {
						return err
					}
					reported, _ := scopeDecimal(s, "reportedBalance")
					s.Set("localBalance", acc.Balance)
					s.Set("discrepancy", reported.Sub(acc.Balance))
					return nil
				},
			},
			{
				ID:       "reconcile",
				Name:     "Reconcile discrepancy",
				Required: true,
				Guard: func(s *saga.Scope) bool {
					d, ok := scopeDecimal(s, "discrepancy")
					return ok && !d.IsZero()
				},
				Action: func(ctx context.Context, s *saga.Scope) error {
					d, _ := scopeDecimal(s, "discrepancy")
					change := domain.BalanceChange{
						AgentID:   s.Payload.String("agentId", ""),
						Amount:    d.Abs(),
						Type:      domain.ChangeCredit,
						Reason:    "gateway_sync",
						Reference: s.RunID,
					}
					if d.IsNegative() {
						change.Type = domain.ChangeDebit
					}
					if _, err := deps.Balance.ProcessBalanceChange(ctx, change); err != nil {
						return err
					}
					s.RecordEffect(fmt.Sprintf("balance_%sed:%s", change.Type, change.Amount.String()))
					return nil
				},
			},
			{
				ID:        "publish_synced",
				Name:      "Announce sync",
				EventType: domain.EventBalanceSynced,
			},
		},
	}
}

// --- bonus_award ---

func bonusAward(deps Deps) Definition {
	eligible := func(s *saga.Scope) bool {
		v, ok := s.Get("eligible")
		b, isBool := v.(bool)
		return ok && isBool && b
	}

	return Definition{
		Name:          BonusAward,
		TriggerEvent:  domain.EventBonusEligibilityCheck,
		Timeout:       30 * time.Second,
		RetryAttempts: 2,
		Steps: []saga.Step{
			{
				ID:       "verify_eligibility",
				Name:     "Verify eligibility",
				Required: true,
				Action: func(ctx context.Context, s *saga.Scope) error {
					if s.Payload.String("customerId", "") == "" {
						return domain.NewValidationError("customerId is missing")
					}
					amount := s.Payload.Decimal("amount", decimal.Zero)
					ok := s.Payload.Bool("eligible", false) && amount.GreaterThanOrEqual(deps.Rules.BonusMinDeposit)
					s.Set("eligible", ok)
					s.Set("bonusAmount", amount.Mul(deps.Rules.BonusRate).Round(2))
					return nil
				},
			},
			{
				ID:       "credit_bonus",
				Name:     "Credit bonus",
				Required: true,
				Guard:    eligible,
				Action: func(ctx context.Context, s *saga.Scope) error {
					bonus, _ := scopeDecimal(s, "bonusAmount")
					if !bonus.IsPositive() {
						return domain.NewValidationError("bonus amount must be positive, got %s", bonus.String())
					}
					_, err := deps.Balance.ProcessBalanceChange(ctx, domain.BalanceChange{
						AgentID:   s.Payload.String("customerId", ""),
						Amount:    bonus,
						Type:      domain.ChangeCredit,
						Reason:    "deposit_bonus",
						Reference: "bonus:" + s.Payload.String("paymentId", s.RunID),
					})
					if err != nil {
						return err
					}
					s.RecordEffect("bonus_credited:" + bonus.String())
					return nil
				},
			},
			{
				ID:    "announce_award",
				Name:  "Announce award",
				Guard: eligible,
				Action: func(ctx context.Context, s *saga.Scope) error {
					bonus, _ := scopeDecimal(s, "bonusAmount")
					customerID := s.Payload.String("customerId", "")
					return publish(ctx, deps.Bus, s, domain.EventBonusAwarded, customerID, domain.AggregateCustomer, domain.Payload{
						"customerId": customerID,
						"paymentId":  s.Payload.String("paymentId", ""),
						"bonus":      bonus.String(),
					})
				},
			},
		},
	}
}

// --- helpers ---

func scopeDecimal(s *saga.Scope, key string) (decimal.Decimal, bool) {
	v, ok := s.Get(key)
	if !ok {
		return decimal.Zero, false
	}
	d, ok := v.(decimal.Decimal)
	return d, ok
}

// publish emits an event correlated with the running workflow.
func publish(ctx context.Context, bus ports.EventBus, s *saga.Scope, eventType, aggID string, aggType domain.AggregateType, payload domain.Payload) error {
	evt := domain.NewEvent(eventType, aggID, aggType, payload)
	if s.CorrelationID != "" {
		evt.Metadata.CorrelationID = s.CorrelationID
	}
	evt.Metadata.WorkflowID = s.RunID
	return bus.Publish(ctx, evt)
}
