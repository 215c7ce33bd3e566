package fantasy402

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SandboxOptions shapes the in-process stand-in for the Fantasy402 agent API.
type SandboxOptions struct {
	// DefaultCreditLimit is granted to agents seen for the first time.
	DefaultCreditLimit decimal.Decimal
}

// SandboxGateway accepts bets against per-agent balance plus credit. It is
// used when no live gateway is configured and by tests.
type SandboxGateway struct {
	opts SandboxOptions
	log  zerolog.Logger

	mu     sync.Mutex
	agents map[string]*domain.AgentAccount
	bets   map[string]*domain.ExternalBet
}

var _ ports.BetGateway = (*SandboxGateway)(nil)

// NewSandboxGateway creates an empty sandbox.
func NewSandboxGateway(opts SandboxOptions, baseLogger *zerolog.Logger) *SandboxGateway {
	return &SandboxGateway{
		opts:   opts,
		log:    baseLogger.With().Str("component", "fantasy402_sandbox").Logger(),
		agents: make(map[string]*domain.AgentAccount),
		bets:   make(map[string]*domain.ExternalBet),
	}
}

// SeedAgent creates or replaces an agent account.
func (g *SandboxGateway) SeedAgent(agentID string, balance, creditLimit decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.agents[agentID] = &domain.AgentAccount{
		AgentID:     agentID,
		Balance:     balance,
		CreditLimit: creditLimit,
		Active:      true,
	}
}

// PlaceBet accepts the bet when the stake fits the agent's balance plus credit.
func (g *SandboxGateway) PlaceBet(ctx context.Context, req domain.ExternalBetRequest) (*domain.ExternalBet, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.DomainError{Code: domain.CodeGateway, Message: "gateway call cancelled", Err: err}
	}
	if !req.Stake.IsPositive() {
		return nil, domain.NewDomainError(domain.CodeGateway, "stake must be positive, got %s", req.Stake.String())
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	acc, ok := g.agents[req.AgentID]
	if !ok {
		acc = &domain.AgentAccount{
			AgentID:     req.AgentID,
			Balance:     decimal.Zero,
			CreditLimit: g.opts.DefaultCreditLimit,
			Active:      true,
		}
		g.agents[req.AgentID] = acc
		g.log.Info().Str("agent_id", req.AgentID).Msg("Registered sandbox agent")
	}
	if !acc.Active {
		return nil, domain.NewDomainError(domain.CodeGateway, "agent %s is inactive", req.AgentID)
	}

	headroom := acc.Balance.Add(acc.CreditLimit)
	if req.Stake.GreaterThan(headroom) {
		return nil, domain.NewDomainError(domain.CodeGateway,
			"stake %s exceeds agent %s headroom %s", req.Stake.String(), req.AgentID, headroom.String())
	}
	acc.Balance = acc.Balance.Sub(req.Stake)

	bet := &domain.ExternalBet{
		BetID:        fmt.Sprintf("f402-%s", uuid.NewString()),
		AgentID:      req.AgentID,
		Status:       "accepted",
		Stake:        req.Stake,
		AcceptedOdds: req.Odds,
		PlacedAt:     time.Now().UTC(),
	}
	g.bets[bet.BetID] = bet

	g.log.Debug().
		Str("bet_id", bet.BetID).
		Str("agent_id", req.AgentID).
		Str("stake", req.Stake.String()).
		Msg("Sandbox bet accepted")

	out := *bet
	return &out, nil
}

// GetAgentAccount returns a copy of the agent's account.
func (g *SandboxGateway) GetAgentAccount(ctx context.Context, agentID string) (*domain.AgentAccount, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	acc, ok := g.agents[agentID]
	if !ok {
		return nil, domain.NewDomainError(domain.CodeAccountNotFound, "agent %s is unknown to the gateway", agentID)
	}
	out := *acc
	return &out, nil
}
