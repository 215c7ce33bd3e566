package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExternalBetRequest is sent to the external betting gateway.
type ExternalBetRequest struct {
	AgentID    string
	CustomerID string
	EventID    string
	Selection  string
	Stake      decimal.Decimal
	Odds       decimal.Decimal
}

// ExternalBet is the gateway's record of an accepted bet.
type ExternalBet struct {
	BetID        string
	AgentID      string
	Status       string
	Stake        decimal.Decimal
	AcceptedOdds decimal.Decimal
	PlacedAt     time.Time
}

// AgentAccount is the gateway's view of an agent.
type AgentAccount struct {
	AgentID     string
	Balance     decimal.Decimal
	CreditLimit decimal.Decimal
	Active      bool
}
