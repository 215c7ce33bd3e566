package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceAccount is the Balance context's view of an agent or customer account.
type BalanceAccount struct {
	AgentID      string          `json:"agentId"`
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	Reserved     decimal.Decimal `json:"reserved"`
	Frozen       bool            `json:"frozen"`
	FrozenReason string          `json:"frozenReason,omitempty"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Available is the balance not held by reservations.
func (a *BalanceAccount) Available() decimal.Decimal {
	return a.Balance.Sub(a.Reserved)
}

// ChangeType is the direction of a balance change.
type ChangeType string

const (
	ChangeCredit ChangeType = "credit"
	ChangeDebit  ChangeType = "debit"
)

// BalanceChange is a validated request to move funds on one account.
type BalanceChange struct {
	AgentID   string          `json:"agentId" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Type      ChangeType      `json:"type" validate:"oneof=credit debit"`
	Reason    string          `json:"reason" validate:"required"`
	Reference string          `json:"reference,omitempty"`
}
