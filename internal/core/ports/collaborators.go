package ports

import (
	"BackOffice/internal/core/domain"
	"context"

	"github.com/shopspring/decimal"
)

// BalanceService is the published contract of the Balance bounded context.
// Failures are *domain.DomainError values carrying a machine-readable code.
type BalanceService interface {
	CreateBalance(ctx context.Context, agentID, currency string, initial decimal.Decimal) (*domain.BalanceAccount, error)
	ProcessBalanceChange(ctx context.Context, change domain.BalanceChange) (*domain.BalanceAccount, error)
	GetBalanceStatus(ctx context.Context, agentID string) (*domain.BalanceAccount, error)
	Freeze(ctx context.Context, agentID, reason string) error
	Unfreeze(ctx context.Context, agentID string) error
}

// CollectionsService is the published contract of the Collections bounded context.
// It announces outcomes as payment.processed / payment.failed events.
type CollectionsService interface {
	ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error)
}

// BetGateway is the external sportsbook the agents place bets with.
type BetGateway interface {
	PlaceBet(ctx context.Context, req domain.ExternalBetRequest) (*domain.ExternalBet, error)
	GetAgentAccount(ctx context.Context, agentID string) (*domain.AgentAccount, error)
}
