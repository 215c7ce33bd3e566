package ports

import (
	"BackOffice/internal/core/domain"
	"context"
	"time"
)

// StepJournal is an append-only record of step transitions keyed by run id.
// It is an audit trail; runs are never resumed from it.
type StepJournal interface {
	Append(ctx context.Context, entry domain.StepTransition) error
	ListByRun(ctx context.Context, runID string) ([]domain.StepTransition, error)
}

// IdempotencyStore lets event consumers discard duplicate deliveries.
type IdempotencyStore interface {
	// Claim returns true the first time key is seen within ttl.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
