package balance

import (
	"BackOffice/internal/adapters/eventbus"
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (ports.BalanceService, *[]domain.Event) {
	t.Helper()
	nopLogger := zerolog.Nop()
	bus := eventbus.NewInMemoryEventBus(&nopLogger)

	var seen []domain.Event
	record := func(ctx context.Context, e domain.Event) error {
		seen = append(seen, e)
		return nil
	}
	for _, eventType := range []string{
		domain.EventBalanceCreated,
		domain.EventBalanceThresholdExceeded,
		domain.EventBalanceFrozen,
		domain.EventBalanceUnfrozen,
	} {
		bus.Subscribe(eventType, record)
	}

	svc := NewService(bus, Options{AlertThreshold: decimal.NewFromInt(1000)}, &nopLogger)
	return svc, &seen
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateBalance(t *testing.T) {
	svc, seen := setup(t)
	ctx := context.Background()

	acc, err := svc.CreateBalance(ctx, "agent-1", "USD", dec("100"))
	require.NoError(t, err)
	assert.True(t, acc.Balance.Equal(dec("100")))
	require.Len(t, *seen, 1)
	assert.Equal(t, domain.EventBalanceCreated, (*seen)[0].Type)

	_, err = svc.CreateBalance(ctx, "agent-1", "USD", decimal.Zero)
	assert.True(t, domain.IsCode(err, domain.CodeAccountExists))

	_, err = svc.CreateBalance(ctx, "agent-2", "US", decimal.Zero)
	assert.True(t, domain.IsCode(err, domain.CodeValidation))

	_, err = svc.CreateBalance(ctx, "agent-3", "USD", dec("-1"))
	assert.True(t, domain.IsCode(err, domain.CodeValidation))
}

func TestProcessBalanceChange(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	_, err := svc.CreateBalance(ctx, "agent-1", "USD", dec("500"))
	require.NoError(t, err)

	testCases := []struct {
		name        string
		change      domain.BalanceChange
		wantCode    domain.ErrorCode
		wantBalance string
	}{
		{
			name:        "credit",
			change:      domain.BalanceChange{AgentID: "agent-1", Amount: dec("100.25"), Type: domain.ChangeCredit, Reason: "deposit"},
			wantBalance: "600.25",
		},
		{
			name:        "debit",
			change:      domain.BalanceChange{AgentID: "agent-1", Amount: dec("0.25"), Type: domain.ChangeDebit, Reason: "bet"},
			wantBalance: "600",
		},
		{
			name:     "debit above available",
			change:   domain.BalanceChange{AgentID: "agent-1", Amount: dec("600.01"), Type: domain.ChangeDebit, Reason: "bet"},
			wantCode: domain.CodeInsufficientBalance,
		},
		{
			name:     "unknown account",
			change:   domain.BalanceChange{AgentID: "ghost", Amount: dec("1"), Type: domain.ChangeCredit, Reason: "deposit"},
			wantCode: domain.CodeAccountNotFound,
		},
		{
			name:     "non-positive amount",
			change:   domain.BalanceChange{AgentID: "agent-1", Amount: decimal.Zero, Type: domain.ChangeCredit, Reason: "deposit"},
			wantCode: domain.CodeValidation,
		},
		{
			name:     "unknown type",
			change:   domain.BalanceChange{AgentID: "agent-1", Amount: dec("1"), Type: "transfer", Reason: "x"},
			wantCode: domain.CodeValidation,
		},
		{
			name:     "missing reason",
			change:   domain.BalanceChange{AgentID: "agent-1", Amount: dec("1"), Type: domain.ChangeCredit},
			wantCode: domain.CodeValidation,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			acc, err := svc.ProcessBalanceChange(ctx, tc.change)
			if tc.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tc.wantCode, domain.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantBalance, acc.Balance.String())
		})
	}

	status, err := svc.GetBalanceStatus(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, "600", status.Balance.String())
}

func TestFreeze(t *testing.T) {
	svc, seen := setup(t)
	ctx := context.Background()
	_, err := svc.CreateBalance(ctx, "agent-1", "USD", dec("500"))
	require.NoError(t, err)

	require.NoError(t, svc.Freeze(ctx, "agent-1", "review"))
	require.NoError(t, svc.Freeze(ctx, "agent-1", "review again"))

	_, err = svc.ProcessBalanceChange(ctx, domain.BalanceChange{AgentID: "agent-1", Amount: dec("1"), Type: domain.ChangeDebit, Reason: "bet"})
	assert.True(t, domain.IsCode(err, domain.CodeAccountFrozen))

	_, err = svc.ProcessBalanceChange(ctx, domain.BalanceChange{AgentID: "agent-1", Amount: dec("1"), Type: domain.ChangeCredit, Reason: "deposit"})
	assert.NoError(t, err, "credits are accepted while frozen")

	require.NoError(t, svc.Unfreeze(ctx, "agent-1"))
	_, err = svc.ProcessBalanceChange(ctx, domain.BalanceChange{AgentID: "agent-1", Amount: dec("1"), Type: domain.ChangeDebit, Reason: "bet"})
	assert.NoError(t, err)

	var types []string
	for _, e := range *seen {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{domain.EventBalanceCreated, domain.EventBalanceFrozen, domain.EventBalanceUnfrozen}, types)

	assert.True(t, domain.IsCode(svc.Freeze(ctx, "ghost", "x"), domain.CodeAccountNotFound))
}

func TestThresholdAlertOnCrossingOnly(t *testing.T) {
	svc, seen := setup(t)
	ctx := context.Background()
	_, err := svc.CreateBalance(ctx, "agent-1", "USD", dec("900"))
	require.NoError(t, err)

	credit := domain.BalanceChange{AgentID: "agent-1", Amount: dec("200"), Type: domain.ChangeCredit, Reason: "deposit"}
	_, err = svc.ProcessBalanceChange(ctx, credit)
	require.NoError(t, err)
	_, err = svc.ProcessBalanceChange(ctx, credit)
	require.NoError(t, err)

	var alerts []domain.Event
	for _, e := range *seen {
		if e.Type == domain.EventBalanceThresholdExceeded {
			alerts = append(alerts, e)
		}
	}
	require.Len(t, alerts, 1)
	assert.Equal(t, "1100", alerts[0].Payload.String("balance", ""))
}
