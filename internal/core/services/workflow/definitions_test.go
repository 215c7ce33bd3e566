package workflow

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

// MockBalanceService
type MockBalanceService struct {
	mock.Mock
}

var _ ports.BalanceService = (*MockBalanceService)(nil)

func (m *MockBalanceService) CreateBalance(ctx context.Context, agentID, currency string, initial decimal.Decimal) (*domain.BalanceAccount, error) {
	args := m.Called(ctx, agentID, currency, initial)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceAccount), args.Error(1)
}

func (m *MockBalanceService) ProcessBalanceChange(ctx context.Context, change domain.BalanceChange) (*domain.BalanceAccount, error) {
	args := m.Called(ctx, change)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceAccount), args.Error(1)
}

func (m *MockBalanceService) GetBalanceStatus(ctx context.Context, agentID string) (*domain.BalanceAccount, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BalanceAccount), args.Error(1)
}

func (m *MockBalanceService) Freeze(ctx context.Context, agentID, reason string) error {
	args := m.Called(ctx, agentID, reason)
	return args.Error(0)
}

func (m *MockBalanceService) Unfreeze(ctx context.Context, agentID string) error {
	args := m.Called(ctx, agentID)
	return args.Error(0)
}

// MockCollectionsService
type MockCollectionsService struct {
	mock.Mock
}

var _ ports.CollectionsService = (*MockCollectionsService)(nil)

func (m *MockCollectionsService) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentResult), args.Error(1)
}

// MockBetGateway
type MockBetGateway struct {
	mock.Mock
}

var _ ports.BetGateway = (*MockBetGateway)(nil)

func (m *MockBetGateway) PlaceBet(ctx context.Context, req domain.ExternalBetRequest) (*domain.ExternalBet, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExternalBet), args.Error(1)
}

func (m *MockBetGateway) GetAgentAccount(ctx context.Context, agentID string) (*domain.AgentAccount, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AgentAccount), args.Error(1)
}

// --- Test Setup ---

type builtins struct {
	engine      *Engine
	balance     *MockBalanceService
	collections *MockCollectionsService
	gateway     *MockBetGateway

	mu        sync.Mutex
	published []domain.Event
}

func (b *builtins) capture(ctx context.Context, e domain.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, e)
	return nil
}

func (b *builtins) eventsOfType(eventType string) []domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.Event
	for _, e := range b.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newBuiltins(t *testing.T) *builtins {
	t.Helper()
	engine, bus := newTestEngine(t)
	b := &builtins{
		engine:      engine,
		balance:     new(MockBalanceService),
		collections: new(MockCollectionsService),
		gateway:     new(MockBetGateway),
	}
	for _, eventType := range []string{
		domain.NotificationDepositCompleted,
		domain.NotificationRiskAlert,
		domain.EventBalanceSynced,
		domain.EventBonusAwarded,
	} {
		bus.Subscribe(eventType, b.capture)
	}

	err := engine.RegisterDefaults(Deps{
		Bus:         bus,
		Balance:     b.balance,
		Collections: b.collections,
		Gateway:     b.gateway,
		Rules: Rules{
			HighValueBetThreshold: decimal.NewFromInt(10000),
			BonusMinDeposit:       decimal.NewFromInt(100),
			BonusRate:             decimal.RequireFromString("0.10"),
		},
	})
	require.NoError(t, err)
	return b
}

// --- Tests ---

func TestRegisterDefaults(t *testing.T) {
	b := newBuiltins(t)

	var names []string
	for _, def := range b.engine.Definitions() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{DepositProcessing, HighValueBetReview, BalanceSync, BonusAward}, names)
}

func TestDepositProcessing(t *testing.T) {
	b := newBuiltins(t)
	ctx := context.Background()

	b.collections.On("ProcessPayment", mock.Anything, mock.MatchedBy(func(req domain.PaymentRequest) bool {
		return req.CustomerID == "cust-1" && req.Amount.Equal(decimal.NewFromInt(250)) && req.Currency == "EUR"
	})).Return(&domain.PaymentResult{PaymentID: "pay-1", Status: domain.PaymentProcessed}, nil).Once()

	id, err := b.engine.StartWorkflow(ctx, DepositProcessing, domain.Payload{
		"customerId": "cust-1",
		"amount":     "250",
		"currency":   "eur",
		"method":     "card",
	})
	require.NoError(t, err)

	wc := b.engine.GetWorkflowStatus(id)
	assert.Equal(t, []string{"validate_deposit", "process_payment", "check_bonus", "send_notification"}, wc.CompletedSteps)
	assert.Equal(t, true, wc.Data["bonusEligible"])
	assert.Equal(t, "pay-1", wc.Data["paymentId"])

	notes := b.eventsOfType(domain.NotificationDepositCompleted)
	require.Len(t, notes, 1)
	assert.Equal(t, id, notes[0].Metadata.WorkflowID)
	b.collections.AssertExpectations(t)
}

func TestDepositProcessing_SmallDepositSkipsBonus(t *testing.T) {
	b := newBuiltins(t)

	b.collections.On("ProcessPayment", mock.Anything, mock.Anything).
		Return(&domain.PaymentResult{PaymentID: "pay-2", Status: domain.PaymentProcessed}, nil).Once()

	id, err := b.engine.StartWorkflow(context.Background(), DepositProcessing, domain.Payload{"customerId": "cust-2", "amount": 20})
	require.NoError(t, err)

	wc := b.engine.GetWorkflowStatus(id)
	assert.NotContains(t, wc.CompletedSteps, "check_bonus")
	assert.Equal(t, domain.StepSkipped, wc.Steps[2].Status)
}

func TestDepositProcessing_NegativeAmountNeverReachesCollections(t *testing.T) {
	b := newBuiltins(t)

	id, err := b.engine.StartWorkflow(context.Background(), DepositProcessing, domain.Payload{"customerId": "cust-3", "amount": -10})
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.CodeValidation))

	wc := b.engine.GetWorkflowStatus(id)
	assert.Equal(t, []string{"validate_deposit"}, wc.FailedSteps)
	b.collections.AssertNotCalled(t, "ProcessPayment", mock.Anything, mock.Anything)
}

func TestHighValueBetReview_CriticalFreezesAgent(t *testing.T) {
	b := newBuiltins(t)

	b.gateway.On("GetAgentAccount", mock.Anything, "agent-9").
		Return(&domain.AgentAccount{AgentID: "agent-9", Balance: decimal.NewFromInt(5000), CreditLimit: decimal.NewFromInt(1000)}, nil)
	b.balance.On("Freeze", mock.Anything, "agent-9", mock.AnythingOfType("string")).Return(nil).Once()

	id, err := b.engine.StartWorkflow(context.Background(), HighValueBetReview, domain.Payload{
		"betId": "bet-1", "agentId": "agent-9", "stake": "12000",
	})
	require.NoError(t, err)

	wc := b.engine.GetWorkflowStatus(id)
	assert.Equal(t, "critical", wc.Data["riskLevel"])
	assert.Contains(t, wc.CompletedSteps, "freeze_agent")

	alerts := b.eventsOfType(domain.NotificationRiskAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, string(domain.SeverityCritical), alerts[0].Payload.String("severity", ""))
	b.balance.AssertExpectations(t)
}

func TestHighValueBetReview_ElevatedDoesNotFreeze(t *testing.T) {
	b := newBuiltins(t)

	b.gateway.On("GetAgentAccount", mock.Anything, "agent-1").
		Return(nil, domain.NewDomainError(domain.CodeAccountNotFound, "agent agent-1 unknown"))

	id, err := b.engine.StartWorkflow(context.Background(), HighValueBetReview, domain.Payload{
		"betId": "bet-2", "agentId": "agent-1", "stake": 10500,
	})
	require.NoError(t, err, "the account lookup is optional")

	wc := b.engine.GetWorkflowStatus(id)
	assert.Equal(t, []string{"load_agent_account"}, wc.FailedSteps)
	assert.Equal(t, "elevated", wc.Data["riskLevel"])
	assert.Equal(t, domain.StepSkipped, wc.Steps[2].Status)
	b.balance.AssertNotCalled(t, "Freeze", mock.Anything, mock.Anything, mock.Anything)
}

func TestBalanceSync_ReconcilesDiscrepancy(t *testing.T) {
	b := newBuiltins(t)

	b.balance.On("GetBalanceStatus", mock.Anything, "agent-5").
		Return(&domain.BalanceAccount{AgentID: "agent-5", Balance: decimal.NewFromInt(800)}, nil)
	b.balance.On("ProcessBalanceChange", mock.Anything, mock.MatchedBy(func(c domain.BalanceChange) bool {
		return c.AgentID == "agent-5" && c.Type == domain.ChangeDebit && c.Amount.Equal(decimal.NewFromInt(50))
	})).Return(&domain.BalanceAccount{AgentID: "agent-5", Balance: decimal.NewFromInt(750)}, nil).Once()

	id, err := b.engine.StartWorkflow(context.Background(), BalanceSync, domain.Payload{"agentId": "agent-5", "balance": "750"})
	require.NoError(t, err)

	wc := b.engine.GetWorkflowStatus(id)
	assert.Equal(t, []string{"resolve_reported_balance", "fetch_local_balance", "reconcile", "publish_synced"}, wc.CompletedSteps)
	require.Len(t, b.eventsOfType(domain.EventBalanceSynced), 1)
	b.balance.AssertExpectations(t)
	b.gateway.AssertNotCalled(t, "GetAgentAccount", mock.Anything, mock.Anything)
}

func TestBalanceSync_InSyncSkipsReconcile(t *testing.T) {
	b := newBuiltins(t)

	b.gateway.On("GetAgentAccount", mock.Anything, "agent-6").
		Return(&domain.AgentAccount{AgentID: "agent-6", Balance: decimal.NewFromInt(300)}, nil)
	b.balance.On("GetBalanceStatus", mock.Anything, "agent-6").
		Return(&domain.BalanceAccount{AgentID: "agent-6", Balance: decimal.NewFromInt(300)}, nil)

	id, err := b.engine.StartWorkflow(context.Background(), BalanceSync, domain.Payload{"agentId": "agent-6"})
	require.NoError(t, err)

	wc := b.engine.GetWorkflowStatus(id)
	assert.Equal(t, domain.StepSkipped, wc.Steps[2].Status)
	b.balance.AssertNotCalled(t, "ProcessBalanceChange", mock.Anything, mock.Anything)
}

func TestBonusAward(t *testing.T) {
	testCases := []struct {
		name        string
		payload     domain.Payload
		expectAward bool
	}{
		{
			name:        "eligible deposit",
			payload:     domain.Payload{"customerId": "cust-1", "amount": "500", "eligible": true, "paymentId": "pay-1"},
			expectAward: true,
		},
		{
			name:    "flagged ineligible",
			payload: domain.Payload{"customerId": "cust-1", "amount": "500", "eligible": false},
		},
		{
			name:    "below minimum",
			payload: domain.Payload{"customerId": "cust-1", "amount": "50", "eligible": true},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBuiltins(t)
			if tc.expectAward {
				b.balance.On("ProcessBalanceChange", mock.Anything, mock.MatchedBy(func(c domain.BalanceChange) bool {
					return c.Type == domain.ChangeCredit && c.Amount.Equal(decimal.NewFromInt(50)) && c.Reference == "bonus:pay-1"
				})).Return(&domain.BalanceAccount{AgentID: "cust-1"}, nil).Once()
			}

			_, err := b.engine.StartWorkflow(context.Background(), BonusAward, tc.payload)
			require.NoError(t, err)

			awarded := b.eventsOfType(domain.EventBonusAwarded)
			if tc.expectAward {
				require.Len(t, awarded, 1)
				assert.Equal(t, "50", awarded[0].Payload.String("bonus", ""))
			} else {
				assert.Empty(t, awarded)
				b.balance.AssertNotCalled(t, "ProcessBalanceChange", mock.Anything, mock.Anything)
			}
			b.balance.AssertExpectations(t)
		})
	}
}
