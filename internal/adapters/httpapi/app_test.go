package httpapi

import (
	"BackOffice/internal/adapters/balance"
	"BackOffice/internal/adapters/collections"
	"BackOffice/internal/adapters/eventbus"
	"BackOffice/internal/adapters/fantasy402"
	"BackOffice/internal/adapters/memory"
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/saga"
	"BackOffice/internal/core/services/handlers"
	"BackOffice/internal/core/services/mapper"
	"BackOffice/internal/core/services/orchestrator"
	"BackOffice/internal/core/services/workflow"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test Setup ---

type fixture struct {
	app    *fiber.App
	mapper *mapper.Mapper
	engine *workflow.Engine
	orch   *orchestrator.Orchestrator
}

func setup(t *testing.T) fixture {
	t.Helper()
	nopLogger := zerolog.Nop()

	bus := eventbus.NewInMemoryEventBus(&nopLogger)
	runner := saga.NewRunner(bus, memory.NewStepJournal(), saga.Options{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}, &nopLogger)

	bal := balance.NewService(bus, balance.Options{AlertThreshold: decimal.NewFromInt(100000)}, &nopLogger)
	coll := collections.NewService(bus, collections.Options{RiskLimit: decimal.NewFromInt(50000)}, &nopLogger)
	gw := fantasy402.NewSandboxGateway(fantasy402.SandboxOptions{DefaultCreditLimit: decimal.NewFromInt(5000)}, &nopLogger)

	m := mapper.New(bus, mapper.Options{}, &nopLogger)
	mapper.RegisterDefaultMappings(m)

	engine := workflow.NewEngine(bus, runner, &nopLogger)
	require.NoError(t, engine.RegisterDefaults(workflow.Deps{
		Bus:         bus,
		Balance:     bal,
		Collections: coll,
		Gateway:     gw,
		Rules: workflow.Rules{
			HighValueBetThreshold: decimal.NewFromInt(10000),
			BonusMinDeposit:       decimal.NewFromInt(100),
			BonusRate:             decimal.RequireFromString("0.10"),
		},
	}))

	orch := orchestrator.New(orchestrator.Deps{
		Bus:         bus,
		Balance:     bal,
		Collections: coll,
		Gateway:     gw,
		Runner:      runner,
	}, orchestrator.Options{RiskStakeThreshold: decimal.NewFromInt(5000)}, &nopLogger)

	handlers.New(bal, memory.NewIdempotencyStore(), handlers.Rules{
		HighValueBetThreshold: decimal.NewFromInt(10000),
		BonusMinDeposit:       decimal.NewFromInt(100),
	}, &nopLogger).Register(bus)

	app := NewApp(Deps{Events: m, Processes: orch, Workflows: engine}, &nopLogger)
	return fixture{app: app, mapper: m, engine: engine, orch: orch}
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func externalBet(id string, stake float64) map[string]any {
	return map[string]any{
		"eventType": mapper.TypeBetPlaced,
		"eventId":   id,
		"source":    "fantasy402",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"payload": map[string]any{
			"bet": map[string]any{
				"id":          "bet-" + id,
				"agent_id":    "agent-1",
				"customer_id": "cust-1",
				"stake":       stake,
			},
		},
	}
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	f := setup(t)
	resp, body := do(t, f.app, http.MethodGet, "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestPostExternalEvent(t *testing.T) {
	f := setup(t)

	t.Run("accepted and published", func(t *testing.T) {
		resp, body := do(t, f.app, http.MethodPost, "/v1/external-events", externalBet("ext-1", 250))
		assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
		assert.Equal(t, float64(1), body["published"])

		events, err := f.mapper.PublishedEventsByType(domain.EventExternalBetPlaced)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "ext-1", events[0].Metadata.ExternalEventID)
	})

	t.Run("invalid envelope lists violations", func(t *testing.T) {
		resp, body := do(t, f.app, http.MethodPost, "/v1/external-events", map[string]any{"eventType": mapper.TypeBetPlaced})
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, "application/problem+json", resp.Header.Get(fiber.HeaderContentType))
		violations, ok := body["errors"].([]any)
		require.True(t, ok, "%v", body)
		assert.NotEmpty(t, violations)
	})

	t.Run("mapping failure", func(t *testing.T) {
		resp, body := do(t, f.app, http.MethodPost, "/v1/external-events", externalBet("ext-2", -5))
		assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, string(domain.CodeMappingFailed), body["code"])
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/external-events", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		resp, err := f.app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})
}

func TestPostExternalEventsBatch(t *testing.T) {
	f := setup(t)
	batch := []any{
		externalBet("b-1", 10),
		map[string]any{"eventType": mapper.TypeBetPlaced, "eventId": "b-2"},
		externalBet("b-3", 20),
	}

	resp, body := do(t, f.app, http.MethodPost, "/v1/external-events/batch?preserveOrder=false", batch)
	assert.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)
	assert.Equal(t, float64(2), body["processed"])
	assert.Equal(t, float64(1), body["failed"])
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "b-2", errs[0].(map[string]any)["eventId"])
}

func TestDepositProcess_EndToEnd(t *testing.T) {
	f := setup(t)

	resp, body := do(t, f.app, http.MethodPost, "/v1/processes/deposit", map[string]any{
		"customerId": "cust-9",
		"amount":     "250",
		"currency":   "usd",
		"method":     "card",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, "%v", body)
	processID := body["processId"].(string)
	result := body["result"].(map[string]any)
	assert.NotEmpty(t, result["paymentId"])

	// The credit reaction opened the account and the bonus workflow ran.
	stats := f.engine.GetStats()
	assert.Equal(t, 1, stats.Completed)

	resp, body = do(t, f.app, http.MethodGet, "/v1/processes/"+processID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, orchestrator.ProcessCustomerDeposit, body["processName"])

	f.orch.CleanupCompletedProcesses(0)
	resp, _ = do(t, f.app, http.MethodGet, "/v1/processes/"+processID, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDepositProcess_FailureKeepsResultShape(t *testing.T) {
	f := setup(t)

	resp, body := do(t, f.app, http.MethodPost, "/v1/processes/deposit", map[string]any{
		"customerId": "cust-9",
		"amount":     "-10",
		"currency":   "USD",
		"method":     "card",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validate_payment", body["failedStep"])
	assert.Equal(t, string(domain.CodeValidation), body["errorCode"])
	assert.NotEmpty(t, body["processId"])
}

func TestBetProcess_InsufficientBalance(t *testing.T) {
	f := setup(t)

	resp, body := do(t, f.app, http.MethodPost, "/v1/processes/bet", map[string]any{
		"agentId":    "agent-unknown",
		"customerId": "cust-1",
		"eventId":    "evt-1",
		"selection":  "home",
		"stake":      "100",
		"odds":       "2.1",
	})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "validate_balance", body["failedStep"])
	assert.Equal(t, string(domain.CodeAccountNotFound), body["errorCode"])
}

func TestWorkflowRoutes(t *testing.T) {
	f := setup(t)

	t.Run("unknown workflow", func(t *testing.T) {
		resp, body := do(t, f.app, http.MethodPost, "/v1/workflows/nope/start", map[string]any{})
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, string(domain.CodeWorkflowNotFound), body["code"])
	})

	t.Run("start and query", func(t *testing.T) {
		resp, body := do(t, f.app, http.MethodPost, "/v1/workflows/"+workflow.BonusAward+"/start", map[string]any{
			"customerId": "cust-1",
			"paymentId":  "pay-1",
			"amount":     "50",
			"eligible":   false,
		})
		require.Equal(t, fiber.StatusCreated, resp.StatusCode, "%v", body)
		id := body["workflowId"].(string)

		resp, body = do(t, f.app, http.MethodGet, "/v1/workflows/"+id, nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, workflow.BonusAward, body["workflowName"])

		resp, body = do(t, f.app, http.MethodGet, "/v1/workflows/stats", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, float64(4), body["totalDefined"])
	})

	t.Run("missing instance", func(t *testing.T) {
		resp, _ := do(t, f.app, http.MethodGet, "/v1/workflows/does-not-exist", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}
