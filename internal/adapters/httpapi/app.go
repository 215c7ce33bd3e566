package httpapi

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/services/mapper"
	"BackOffice/internal/core/services/orchestrator"
	"BackOffice/internal/core/services/workflow"
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// EventIngress is the mapper surface the API needs.
type EventIngress interface {
	ProcessExternalEvent(ctx context.Context, ext domain.ExternalEvent, preserveOrder bool) (int, error)
	ProcessExternalEventsBatch(ctx context.Context, events []domain.ExternalEvent, preserveOrder bool) mapper.BatchResult
}

// Processes starts and queries orchestrated business processes.
type Processes interface {
	CustomerDeposit(ctx context.Context, req orchestrator.DepositRequest) (*domain.BusinessProcessResult, error)
	AgentBetPlacement(ctx context.Context, req orchestrator.BetRequest) (*domain.BusinessProcessResult, error)
	CustomerOnboarding(ctx context.Context, req orchestrator.OnboardingRequest) (*domain.BusinessProcessResult, error)
	GetProcessStatus(id string) *domain.BusinessProcessResult
}

// Workflows starts and queries workflow instances.
type Workflows interface {
	StartWorkflow(ctx context.Context, name string, payload domain.Payload) (string, error)
	GetWorkflowStatus(id string) *domain.WorkflowContext
	GetStats() workflow.Stats
}

// Deps are the services behind the routes.
type Deps struct {
	Events    EventIngress
	Processes Processes
	Workflows Workflows
}

// NewApp builds the fiber application with every route registered.
func NewApp(deps Deps, baseLogger *zerolog.Logger) *fiber.App {
	log := baseLogger.With().Str("component", "http_api").Logger()

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
			return ErrorResponseJSON(c, status, "Internal Server Error", err.Error())
		},
	})

	app.Use(recover.New())
	app.Use(requestLogger(log))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	h := &handler{deps: deps, log: log}
	v1 := app.Group("/v1")
	v1.Post("/external-events", h.postExternalEvent)
	v1.Post("/external-events/batch", h.postExternalEventsBatch)

	v1.Post("/processes/deposit", h.postDeposit)
	v1.Post("/processes/bet", h.postBet)
	v1.Post("/processes/onboarding", h.postOnboarding)
	v1.Get("/processes/:id", h.getProcess)

	// stats is registered before :id so it is not captured as an id.
	v1.Get("/workflows/stats", h.getWorkflowStats)
	v1.Get("/workflows/:id", h.getWorkflow)
	v1.Post("/workflows/:name/start", h.startWorkflow)

	return app
}

func requestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		log.Debug().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
		return err
	}
}
