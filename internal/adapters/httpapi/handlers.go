package httpapi

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/services/mapper"
	"BackOffice/internal/core/services/orchestrator"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type handler struct {
	deps Deps
	log  zerolog.Logger
}

type externalEventResponse struct {
	EventID   string `json:"eventId"`
	Published int    `json:"published"`
}

// postExternalEvent validates strictly before mapping: a malformed envelope is
// rejected with its violations and never reaches a mapping function.
func (h *handler) postExternalEvent(c *fiber.Ctx) error {
	var ext domain.ExternalEvent
	if err := c.BodyParser(&ext); err != nil {
		return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}
	if ok, violations := mapper.ValidateExternalEvent(ext); !ok {
		return ErrorResponseJSON(c, fiber.StatusUnprocessableEntity, "Invalid external event", violations)
	}

	n, err := h.deps.Events.ProcessExternalEvent(c.UserContext(), ext, c.QueryBool("preserveOrder", true))
	if err != nil {
		h.log.Warn().Err(err).Str("event_id", ext.EventID).Msg("External event rejected")
		return domainErrorJSON(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(externalEventResponse{EventID: ext.EventID, Published: n})
}

func (h *handler) postExternalEventsBatch(c *fiber.Ctx) error {
	var events []domain.ExternalEvent
	if err := c.BodyParser(&events); err != nil {
		return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}

	res := h.deps.Events.ProcessExternalEventsBatch(c.UserContext(), events, c.QueryBool("preserveOrder", true))
	if res.Errors == nil {
		res.Errors = []mapper.BatchError{}
	}
	status := fiber.StatusOK
	if res.Failed > 0 {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(res)
}

func (h *handler) postDeposit(c *fiber.Ctx) error {
	var req orchestrator.DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}
	res, err := h.deps.Processes.CustomerDeposit(c.UserContext(), req)
	return processResponse(c, res, err)
}

func (h *handler) postBet(c *fiber.Ctx) error {
	var req orchestrator.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}
	res, err := h.deps.Processes.AgentBetPlacement(c.UserContext(), req)
	return processResponse(c, res, err)
}

func (h *handler) postOnboarding(c *fiber.Ctx) error {
	var req orchestrator.OnboardingRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
	}
	res, err := h.deps.Processes.CustomerOnboarding(c.UserContext(), req)
	return processResponse(c, res, err)
}

// processResponse returns the result with the same shape on success and
// failure; only the status differs.
func processResponse(c *fiber.Ctx, res *domain.BusinessProcessResult, err error) error {
	if err == nil {
		return c.Status(fiber.StatusCreated).JSON(res)
	}
	var perr *orchestrator.ProcessError
	if errors.As(err, &perr) {
		return c.Status(ErrorToStatusCode(domain.CodeOf(err))).JSON(perr.Result)
	}
	return domainErrorJSON(c, err)
}

func (h *handler) getProcess(c *fiber.Ctx) error {
	res := h.deps.Processes.GetProcessStatus(c.Params("id"))
	if res == nil {
		return ErrorResponseJSON(c, fiber.StatusNotFound, "Not Found", "process not found")
	}
	return c.JSON(res)
}

type startWorkflowResponse struct {
	WorkflowID string `json:"workflowId"`
	Error      string `json:"error,omitempty"`
}

func (h *handler) startWorkflow(c *fiber.Ctx) error {
	payload := domain.Payload{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return ErrorResponseJSON(c, fiber.StatusBadRequest, "Invalid request body", err.Error())
		}
	}

	id, err := h.deps.Workflows.StartWorkflow(c.UserContext(), c.Params("name"), payload)
	if id == "" {
		return domainErrorJSON(c, err)
	}
	if err != nil {
		return c.Status(ErrorToStatusCode(domain.CodeOf(err))).JSON(startWorkflowResponse{WorkflowID: id, Error: err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(startWorkflowResponse{WorkflowID: id})
}

func (h *handler) getWorkflow(c *fiber.Ctx) error {
	wc := h.deps.Workflows.GetWorkflowStatus(c.Params("id"))
	if wc == nil {
		return ErrorResponseJSON(c, fiber.StatusNotFound, "Not Found", "workflow not found")
	}
	return c.JSON(wc)
}

func (h *handler) getWorkflowStats(c *fiber.Ctx) error {
	return c.JSON(h.deps.Workflows.GetStats())
}
