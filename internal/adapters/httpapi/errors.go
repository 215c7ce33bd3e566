package httpapi

import (
	"BackOffice/internal/core/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// ProblemDetails follows RFC 9457 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type,omitempty"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
	Errors   any    `json:"errors,omitempty"`
}

// ErrorResponseJSON writes a problem+json response. A string detail becomes
// Detail; anything else is reported under Errors.
func ErrorResponseJSON(c *fiber.Ctx, status int, title string, detail any) error {
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Instance: c.OriginalURL(),
	}
	if detail != nil {
		if s, ok := detail.(string); ok {
			pd.Detail = s
		} else {
			pd.Errors = detail
		}
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(pd)
}

// domainErrorJSON maps err's code to a status and writes it.
func domainErrorJSON(c *fiber.Ctx, err error) error {
	code := domain.CodeOf(err)
	status := ErrorToStatusCode(code)
	pd := ProblemDetails{
		Type:     "about:blank",
		Title:    utils.StatusMessage(status),
		Status:   status,
		Detail:   err.Error(),
		Instance: c.OriginalURL(),
		Code:     string(code),
	}
	c.Set(fiber.HeaderContentType, "application/problem+json")
	return c.Status(status).JSON(pd)
}

// ErrorToStatusCode maps domain error codes to HTTP status codes.
func ErrorToStatusCode(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation, domain.CodeMappingFailed:
		return fiber.StatusUnprocessableEntity
	case domain.CodeAccountNotFound, domain.CodeWorkflowNotFound:
		return fiber.StatusNotFound
	case domain.CodeAccountExists:
		return fiber.StatusConflict
	case domain.CodeInsufficientBalance, domain.CodeAccountFrozen,
		domain.CodeHighRiskPayment, domain.CodePaymentDeclined:
		return fiber.StatusUnprocessableEntity
	case domain.CodeGateway:
		return fiber.StatusBadGateway
	case domain.CodeIntrospectionDisabled:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}
