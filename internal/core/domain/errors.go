package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorCode is a machine-readable error classification.
type ErrorCode string

const (
	CodeValidation            ErrorCode = "VALIDATION_ERROR"
	CodeInsufficientBalance   ErrorCode = "INSUFFICIENT_BALANCE"
	CodeAccountNotFound       ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeAccountExists         ErrorCode = "ACCOUNT_EXISTS"
	CodeAccountFrozen         ErrorCode = "ACCOUNT_FROZEN"
	CodeHighRiskPayment       ErrorCode = "HIGH_RISK_PAYMENT"
	CodePaymentDeclined       ErrorCode = "PAYMENT_DECLINED"
	CodeGateway               ErrorCode = "GATEWAY_ERROR"
	CodeMappingFailed         ErrorCode = "MAPPING_FAILED"
	CodeWorkflowNotFound      ErrorCode = "WORKFLOW_NOT_FOUND"
	CodeIntrospectionDisabled ErrorCode = "INTROSPECTION_DISABLED"
)

// DomainError is a business or validation failure raised by a bounded context.
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is matches any DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
	}
	return false
}

// NewDomainError creates a DomainError.
func NewDomainError(code ErrorCode, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError creates a validation DomainError.
func NewValidationError(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, format, args...)
}

// ErrInsufficientBalance reports a stake or debit above the available funds.
func ErrInsufficientBalance(agentID string, requested, available decimal.Decimal) *DomainError {
	return NewDomainError(CodeInsufficientBalance,
		"agent %s requested %s but only %s is available", agentID, requested.String(), available.String())
}

// ErrIntrospectionDisabled is returned by testing-only inspection in production.
var ErrIntrospectionDisabled = &DomainError{
	Code:    CodeIntrospectionDisabled,
	Message: "published-event introspection is not available in production",
}

// MappingError wraps a failure raised inside an external event mapper.
type MappingError struct {
	ExternalType string
	EventID      string
	Err          error
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("mapping %s (event %s) failed: %v", e.ExternalType, e.EventID, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// CodeOf walks err's chain and returns the outermost classification found.
func CodeOf(err error) ErrorCode {
	for err != nil {
		switch e := err.(type) {
		case *DomainError:
			return e.Code
		case *MappingError:
			return CodeMappingFailed
		}
		err = errors.Unwrap(err)
	}
	return ""
}

// IsCode reports whether err carries the given classification.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
