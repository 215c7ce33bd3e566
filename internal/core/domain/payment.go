package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentRequest is handed to the Collections context.
type PaymentRequest struct {
	CustomerID string          `json:"customerId" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency" validate:"required,len=3"`
	Method     string          `json:"method" validate:"required,oneof=card bank_transfer crypto wallet"`
	Reference  string          `json:"reference,omitempty"`
}

// PaymentStatus is the outcome reported by Collections.
type PaymentStatus string

const (
	PaymentProcessed PaymentStatus = "processed"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentResult is returned by Collections for an accepted payment.
type PaymentResult struct {
	PaymentID   string          `json:"paymentId"`
	CustomerID  string          `json:"customerId"`
	Status      PaymentStatus   `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	ProcessedAt time.Time       `json:"processedAt"`
}
