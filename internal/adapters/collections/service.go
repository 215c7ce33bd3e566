package collections

import (
	"BackOffice/internal/core/domain"
	"BackOffice/internal/core/ports"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Options configures payment acceptance.
type Options struct {
	// RiskLimit rejects single payments above it as high risk. Zero disables the check.
	RiskLimit decimal.Decimal
}

// service is an in-memory Collections bounded context. Outcomes are announced
// as payment.processed and payment.failed events.
type service struct {
	bus      ports.EventBus
	opts     Options
	log      zerolog.Logger
	validate *validator.Validate

	mu          sync.Mutex
	byReference map[string]*domain.PaymentResult
}

var _ ports.CollectionsService = (*service)(nil)

// NewService creates the Collections context.
func NewService(bus ports.EventBus, opts Options, baseLogger *zerolog.Logger) ports.CollectionsService {
	return &service{
		bus:         bus,
		opts:        opts,
		log:         baseLogger.With().Str("component", "collections_service").Logger(),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		byReference: make(map[string]*domain.PaymentResult),
	}
}

// ProcessPayment accepts a payment once per reference. A repeated reference
// returns the original result without announcing it again.
func (s *service) ProcessPayment(ctx context.Context, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	req.Currency = strings.ToUpper(req.Currency)
	log := s.log.With().Str("customer_id", req.CustomerID).Str("reference", req.Reference).Logger()

	// 1. Validate
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.NewValidationError("invalid payment request: %v", err)
	}
	if !req.Amount.IsPositive() {
		return nil, domain.NewValidationError("payment amount must be positive, got %s", req.Amount.String())
	}

	// 2. Replay, or reserve the reference. Lookup and insert share one critical
	// section so concurrent callers with the same reference accept it once.
	s.mu.Lock()
	if prev, seen := s.byReference[req.Reference]; seen && req.Reference != "" {
		s.mu.Unlock()
		log.Info().Str("payment_id", prev.PaymentID).Msg("Payment reference already processed")
		res := *prev
		return &res, nil
	}

	// 3. Risk
	if s.opts.RiskLimit.IsPositive() && req.Amount.GreaterThan(s.opts.RiskLimit) {
		s.mu.Unlock()
		err := domain.NewDomainError(domain.CodeHighRiskPayment,
			"payment of %s exceeds the single payment limit of %s", req.Amount.String(), s.opts.RiskLimit.String())
		log.Warn().Err(err).Msg("Payment rejected")
		s.publish(ctx, domain.EventPaymentFailed, req.CustomerID, domain.Payload{
			"customerId": req.CustomerID,
			"amount":     req.Amount.String(),
			"currency":   req.Currency,
			"reference":  req.Reference,
			"error":      err.Message,
			"code":       string(err.Code),
		})
		return nil, err
	}

	// 4. Accept
	res := &domain.PaymentResult{
		PaymentID:   uuid.NewString(),
		CustomerID:  req.CustomerID,
		Status:      domain.PaymentProcessed,
		Amount:      req.Amount,
		Currency:    req.Currency,
		ProcessedAt: time.Now().UTC(),
	}
	if req.Reference != "" {
		s.byReference[req.Reference] = res
	}
	s.mu.Unlock()
	log.Info().Str("payment_id", res.PaymentID).Str("amount", res.Amount.String()).Msg("Payment processed")

	s.publish(ctx, domain.EventPaymentProcessed, req.CustomerID, domain.Payload{
		"paymentId":  res.PaymentID,
		"customerId": res.CustomerID,
		"amount":     res.Amount.String(),
		"currency":   res.Currency,
		"method":     req.Method,
		"reference":  req.Reference,
	})

	out := *res
	return &out, nil
}

// publish announces a payment outcome. The payment is already settled, so
// subscriber failures are logged, not returned.
func (s *service) publish(ctx context.Context, eventType, customerID string, payload domain.Payload) {
	evt := domain.NewEvent(eventType, customerID, domain.AggregateCustomer, payload)
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.log.Error().Err(err).Str("type", eventType).Str("customer_id", customerID).Msg("Subscriber failed on payment event")
	}
}
