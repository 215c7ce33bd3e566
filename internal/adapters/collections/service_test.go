package collections

import (
	"BackOffice/internal/adapters/eventbus"
	"BackOffice/internal/core/domain"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	events []domain.Event
}

func (p *published) handle(ctx context.Context, e domain.Event) error {
	p.events = append(p.events, e)
	return nil
}

func request(amount string) domain.PaymentRequest {
	return domain.PaymentRequest{
		CustomerID: "cust-1",
		Amount:     decimal.RequireFromString(amount),
		Currency:   "usd",
		Method:     "card",
		Reference:  "ref-" + amount,
	}
}

func TestProcessPayment(t *testing.T) {
	nopLogger := zerolog.Nop()
	bus := eventbus.NewInMemoryEventBus(&nopLogger)
	processed, failed := &published{}, &published{}
	bus.Subscribe(domain.EventPaymentProcessed, processed.handle)
	bus.Subscribe(domain.EventPaymentFailed, failed.handle)

	svc := NewService(bus, Options{RiskLimit: decimal.NewFromInt(50000)}, &nopLogger)
	ctx := context.Background()

	t.Run("accepted", func(t *testing.T) {
		res, err := svc.ProcessPayment(ctx, request("125.50"))
		require.NoError(t, err)
		assert.NotEmpty(t, res.PaymentID)
		assert.Equal(t, domain.PaymentProcessed, res.Status)
		assert.Equal(t, "USD", res.Currency)

		require.Len(t, processed.events, 1)
		evt := processed.events[0]
		assert.Equal(t, res.PaymentID, evt.Payload.String("paymentId", ""))
		assert.Equal(t, "125.5", evt.Payload.String("amount", ""))
		assert.Equal(t, "cust-1", evt.AggregateID)
	})

	t.Run("same reference is replayed", func(t *testing.T) {
		first, err := svc.ProcessPayment(ctx, request("10"))
		require.NoError(t, err)
		second, err := svc.ProcessPayment(ctx, request("10"))
		require.NoError(t, err)
		assert.Equal(t, first.PaymentID, second.PaymentID)
		assert.Len(t, processed.events, 2, "the replay is not announced again")
	})

	t.Run("high risk", func(t *testing.T) {
		_, err := svc.ProcessPayment(ctx, request("50000.01"))
		require.Error(t, err)
		assert.True(t, domain.IsCode(err, domain.CodeHighRiskPayment))
		require.Len(t, failed.events, 1)
		assert.Equal(t, string(domain.CodeHighRiskPayment), failed.events[0].Payload.String("code", ""))
	})

	t.Run("validation", func(t *testing.T) {
		for _, req := range []domain.PaymentRequest{
			{CustomerID: "c", Amount: decimal.NewFromInt(-10), Currency: "USD", Method: "card"},
			{CustomerID: "c", Amount: decimal.NewFromInt(10), Currency: "USD", Method: "cash"},
			{Amount: decimal.NewFromInt(10), Currency: "USD", Method: "card"},
		} {
			_, err := svc.ProcessPayment(ctx, req)
			assert.True(t, domain.IsCode(err, domain.CodeValidation), "%+v", req)
		}
	})
}

func TestProcessPayment_SubscriberFailureDoesNotFailPayment(t *testing.T) {
	nopLogger := zerolog.Nop()
	bus := eventbus.NewInMemoryEventBus(&nopLogger)
	bus.Subscribe(domain.EventPaymentProcessed, func(ctx context.Context, e domain.Event) error {
		return errors.New("balance unavailable")
	})

	svc := NewService(bus, Options{}, &nopLogger)
	res, err := svc.ProcessPayment(context.Background(), request("99"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentProcessed, res.Status)
}

func TestProcessPayment_ConcurrentSameReferenceAcceptedOnce(t *testing.T) {
	nopLogger := zerolog.Nop()
	bus := eventbus.NewInMemoryEventBus(&nopLogger)
	var announced atomic.Int32
	bus.Subscribe(domain.EventPaymentProcessed, func(ctx context.Context, e domain.Event) error {
		announced.Add(1)
		return nil
	})
	svc := NewService(bus, Options{}, &nopLogger)

	const callers = 50
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.ProcessPayment(context.Background(), request("75"))
			if assert.NoError(t, err) {
				ids[i] = res.PaymentID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), announced.Load())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}
