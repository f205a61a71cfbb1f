package payment

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/domain"
)

type fakeCreator struct {
	calls int64
	delay time.Duration
	env   *backend.Envelope
	err   error
}

func (f *fakeCreator) CreateFromCart(ctx context.Context, req backend.CreateRequest) (*backend.Envelope, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.env, f.err
}

func envelope(data string) *backend.Envelope {
	return &backend.Envelope{
		StatusCode: 200,
		Result:     backend.EnvelopeResult{Data: []byte(data)},
	}
}

func TestCreatePayment_RedirectFlow(t *testing.T) {
	creator := &fakeCreator{env: envelope(`{"id":"pay-1","paymentUrl":"https://pay.vnpay.vn/session/abc"}`)}
	orch := NewOrchestrator(creator, zerolog.Nop())

	out, err := orch.CreatePayment(context.Background(), "sess-1", backend.CreateRequest{
		CustomerID:    "cust-1",
		PaymentMethod: domain.MethodVNPay,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeRedirect, out.Kind)
	assert.Equal(t, "https://pay.vnpay.vn/session/abc", out.RedirectURL)
	assert.Equal(t, "pay-1", out.Payment.ID)
}

func TestCreatePayment_RedirectWithoutURLIsConfigurationError(t *testing.T) {
	creator := &fakeCreator{env: envelope(`{"id":"pay-2"}`)}
	orch := NewOrchestrator(creator, zerolog.Nop())

	_, err := orch.CreatePayment(context.Background(), "sess-2", backend.CreateRequest{
		CustomerID:    "cust-1",
		PaymentMethod: domain.MethodVNPay,
	})

	var cfgErr *backend.GatewayConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestCreatePayment_UnavailableGatewayBlocksOrder(t *testing.T) {
	for _, method := range []domain.PaymentMethod{domain.MethodMomo, domain.MethodZaloPay} {
		t.Run(method.String(), func(t *testing.T) {
			creator := &fakeCreator{env: envelope(`{"id":"pay-3"}`)}
			orch := NewOrchestrator(creator, zerolog.Nop())

			out, err := orch.CreatePayment(context.Background(), "sess-"+method.String(), backend.CreateRequest{
				CustomerID:    "cust-1",
				PaymentMethod: method,
			})
			require.NoError(t, err)

			assert.Equal(t, OutcomeGatewayUnavailable, out.Kind)
			assert.NotEmpty(t, out.Notice)
		})
	}
}

func TestCreatePayment_ImmediateFlowBackfillsPlaceholders(t *testing.T) {
	creator := &fakeCreator{env: envelope(`{"orderId":"o-4"}`)}
	orch := NewOrchestrator(creator, zerolog.Nop())

	out, err := orch.CreatePayment(context.Background(), "sess-4", backend.CreateRequest{
		CustomerID:    "cust-1",
		PaymentMethod: domain.MethodCash,
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeFinalize, out.Kind)
	assert.True(t, out.Provisional)
	assert.True(t, domain.IsPlaceholderID(out.Payment.ID))
	assert.True(t, domain.IsPlaceholderID(out.Payment.TransactionID))
	assert.Equal(t, domain.StatusPending, out.Payment.PaymentStatus)
}

func TestCreatePayment_ImmediateFlowKeepsBackendIDs(t *testing.T) {
	creator := &fakeCreator{env: envelope(`{"id":"pay-5","transactionId":"txn-5","paymentStatus":"completed"}`)}
	orch := NewOrchestrator(creator, zerolog.Nop())

	out, err := orch.CreatePayment(context.Background(), "sess-5", backend.CreateRequest{
		CustomerID:    "cust-1",
		PaymentMethod: domain.MethodBankTransfer,
	})
	require.NoError(t, err)

	assert.False(t, out.Provisional)
	assert.Equal(t, "pay-5", out.Payment.ID)
	assert.Equal(t, "txn-5", out.Payment.TransactionID)
}

func TestCreatePayment_ValidatesInput(t *testing.T) {
	orch := NewOrchestrator(&fakeCreator{}, zerolog.Nop())

	_, err := orch.CreatePayment(context.Background(), "sess-6", backend.CreateRequest{
		PaymentMethod: domain.MethodCash,
	})
	var vErr *backend.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "customerId", vErr.Field)

	_, err = orch.CreatePayment(context.Background(), "sess-6", backend.CreateRequest{
		CustomerID:    "cust-1",
		PaymentMethod: "bitcoin",
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "paymentMethod", vErr.Field)
}

func TestCreatePayment_RapidDoubleSubmitMakesOneCall(t *testing.T) {
	creator := &fakeCreator{
		delay: 50 * time.Millisecond,
		env:   envelope(`{"id":"pay-7","transactionId":"txn-7"}`),
	}
	orch := NewOrchestrator(creator, zerolog.Nop())

	req := backend.CreateRequest{CustomerID: "cust-1", PaymentMethod: domain.MethodCash}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := orch.CreatePayment(context.Background(), "sess-7", req)
			assert.NoError(t, err)
			assert.Equal(t, "pay-7", out.Payment.ID)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&creator.calls))
}

func TestCreatePayment_NoRetryAfterFailure(t *testing.T) {
	creator := &fakeCreator{err: &backend.NetworkError{Err: context.DeadlineExceeded}}
	orch := NewOrchestrator(creator, zerolog.Nop())

	req := backend.CreateRequest{CustomerID: "cust-1", PaymentMethod: domain.MethodCash}
	_, err := orch.CreatePayment(context.Background(), "sess-8", req)
	require.Error(t, err)
	assert.Equal(t, int64(1), atomic.LoadInt64(&creator.calls))

	// A later submission is a fresh attempt, never an automatic retry.
	creator.err = nil
	creator.env = envelope(`{"id":"pay-8","transactionId":"txn-8"}`)
	out, err := orch.CreatePayment(context.Background(), "sess-8", req)
	require.NoError(t, err)
	assert.Equal(t, "pay-8", out.Payment.ID)
	assert.Equal(t, int64(2), atomic.LoadInt64(&creator.calls))
}

func TestCreatePayment_EnvelopeErrorSurfaces(t *testing.T) {
	creator := &fakeCreator{env: &backend.Envelope{StatusCode: 422, Message: "voucher expired"}}
	orch := NewOrchestrator(creator, zerolog.Nop())

	_, err := orch.CreatePayment(context.Background(), "sess-9", backend.CreateRequest{
		CustomerID:    "cust-1",
		PaymentMethod: domain.MethodCash,
	})

	var srvErr *backend.ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, 422, srvErr.StatusCode)
}
