package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/domain"
)

type fakeVerifyAPI struct {
	mu        sync.Mutex
	checks    int
	verdict   *backend.VerifyResult
	checkErr  error
	processed chan string
}

func newFakeVerifyAPI(verdict *backend.VerifyResult, err error) *fakeVerifyAPI {
	return &fakeVerifyAPI{verdict: verdict, checkErr: err, processed: make(chan string, 4)}
}

func (f *fakeVerifyAPI) CheckVNPay(ctx context.Context, rawQuery string) (*backend.VerifyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.verdict, f.checkErr
}

func (f *fakeVerifyAPI) Process(ctx context.Context, paymentID string, status domain.PaymentStatus, gatewayResponse string) error {
	f.processed <- paymentID + ":" + status.String()
	return nil
}

func (f *fakeVerifyAPI) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

type memClaims struct {
	mu      sync.Mutex
	claimed map[string][]byte
}

func newMemClaims() *memClaims {
	return &memClaims{claimed: map[string][]byte{}}
}

func (m *memClaims) Claim(ctx context.Context, ref string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.claimed[ref]; ok {
		return prev, false, nil
	}
	m.claimed[ref] = nil
	return nil, true, nil
}

func (m *memClaims) ReleaseClaim(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, ref)
	return nil
}

func (m *memClaims) StoreResult(ctx context.Context, ref string, result []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed[ref] = result
	return nil
}

func TestVerify_BackendVerdictWins(t *testing.T) {
	// Gateway says approved, backend says no. The backend wins.
	api := newFakeVerifyAPI(&backend.VerifyResult{Success: false, Message: "signature mismatch"}, nil)
	v := NewVerifier(api, newMemClaims(), zerolog.Nop())

	result, err := v.Verify(context.Background(), "vnp_ResponseCode=00&vnp_TxnRef=T1&vnp_Amount=100000")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "signature mismatch", result.Message)
}

func TestVerify_SuccessPropagatesStatus(t *testing.T) {
	api := newFakeVerifyAPI(&backend.VerifyResult{
		Success:   true,
		OrderID:   "o-1",
		PaymentID: "pay-1",
		Amount:    decimal.NewFromInt(2250),
	}, nil)
	v := NewVerifier(api, newMemClaims(), zerolog.Nop())

	result, err := v.Verify(context.Background(), "vnp_ResponseCode=00&vnp_TxnRef=T2")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "o-1", result.OrderID)

	select {
	case got := <-api.processed:
		assert.Equal(t, "pay-1:completed", got)
	case <-time.After(time.Second):
		t.Fatal("status propagation never happened")
	}
}

func TestVerify_FailureDoesNotPropagateStatus(t *testing.T) {
	api := newFakeVerifyAPI(&backend.VerifyResult{Success: false, PaymentID: "pay-2"}, nil)
	v := NewVerifier(api, newMemClaims(), zerolog.Nop())

	_, err := v.Verify(context.Background(), "vnp_ResponseCode=24&vnp_TxnRef=T3")
	require.NoError(t, err)

	select {
	case got := <-api.processed:
		t.Fatalf("unexpected status propagation: %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVerify_RefreshReplaysStoredResult(t *testing.T) {
	api := newFakeVerifyAPI(&backend.VerifyResult{Success: true, OrderID: "o-4", PaymentID: "pay-4"}, nil)
	v := NewVerifier(api, newMemClaims(), zerolog.Nop())

	query := "vnp_ResponseCode=00&vnp_TxnRef=T4"
	first, err := v.Verify(context.Background(), query)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := v.Verify(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.True(t, second.Success)
	assert.Equal(t, 1, api.checkCount(), "refresh must not re-verify")
}

func TestVerify_UnknownMarkersSkipBackend(t *testing.T) {
	api := newFakeVerifyAPI(&backend.VerifyResult{Success: true}, nil)
	v := NewVerifier(api, newMemClaims(), zerolog.Nop())

	result, err := v.Verify(context.Background(), "foo=bar&baz=1")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, (&backend.UnknownGatewayError{}).Error(), result.Message)
	assert.Equal(t, 0, api.checkCount())
}

func TestVerify_BackendErrorKeepsCallbackVerifiable(t *testing.T) {
	api := newFakeVerifyAPI(nil, &backend.NetworkError{Err: errors.New("refused")})
	claims := newMemClaims()
	v := NewVerifier(api, claims, zerolog.Nop())

	query := "vnp_ResponseCode=00&vnp_TxnRef=T5"
	result, err := v.Verify(context.Background(), query)
	require.Error(t, err)
	assert.False(t, result.Success)

	claims.mu.Lock()
	_, stillClaimed := claims.claimed["T5"]
	claims.mu.Unlock()
	assert.False(t, stillClaimed, "a failed verification must not hold the claim")

	// The backend recovers; the same callback verifies on the next visit.
	api.mu.Lock()
	api.checkErr = nil
	api.verdict = &backend.VerifyResult{Success: true, OrderID: "o-5", PaymentID: "pay-5"}
	api.mu.Unlock()

	result, err = v.Verify(context.Background(), query)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "o-5", result.OrderID)
	assert.Equal(t, 2, api.checkCount())
}

func TestVerify_PlaceholderPaymentSkipsPropagation(t *testing.T) {
	api := newFakeVerifyAPI(&backend.VerifyResult{Success: true, PaymentID: domain.PlaceholderID()}, nil)
	v := NewVerifier(api, newMemClaims(), zerolog.Nop())

	_, err := v.Verify(context.Background(), "vnp_ResponseCode=00&vnp_TxnRef=T6")
	require.NoError(t, err)

	select {
	case got := <-api.processed:
		t.Fatalf("propagated status for a placeholder id: %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVerify_FallsBackToGatewayAmount(t *testing.T) {
	api := newFakeVerifyAPI(&backend.VerifyResult{Success: true, OrderID: "o-7", PaymentID: "pay-7"}, nil)
	v := NewVerifier(api, newMemClaims(), zerolog.Nop())

	result, err := v.Verify(context.Background(), "vnp_ResponseCode=00&vnp_TxnRef=T7&vnp_Amount=450000")
	require.NoError(t, err)

	assert.True(t, result.Amount.Equal(decimal.NewFromInt(4500)))
}
