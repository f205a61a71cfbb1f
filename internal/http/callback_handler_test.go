package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/domain"
	"github.com/vuonglv2610/storefront/internal/finalizer"
	"github.com/vuonglv2610/storefront/internal/gateway"
	"github.com/vuonglv2610/storefront/internal/session"
)

type verifyAPIMock struct {
	mu      sync.Mutex
	checks  int
	verdict *backend.VerifyResult
	err     error
}

func (m *verifyAPIMock) CheckVNPay(ctx context.Context, rawQuery string) (*backend.VerifyResult, error) {
	m.mu.Lock()
	m.checks++
	m.mu.Unlock()
	return m.verdict, m.err
}

func (m *verifyAPIMock) CheckPayment(ctx context.Context, rawQuery string) (*backend.VerifyResult, error) {
	return m.verdict, m.err
}

func (m *verifyAPIMock) Process(ctx context.Context, paymentID string, status domain.PaymentStatus, gatewayResponse string) error {
	return nil
}

func (m *verifyAPIMock) checkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks
}

func setupCallback(t *testing.T, api *verifyAPIMock) *CallbackHandler {
	t.Helper()
	mr := miniredis.RunT(t)
	store := session.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	verifier := gateway.NewVerifier(api, store, zerolog.Nop())
	return NewCallbackHandler(verifier, api, nil, 5*time.Second, zerolog.Nop())
}

func getView(t *testing.T, handler http.HandlerFunc, target string) (finalizer.OrderView, int) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	var view finalizer.OrderView
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	}
	return view, rec.Code
}

func TestCallback_SuccessBuildsOrderView(t *testing.T) {
	api := &verifyAPIMock{verdict: &backend.VerifyResult{
		Success:   true,
		Message:   "verified",
		OrderID:   "o-1",
		PaymentID: "pay-1",
		Amount:    dec(2250),
	}}
	handler := setupCallback(t, api)

	view, code := getView(t, handler.Callback, "/api/v1/payment/callback?vnp_ResponseCode=00&vnp_TxnRef=T1")

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, finalizer.OrderSuccess, view.Kind)
	assert.Equal(t, "o-1", view.OrderID)
	assert.True(t, view.FromCallback)
	assert.Equal(t, domain.StatusCompleted, view.Status)
}

func TestCallback_RefreshDoesNotReverify(t *testing.T) {
	api := &verifyAPIMock{verdict: &backend.VerifyResult{Success: true, OrderID: "o-2", PaymentID: "pay-2"}}
	handler := setupCallback(t, api)

	target := "/api/v1/payment/callback?vnp_ResponseCode=00&vnp_TxnRef=T2"
	_, code := getView(t, handler.Callback, target)
	require.Equal(t, http.StatusOK, code)

	view, code := getView(t, handler.Callback, target)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, finalizer.OrderSuccess, view.Kind)
	assert.Equal(t, "o-2", view.OrderID)
	assert.Equal(t, 1, api.checkCount())
}

func TestCallback_BackendRejectionIsFailureView(t *testing.T) {
	api := &verifyAPIMock{verdict: &backend.VerifyResult{Success: false, Message: "signature mismatch"}}
	handler := setupCallback(t, api)

	view, code := getView(t, handler.Callback, "/api/v1/payment/callback?vnp_ResponseCode=00&vnp_TxnRef=T3")

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, finalizer.OrderFailure, view.Kind)
	assert.Equal(t, "signature mismatch", view.Message)
}

func TestCallback_UnknownMarkersFailWithoutBackend(t *testing.T) {
	api := &verifyAPIMock{verdict: &backend.VerifyResult{Success: true}}
	handler := setupCallback(t, api)

	view, code := getView(t, handler.Callback, "/api/v1/payment/callback?foo=bar")

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, finalizer.OrderFailure, view.Kind)
	assert.Equal(t, 0, api.checkCount())
}

func TestCallback_BackendDownSurfaces(t *testing.T) {
	api := &verifyAPIMock{err: &backend.NetworkError{Err: context.DeadlineExceeded}}
	handler := setupCallback(t, api)

	_, code := getView(t, handler.Callback, "/api/v1/payment/callback?vnp_ResponseCode=00&vnp_TxnRef=T4")

	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestResult_UsesAlternateVerification(t *testing.T) {
	api := &verifyAPIMock{verdict: &backend.VerifyResult{
		Success:   true,
		OrderID:   "o-5",
		PaymentID: "pay-5",
		Amount:    dec(4500),
	}}
	handler := setupCallback(t, api)

	view, code := getView(t, handler.Result, "/api/v1/payment/result?vnp_ResponseCode=00&vnp_TxnRef=T5")

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, finalizer.OrderSuccess, view.Kind)
	assert.Equal(t, "o-5", view.OrderID)
	// The result page never claims the callback, so CheckVNPay stays unused.
	assert.Equal(t, 0, api.checkCount())
}

func TestResult_UnknownMarkers(t *testing.T) {
	api := &verifyAPIMock{verdict: &backend.VerifyResult{Success: true}}
	handler := setupCallback(t, api)

	view, code := getView(t, handler.Result, "/api/v1/payment/result?foo=bar")

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, finalizer.OrderFailure, view.Kind)
}
