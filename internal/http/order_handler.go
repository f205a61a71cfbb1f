package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vuonglv2610/storefront/internal/domain"
	"github.com/vuonglv2610/storefront/internal/poller"
)

// paymentAPI is the slice of the backend client the order endpoints need.
type paymentAPI interface {
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
	Refund(ctx context.Context, paymentID string, amount decimal.Decimal) error
}

type OrderHandler struct {
	api          paymentAPI
	timeout      time.Duration
	pollInterval time.Duration
	log          zerolog.Logger
}

func NewOrderHandler(api paymentAPI, timeout, pollInterval time.Duration, log zerolog.Logger) *OrderHandler {
	return &OrderHandler{api: api, timeout: timeout, pollInterval: pollInterval, log: log}
}

// GET /api/v1/payments/{paymentID}
func (h *OrderHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	paymentID := chi.URLParam(r, "paymentID")
	if domain.IsPlaceholderID(paymentID) {
		// Synthesized client-side, the backend has never heard of it.
		respondError(w, http.StatusNotFound, "provisional_payment", "payment id is provisional and cannot be fetched")
		return
	}

	payment, err := h.api.GetPayment(ctx, paymentID)
	if err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

// GET /api/v1/payments/{paymentID}/wait
//
// Long-poll: watches the payment until it settles or the request times out,
// then responds with the last observation. `lastStatus` lets the caller pass
// the status it already displayed, so a backend walk-back of a settled
// payment is detected instead of applied.
func (h *OrderHandler) WaitForSettlement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	paymentID := chi.URLParam(r, "paymentID")
	if domain.IsPlaceholderID(paymentID) {
		respondError(w, http.StatusNotFound, "provisional_payment", "payment id is provisional and cannot be watched")
		return
	}

	p := poller.New(h.api, paymentID, poller.Options{
		Interval:   h.pollInterval,
		SeedStatus: domain.PaymentStatus(r.URL.Query().Get("lastStatus")),
	}, h.log)
	p.Start(ctx)
	defer p.Stop()

	var last *domain.Payment
	for {
		select {
		case u, ok := <-p.Updates():
			switch {
			case !ok:
				respondJSON(w, http.StatusOK, last)
				return
			case u.Err != nil:
				respondBackendError(w, u.Err)
				return
			default:
				last = u.Payment
			}
		case <-ctx.Done():
			if last != nil {
				respondJSON(w, http.StatusOK, last)
			} else {
				respondError(w, http.StatusGatewayTimeout, "poll_timeout", "payment did not settle in time")
			}
			return
		}
	}
}

type RefundRequestDTO struct {
	RefundAmount decimal.Decimal `json:"refundAmount"`
}

// POST /api/v1/payments/{paymentID}/refund
func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	paymentID := chi.URLParam(r, "paymentID")
	if domain.IsPlaceholderID(paymentID) {
		respondError(w, http.StatusNotFound, "provisional_payment", "payment id is provisional and cannot be refunded")
		return
	}

	var req RefundRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if !req.RefundAmount.IsPositive() {
		respondError(w, http.StatusBadRequest, "invalid_amount", "refundAmount must be positive")
		return
	}

	if err := h.api.Refund(ctx, paymentID, req.RefundAmount); err != nil {
		respondBackendError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "refund_requested"})
}
