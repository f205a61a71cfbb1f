package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/cart"
	"github.com/vuonglv2610/storefront/internal/domain"
	"github.com/vuonglv2610/storefront/internal/events"
	"github.com/vuonglv2610/storefront/internal/finalizer"
	"github.com/vuonglv2610/storefront/internal/payment"
	"github.com/vuonglv2610/storefront/internal/session"
)

type CheckoutHandler struct {
	sessions      session.Store
	orchestrator  *payment.Orchestrator
	publisher     events.Publisher
	timeout       time.Duration
	redirectDelay time.Duration
	log           zerolog.Logger
}

func NewCheckoutHandler(sessions session.Store, orchestrator *payment.Orchestrator, publisher events.Publisher, timeout, redirectDelay time.Duration, log zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:      sessions,
		orchestrator:  orchestrator,
		publisher:     publisher,
		timeout:       timeout,
		redirectDelay: redirectDelay,
		log:           log,
	}
}

type ConfirmCartRequestDTO struct {
	Lines           []domain.CartLine   `json:"lines"`
	DiscountPercent decimal.Decimal     `json:"discountPercent"`
	Shipping        domain.ShippingInfo `json:"shipping"`
	Notes           string              `json:"notes,omitempty"`
}

type ConfirmCartResponseDTO struct {
	SessionKey string      `json:"sessionKey"`
	Totals     cart.Totals `json:"totals"`
}

// POST /api/v1/cart/confirm
func (h *CheckoutHandler) ConfirmCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ConfirmCartRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.Lines) == 0 {
		respondError(w, http.StatusBadRequest, "empty_cart", "no cart lines selected")
		return
	}

	totals, err := cart.Aggregate(req.Lines, req.DiscountPercent)
	switch {
	case errors.Is(err, cart.ErrDataIntegrity):
		respondError(w, http.StatusUnprocessableEntity, "invalid_cart", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusBadRequest, "invalid_discount", err.Error())
		return
	}

	key, err := h.sessions.Put(ctx, &domain.CheckoutSession{
		Lines:          req.Lines,
		Shipping:       req.Shipping,
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		Total:          totals.Total,
		Notes:          req.Notes,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		h.log.Error().Err(err).Str("requestId", getRequestID(r.Context())).Msg("storing checkout session failed")
		respondError(w, http.StatusInternalServerError, "session_store_failed", "could not stage the checkout")
		return
	}

	respondJSON(w, http.StatusCreated, ConfirmCartResponseDTO{SessionKey: key, Totals: totals})
}

type CheckoutRequestDTO struct {
	SessionKey    string               `json:"sessionKey"`
	CustomerID    string               `json:"customerId"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	VoucherID     string               `json:"voucherId,omitempty"`
	Shipping      *domain.ShippingInfo `json:"shipping,omitempty"`
}

type CheckoutResponseDTO struct {
	View        *finalizer.OrderView `json:"view,omitempty"`
	RedirectURL string               `json:"redirectUrl,omitempty"`
	PaymentID   string               `json:"paymentId,omitempty"`
	Notice      string               `json:"notice,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SessionKey == "" {
		respondError(w, http.StatusBadRequest, "missing_session_key", "sessionKey is required")
		return
	}

	sess, err := h.sessions.Take(ctx, req.SessionKey)
	if err != nil {
		respondBackendError(w, err)
		return
	}

	shipping := sess.Shipping
	if req.Shipping != nil {
		shipping = *req.Shipping
	}
	if code, msg := validateShipping(shipping); code != "" {
		if err2 := h.sessions.Restore(ctx, req.SessionKey, sess); err2 != nil {
			h.log.Error().Err(err2).Str("requestId", getRequestID(r.Context())).Msg("restoring checkout session failed")
		}
		respondError(w, http.StatusBadRequest, code, msg)
		return
	}

	outcome, err := h.orchestrator.CreatePayment(ctx, req.SessionKey, backend.CreateRequest{
		CustomerID:    req.CustomerID,
		PaymentMethod: req.PaymentMethod,
		VoucherID:     req.VoucherID,
		Description:   sess.Notes,
	})
	if err != nil {
		// No payment exists yet; hand the session back so the user can
		// resubmit with the same key.
		if err2 := h.sessions.Restore(ctx, req.SessionKey, sess); err2 != nil {
			h.log.Error().Err(err2).Str("requestId", getRequestID(r.Context())).Msg("restoring checkout session failed")
		}
		respondBackendError(w, err)
		return
	}

	switch outcome.Kind {
	case payment.OutcomeRedirect:
		respondJSON(w, http.StatusOK, CheckoutResponseDTO{
			RedirectURL: outcome.RedirectURL,
			PaymentID:   outcome.Payment.ID,
		})

	case payment.OutcomeGatewayUnavailable:
		view := finalizer.FromOutcome(outcome)
		h.publish(events.TypeOrderFailed, view)
		respondJSON(w, http.StatusOK, CheckoutResponseDTO{View: &view, Notice: outcome.Notice})

	default:
		view := finalizer.FromOutcome(outcome)
		h.publish(events.TypeOrderPlaced, view)
		respondJSON(w, http.StatusCreated, CheckoutResponseDTO{View: &view})
	}
}

// GET /api/v1/payment/redirect
//
// Drives the gateway hop: validates the target and issues a 302 after the
// configured grace delay. Closing the connection before the delay elapses
// abandons the hop, so the user can still back out.
func (h *CheckoutHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	redirect, err := payment.ScheduleRedirect(r.Context(), r.URL.Query().Get("to"), h.redirectDelay, func(url string) {
		http.Redirect(w, r, url, http.StatusFound)
	}, h.log)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_redirect", err.Error())
		return
	}
	<-redirect.Done()
}

func (h *CheckoutHandler) publish(eventType string, view finalizer.OrderView) {
	if h.publisher == nil {
		return
	}
	// The bus is downstream-only; a publish failure never affects checkout.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := h.publisher.Publish(ctx, events.Event{
			Type:      eventType,
			OrderID:   view.OrderID,
			PaymentID: view.PaymentID,
			Status:    view.Status,
			Method:    view.PaymentMethod,
			Amount:    view.Amount,
		})
		if err != nil {
			h.log.Error().Err(err).Str("type", eventType).Msg("event publish failed")
		}
	}()
}

func validateShipping(s domain.ShippingInfo) (code, message string) {
	switch {
	case s.FullName == "":
		return "missing_full_name", "shipping fullName is required"
	case s.Phone == "":
		return "missing_phone", "shipping phone is required"
	case s.Address == "":
		return "missing_address", "shipping address is required"
	}
	return "", ""
}
