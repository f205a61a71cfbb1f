package http

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/domain"
	"github.com/vuonglv2610/storefront/internal/events"
	"github.com/vuonglv2610/storefront/internal/finalizer"
	"github.com/vuonglv2610/storefront/internal/gateway"
)

// resultChecker is the alternate verification path behind the secondary
// result page.
type resultChecker interface {
	CheckPayment(ctx context.Context, rawQuery string) (*backend.VerifyResult, error)
}

type CallbackHandler struct {
	verifier  *gateway.Verifier
	checker   resultChecker
	publisher events.Publisher
	timeout   time.Duration
	log       zerolog.Logger
}

func NewCallbackHandler(verifier *gateway.Verifier, checker resultChecker, publisher events.Publisher, timeout time.Duration, log zerolog.Logger) *CallbackHandler {
	return &CallbackHandler{
		verifier:  verifier,
		checker:   checker,
		publisher: publisher,
		timeout:   timeout,
		log:       log,
	}
}

// GET /api/v1/payment/callback
//
// The gateway return URL. Verification happens at most once per transaction
// reference; a refresh replays the stored outcome.
func (h *CallbackHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result, err := h.verifier.Verify(ctx, r.URL.RawQuery)
	if err != nil {
		h.log.Error().Err(err).Msg("callback verification failed")
		respondBackendError(w, err)
		return
	}

	view := finalizer.FromCallback(result)
	h.publishView(view)
	respondJSON(w, http.StatusOK, view)
}

// GET /api/v1/payment/result
//
// Secondary result page: same query contract as the callback but verified
// through the alternate backend path, with no one-shot claim. Used when the
// gateway is configured to return users here instead.
func (h *CallbackHandler) Result(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if gateway.Detect(r.URL.Query()) == gateway.KindUnknown {
		respondJSON(w, http.StatusOK, finalizer.FromCallback(&domain.GatewayCallbackResult{
			Message: "payment callback was not recognized",
		}))
		return
	}

	verdict, err := h.checker.CheckPayment(ctx, r.URL.RawQuery)
	if err != nil {
		respondBackendError(w, err)
		return
	}

	view := finalizer.FromCallback(&domain.GatewayCallbackResult{
		Success:   verdict.Success,
		Message:   verdict.Message,
		OrderID:   verdict.OrderID,
		PaymentID: verdict.PaymentID,
		Amount:    verdict.Amount,
	})
	respondJSON(w, http.StatusOK, view)
}

func (h *CallbackHandler) publishView(view finalizer.OrderView) {
	if h.publisher == nil {
		return
	}
	eventType := events.TypeOrderPlaced
	if view.Kind == finalizer.OrderFailure {
		eventType = events.TypeOrderFailed
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := h.publisher.Publish(ctx, events.Event{
			Type:      eventType,
			OrderID:   view.OrderID,
			PaymentID: view.PaymentID,
			Status:    view.Status,
			Amount:    view.Amount,
		})
		if err != nil {
			h.log.Error().Err(err).Str("type", eventType).Msg("event publish failed")
		}
	}()
}
