package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the checkout API routes with the global middleware stack.
func NewRouter(checkout *CheckoutHandler, callback *CallbackHandler, orders *OrderHandler, requestTimeout time.Duration) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/cart/confirm", checkout.ConfirmCart)
		r.Post("/checkout", checkout.Checkout)

		r.Route("/payment", func(r chi.Router) {
			r.Get("/callback", callback.Callback)
			r.Get("/result", callback.Result)
			r.Get("/redirect", checkout.Redirect)
		})

		r.Route("/payments/{paymentID}", func(r chi.Router) {
			r.Get("/", orders.GetPayment)
			r.Get("/wait", orders.WaitForSettlement)
			r.Post("/refund", orders.Refund)
		})
	})

	return r
}
