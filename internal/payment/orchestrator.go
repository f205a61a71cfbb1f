package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/domain"
)

type OutcomeKind int

const (
	// OutcomeFinalize goes straight to the order terminal view.
	OutcomeFinalize OutcomeKind = iota
	// OutcomeRedirect requires navigating the user to the gateway URL.
	OutcomeRedirect
	// OutcomeGatewayUnavailable: the chosen gateway has no server-side
	// support yet. The order is blocked, not paid; it must never be
	// presented as a success.
	OutcomeGatewayUnavailable
)

type Outcome struct {
	Kind        OutcomeKind
	Payment     *domain.Payment
	RedirectURL string
	Notice      string
	Provisional bool
}

// CreationAPI is the slice of the backend client the orchestrator needs.
type CreationAPI interface {
	CreateFromCart(ctx context.Context, req backend.CreateRequest) (*backend.Envelope, error)
}

// Orchestrator builds the payment-creation request, normalizes the backend
// reply, and dispatches per payment method. It never retries creation;
// retry is always a fresh user-initiated submission.
type Orchestrator struct {
	client CreationAPI
	group  singleflight.Group
	log    zerolog.Logger
}

func NewOrchestrator(client CreationAPI, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{client: client, log: log}
}

// CreatePayment creates a payment for one checkout session. Concurrent
// submissions for the same session key coalesce into a single backend call,
// so a double-click cannot create two payment intents.
func (o *Orchestrator) CreatePayment(ctx context.Context, sessionKey string, req backend.CreateRequest) (*Outcome, error) {
	if req.CustomerID == "" {
		return nil, &backend.ValidationError{Field: "customerId", Reason: "is required"}
	}
	if !req.PaymentMethod.Valid() {
		return nil, &backend.ValidationError{Field: "paymentMethod", Reason: fmt.Sprintf("%q is not supported", req.PaymentMethod)}
	}

	v, err, shared := o.group.Do(sessionKey, func() (interface{}, error) {
		return o.create(ctx, req)
	})
	if shared {
		o.log.Warn().Str("session", sessionKey).Msg("duplicate payment submission coalesced")
	}
	if err != nil {
		return nil, err
	}
	return v.(*Outcome), nil
}

func (o *Orchestrator) create(ctx context.Context, req backend.CreateRequest) (*Outcome, error) {
	env, err := o.client.CreateFromCart(ctx, req)
	if err != nil {
		return nil, err
	}
	if !env.Ok() {
		return nil, &backend.ServerError{StatusCode: env.StatusCode, Message: env.Message}
	}

	payment := decodePayment(env, req, o.log)

	switch req.PaymentMethod.Flow() {
	case domain.FlowRedirect:
		url := redirectURLFrom(env)
		if url == "" {
			return nil, &backend.GatewayConfigurationError{
				Reason: fmt.Sprintf("no redirect URL for %s payment %s", req.PaymentMethod, payment.ID),
			}
		}
		return &Outcome{Kind: OutcomeRedirect, Payment: payment, RedirectURL: url}, nil

	case domain.FlowUnavailable:
		o.log.Info().Str("method", req.PaymentMethod.String()).Msg("gateway not implemented server-side, order blocked")
		return &Outcome{
			Kind:    OutcomeGatewayUnavailable,
			Payment: payment,
			Notice:  fmt.Sprintf("%s payments are not available yet; your order is on hold", req.PaymentMethod),
		}, nil

	default:
		provisional := false
		if payment.ID == "" {
			payment.ID = domain.PlaceholderID()
			provisional = true
		}
		if payment.TransactionID == "" {
			payment.TransactionID = domain.PlaceholderID()
			provisional = true
		}
		return &Outcome{Kind: OutcomeFinalize, Payment: payment, Provisional: provisional}, nil
	}
}

// paymentData is the tolerant projection of result.data: the payment fields
// plus the redirect URL aliases the backend has been seen to use.
type paymentData struct {
	domain.Payment
	PaymentURL  string `json:"paymentUrl"`
	RedirectURL string `json:"redirectUrl"`
	URL         string `json:"url"`
}

func decodePayment(env *backend.Envelope, req backend.CreateRequest, log zerolog.Logger) *domain.Payment {
	var data paymentData
	if len(env.Result.Data) > 0 {
		if err := json.Unmarshal(env.Result.Data, &data); err != nil {
			// Best-effort: creation may have succeeded server-side.
			log.Warn().Err(err).Msg("payment payload did not decode, continuing with request data")
		}
	}
	payment := data.Payment
	if payment.CustomerID == "" {
		payment.CustomerID = req.CustomerID
	}
	if payment.PaymentMethod == "" {
		payment.PaymentMethod = req.PaymentMethod
	}
	if payment.PaymentStatus == "" {
		payment.PaymentStatus = domain.StatusPending
	}
	return &payment
}

func redirectURLFrom(env *backend.Envelope) string {
	var data paymentData
	if len(env.Result.Data) == 0 {
		return ""
	}
	if err := json.Unmarshal(env.Result.Data, &data); err != nil {
		return ""
	}
	switch {
	case data.PaymentURL != "":
		return data.PaymentURL
	case data.RedirectURL != "":
		return data.RedirectURL
	default:
		return data.URL
	}
}
