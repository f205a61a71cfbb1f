package finalizer

import (
	"github.com/shopspring/decimal"

	"github.com/vuonglv2610/storefront/internal/domain"
	"github.com/vuonglv2610/storefront/internal/payment"
)

type ViewKind string

const (
	OrderSuccess ViewKind = "order_success"
	OrderFailure ViewKind = "order_failure"
)

// OrderView is the terminal screen state of one checkout. It is built
// exactly once per flow, from either the creation outcome or a gateway
// callback, never from both.
type OrderView struct {
	Kind          ViewKind             `json:"kind"`
	OrderID       string               `json:"orderId,omitempty"`
	PaymentID     string               `json:"paymentId,omitempty"`
	TransactionID string               `json:"transactionId,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod,omitempty"`
	Status        domain.PaymentStatus `json:"status"`
	Message       string               `json:"message,omitempty"`
	FromCallback  bool                 `json:"fromCallback"`
	Provisional   bool                 `json:"provisional"`
}

// FromOutcome builds the view for flows that finish without a gateway
// round-trip. An unavailable gateway yields a failure view with the payment
// still pending: the money never moved, so the order is on hold, not lost.
func FromOutcome(out *payment.Outcome) OrderView {
	view := OrderView{
		Status:      domain.StatusPending,
		Provisional: out.Provisional,
	}
	if out.Payment != nil {
		view.OrderID = out.Payment.OrderID
		view.PaymentID = out.Payment.ID
		view.TransactionID = out.Payment.TransactionID
		view.Amount = out.Payment.FinalAmount
		view.PaymentMethod = out.Payment.PaymentMethod
		if out.Payment.PaymentStatus != "" {
			view.Status = out.Payment.PaymentStatus
		}
	}

	switch out.Kind {
	case payment.OutcomeGatewayUnavailable:
		view.Kind = OrderFailure
		view.Status = domain.StatusPending
		view.Message = out.Notice
	default:
		view.Kind = OrderSuccess
		if view.Message == "" {
			view.Message = "order placed"
		}
	}
	return view
}

// FromCallback builds the view after a gateway round-trip.
func FromCallback(result *domain.GatewayCallbackResult) OrderView {
	view := OrderView{
		OrderID:      result.OrderID,
		PaymentID:    result.PaymentID,
		Amount:       result.Amount,
		Message:      result.Message,
		FromCallback: true,
		Provisional:  domain.IsPlaceholderID(result.PaymentID),
	}
	if result.Success {
		view.Kind = OrderSuccess
		view.Status = domain.StatusCompleted
	} else {
		view.Kind = OrderFailure
		view.Status = domain.StatusFailed
	}
	return view
}
