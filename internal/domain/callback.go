package domain

import "github.com/shopspring/decimal"

// GatewayCallbackResult is produced once per gateway callback visit.
type GatewayCallbackResult struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	OrderID   string          `json:"orderId,omitempty"`
	PaymentID string          `json:"paymentId,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}
