package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingInfo struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	Address  string `json:"address"`
	City     string `json:"city,omitempty"`
}

// CheckoutSession carries the selected cart lines and shipping details from
// cart confirmation to payment creation. It lives in the handoff store only;
// it is consumed exactly once and never shared between flows.
type CheckoutSession struct {
	Lines          []CartLine      `json:"lines"`
	Shipping       ShippingInfo    `json:"shipping"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"total"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}
