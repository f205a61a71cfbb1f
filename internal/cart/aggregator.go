package cart

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vuonglv2610/storefront/internal/domain"
)

var (
	ErrDiscountOutOfRange = errors.New("discount percent must be within [0,100]")
	ErrDataIntegrity      = errors.New("no valid cart lines to aggregate")
)

// Anomaly records a cart line excluded from the totals because its data
// violated an invariant. Flagging instead of coercing keeps a broken line
// from silently understating the price shown to the user.
type Anomaly struct {
	LineID string `json:"lineId"`
	Reason string `json:"reason"`
}

type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	Total          decimal.Decimal `json:"total"`
	Anomalies      []Anomaly       `json:"anomalies,omitempty"`
}

var oneHundred = decimal.NewFromInt(100)

// Aggregate recomputes subtotal/discount/total from the selected lines.
// No hidden state: the same input always yields the same totals.
func Aggregate(lines []domain.CartLine, discountPercent decimal.Decimal) (Totals, error) {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(oneHundred) {
		return Totals{}, ErrDiscountOutOfRange
	}

	t := Totals{
		Subtotal:       decimal.Zero,
		DiscountAmount: decimal.Zero,
		Total:          decimal.Zero,
	}
	for _, line := range lines {
		if reason := checkLine(line); reason != "" {
			t.Anomalies = append(t.Anomalies, Anomaly{LineID: line.ID, Reason: reason})
			continue
		}
		t.Subtotal = t.Subtotal.Add(line.Total())
	}

	if len(lines) > 0 && len(t.Anomalies) == len(lines) {
		return t, ErrDataIntegrity
	}

	t.DiscountAmount = t.Subtotal.Mul(discountPercent).Div(oneHundred)
	t.Total = t.Subtotal.Sub(t.DiscountAmount)
	return t, nil
}

func checkLine(line domain.CartLine) string {
	if line.Quantity < 1 {
		return fmt.Sprintf("quantity must be at least 1, got %d", line.Quantity)
	}
	if line.Product.Price.IsNegative() {
		return fmt.Sprintf("price must be non-negative, got %s", line.Product.Price)
	}
	return ""
}
