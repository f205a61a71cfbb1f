package gateway

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// VNPay return-URL parameter names, per the gateway's wire contract.
const (
	vnpResponseCode = "vnp_ResponseCode"
	vnpTxnRef       = "vnp_TxnRef"
	vnpAmount       = "vnp_Amount"

	// vnpSuccessCode is the only response code meaning the user approved the
	// payment at the gateway. It is a hint for messaging, never the verdict.
	vnpSuccessCode = "00"
)

// VNPay transmits amounts in minor units (VND x100).
var minorUnitFactor = decimal.NewFromInt(100)

type Kind int

const (
	KindUnknown Kind = iota
	KindVNPay
)

// Detect inspects callback query parameters for gateway markers.
func Detect(values url.Values) Kind {
	if values.Has(vnpResponseCode) || values.Has(vnpTxnRef) {
		return KindVNPay
	}
	return KindUnknown
}

// VNPayReturn is the parsed, display-ready view of a VNPay return URL.
type VNPayReturn struct {
	ResponseCode string
	TxnRef       string
	// Amount is the display amount, already divided out of minor units.
	Amount decimal.Decimal
}

// Approved reports whether the gateway says the user completed payment.
// The backend still has the final word after signature verification.
func (r VNPayReturn) Approved() bool {
	return r.ResponseCode == vnpSuccessCode
}

// ParseVNPayReturn extracts the VNPay fields from callback query parameters.
func ParseVNPayReturn(values url.Values) (VNPayReturn, error) {
	ret := VNPayReturn{
		ResponseCode: values.Get(vnpResponseCode),
		TxnRef:       values.Get(vnpTxnRef),
	}
	if ret.ResponseCode == "" && ret.TxnRef == "" {
		return ret, fmt.Errorf("query carries no VNPay parameters")
	}

	if raw := values.Get(vnpAmount); raw != "" {
		minor, err := decimal.NewFromString(raw)
		if err != nil {
			return ret, fmt.Errorf("parse %s=%q failed: %w", vnpAmount, raw, err)
		}
		ret.Amount = minor.Div(minorUnitFactor)
	}
	return ret, nil
}
