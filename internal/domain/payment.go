package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodDebitCard    PaymentMethod = "debit_card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodEWallet      PaymentMethod = "e_wallet"
	MethodMomo         PaymentMethod = "momo"
	MethodZaloPay      PaymentMethod = "zalopay"
	MethodVNPay        PaymentMethod = "vnpay"
)

// PaymentFlow describes how a method settles after creation.
type PaymentFlow int

const (
	// FlowImmediate finalizes the order right after the payment is created.
	FlowImmediate PaymentFlow = iota
	// FlowRedirect requires an external gateway round-trip.
	FlowRedirect
	// FlowUnavailable marks gateways without server-side support yet.
	FlowUnavailable
)

// Flow is the single dispatch point for per-method branching. Adding a
// method means deciding its flow here, nowhere else.
func (m PaymentMethod) Flow() PaymentFlow {
	switch m {
	case MethodVNPay:
		return FlowRedirect
	case MethodMomo, MethodZaloPay:
		return FlowUnavailable
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodBankTransfer, MethodEWallet:
		return FlowImmediate
	default:
		return FlowImmediate
	}
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCreditCard, MethodDebitCard, MethodBankTransfer,
		MethodEWallet, MethodMomo, MethodZaloPay, MethodVNPay:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusCompleted  PaymentStatus = "completed"
	StatusFailed     PaymentStatus = "failed"
	StatusCancelled  PaymentStatus = "cancelled"
	StatusRefunded   PaymentStatus = "refunded"
)

func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded:
		return true
	}
	return false
}

// String representation (for logging)
func (s PaymentStatus) String() string {
	return string(s)
}

// Payment is a read-only projection of backend payment state. The backend
// is the only writer; the client never mutates it locally.
type Payment struct {
	ID             string          `json:"id"`
	OrderID        string          `json:"orderId"`
	CustomerID     string          `json:"customerId"`
	Amount         decimal.Decimal `json:"amount"`
	FinalAmount    decimal.Decimal `json:"finalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	TransactionID  string          `json:"transactionId"`
	PaymentDate    *time.Time      `json:"paymentDate,omitempty"`
	Description    string          `json:"description,omitempty"`
	VoucherID      string          `json:"voucherId,omitempty"`
}

// placeholderPrefix marks identifiers synthesized client-side when the
// backend returned none. Views use it to tell provisional ids from real ones.
const placeholderPrefix = "local-"

func PlaceholderID() string {
	return placeholderPrefix + uuid.NewString()
}

func IsPlaceholderID(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}
