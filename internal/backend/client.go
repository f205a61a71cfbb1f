package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/vuonglv2610/storefront/internal/domain"
)

// CreateRequest is the body of POST /payments/create-from-cart.
type CreateRequest struct {
	CustomerID    string               `json:"customerId"`
	PaymentMethod domain.PaymentMethod `json:"paymentMethod"`
	VoucherID     string               `json:"voucherId,omitempty"`
	Description   string               `json:"description,omitempty"`
}

// VerifyResult is the backend's verdict on a gateway callback. Its success
// flag is authoritative; the gateway's own response code is not.
type VerifyResult struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	OrderID   string          `json:"orderId"`
	PaymentID string          `json:"paymentId"`
	Amount    decimal.Decimal `json:"amount"`
}

// Client talks to the payments backend. All calls go through a circuit
// breaker so a struggling backend fails fast instead of piling up requests.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     zerolog.Logger
}

func NewClient(baseURL string, log zerolog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "payments-backend",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		breaker: breaker,
		log:     log,
	}
}

// CreateFromCart creates a payment for the current cart. Callers own the
// at-most-one-submission guarantee; the client performs no retries.
func (c *Client) CreateFromCart(ctx context.Context, req CreateRequest) (*Envelope, error) {
	raw, err := c.do(ctx, http.MethodPost, "/payments/create-from-cart", req)
	if err != nil {
		return nil, err
	}
	return Normalize(raw, c.log), nil
}

// GetPayment fetches the read-only payment projection by id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error) {
	raw, err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, nil)
	if err != nil {
		return nil, err
	}

	env := Normalize(raw, c.log)
	var payment domain.Payment
	if len(env.Result.Data) > 0 {
		if err2 := json.Unmarshal(env.Result.Data, &payment); err2 != nil {
			return nil, fmt.Errorf("decode payment failed: %w", err2)
		}
	}
	if payment.ID == "" {
		payment.ID = paymentID
	}
	return &payment, nil
}

// Process reports a status change (with the raw gateway response, when there
// is one) to the backend via PUT /payment/process/{paymentId}.
func (c *Client) Process(ctx context.Context, paymentID string, status domain.PaymentStatus, gatewayResponse string) error {
	body := map[string]string{"paymentStatus": status.String()}
	if gatewayResponse != "" {
		body["paymentGatewayResponse"] = gatewayResponse
	}
	_, err := c.do(ctx, http.MethodPut, "/payment/process/"+paymentID, body)
	return err
}

// CheckVNPay asks the backend to verify a VNPay return, forwarding the
// original query string untouched so the backend can validate the signature.
func (c *Client) CheckVNPay(ctx context.Context, rawQuery string) (*VerifyResult, error) {
	return c.check(ctx, "/payment/check-vnpay", rawQuery)
}

// CheckPayment is the alternate verification path used by the secondary
// result page.
func (c *Client) CheckPayment(ctx context.Context, rawQuery string) (*VerifyResult, error) {
	return c.check(ctx, "/payments/check-payment", rawQuery)
}

func (c *Client) check(ctx context.Context, path, rawQuery string) (*VerifyResult, error) {
	raw, err := c.do(ctx, http.MethodGet, path+"?"+strings.TrimPrefix(rawQuery, "?"), nil)
	if err != nil {
		return nil, err
	}

	env := Normalize(raw, c.log)

	// Shape (c) puts the verdict and ids beside the success flag; shapes
	// (a)/(b) nest them under result.data. Decode both, inner last.
	var result VerifyResult
	_ = json.Unmarshal(raw, &result)
	if len(env.Result.Data) > 0 {
		if err2 := json.Unmarshal(env.Result.Data, &result); err2 != nil {
			return nil, fmt.Errorf("decode verification result failed: %w", err2)
		}
	}

	// When no explicit success flag was present, the envelope verdict decides.
	if !hasSuccessFlag(raw) && !hasSuccessFlag(env.Result.Data) {
		result.Success = env.Ok()
	}
	if !env.Ok() {
		result.Success = false
	}
	if result.Message == "" {
		result.Message = env.Message
	}
	return &result, nil
}

func hasSuccessFlag(raw []byte) bool {
	var probe struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Success != nil
}

// Refund requests a refund via PUT /payment/refund/{paymentId}.
func (c *Client) Refund(ctx context.Context, paymentID string, amount decimal.Decimal) error {
	body := map[string]decimal.Decimal{"refundAmount": amount}
	_, err := c.do(ctx, http.MethodPut, "/payment/refund/"+paymentID, body)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, &NetworkError{Err: err}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &NetworkError{Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, statusError(resp.StatusCode, path, strings.TrimSpace(string(raw)))
		}
		return raw, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		// An open breaker is backend unavailability, same as a refused dial.
		return nil, &NetworkError{Err: err}
	}
	return raw, err
}
