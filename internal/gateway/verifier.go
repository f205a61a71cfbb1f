package gateway

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/domain"
)

// VerifyAPI is the slice of the backend client the verifier needs.
type VerifyAPI interface {
	CheckVNPay(ctx context.Context, rawQuery string) (*backend.VerifyResult, error)
	Process(ctx context.Context, paymentID string, status domain.PaymentStatus, gatewayResponse string) error
}

// ClaimStore records which callback references were already handled, so a
// refresh of the return page replays the stored outcome instead of
// re-verifying the same transaction.
type ClaimStore interface {
	Claim(ctx context.Context, ref string) (prev []byte, fresh bool, err error)
	ReleaseClaim(ctx context.Context, ref string) error
	StoreResult(ctx context.Context, ref string, result []byte) error
}

// Verifier handles gateway return callbacks. Each transaction reference is
// verified against the backend exactly once; the backend's verdict is
// authoritative regardless of what the gateway's response code claims.
type Verifier struct {
	api    VerifyAPI
	claims ClaimStore
	group  singleflight.Group
	log    zerolog.Logger
}

func NewVerifier(api VerifyAPI, claims ClaimStore, log zerolog.Logger) *Verifier {
	return &Verifier{api: api, claims: claims, log: log}
}

// Verify processes one callback visit identified by its raw query string.
func (v *Verifier) Verify(ctx context.Context, rawQuery string) (*domain.GatewayCallbackResult, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return failure("callback parameters could not be parsed"), nil
	}
	if Detect(values) == KindUnknown {
		unknownErr := &backend.UnknownGatewayError{Query: rawQuery}
		v.log.Warn().Err(unknownErr).Str("query", rawQuery).Msg("callback rejected")
		return failure(unknownErr.Error()), nil
	}

	ret, err := ParseVNPayReturn(values)
	if err != nil {
		return failure("payment callback was not recognized"), nil
	}

	ref := ret.TxnRef
	if ref == "" {
		ref = rawQuery
	}

	out, err, _ := v.group.Do(ref, func() (interface{}, error) {
		return v.verify(ctx, ref, ret, rawQuery)
	})
	result, _ := out.(*domain.GatewayCallbackResult)
	return result, err
}

func (v *Verifier) verify(ctx context.Context, ref string, ret VNPayReturn, rawQuery string) (*domain.GatewayCallbackResult, error) {
	prev, fresh, err := v.claims.Claim(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !fresh {
		if len(prev) > 0 {
			var stored domain.GatewayCallbackResult
			if err2 := json.Unmarshal(prev, &stored); err2 == nil {
				v.log.Info().Str("ref", ref).Msg("replaying stored callback result")
				return &stored, nil
			}
		}
		return failure("this payment callback was already processed"), nil
	}

	verdict, err := v.api.CheckVNPay(ctx, rawQuery)
	if err != nil {
		// Release the claim so the next visit can verify again.
		if err2 := v.claims.ReleaseClaim(ctx, ref); err2 != nil {
			v.log.Error().Err(err2).Str("ref", ref).Msg("releasing callback claim failed")
		}
		v.log.Error().Err(err).Str("ref", ref).Msg("callback verification failed")
		return failure("payment verification failed, please check your order status"), err
	}

	result := &domain.GatewayCallbackResult{
		Success:   verdict.Success,
		Message:   verdict.Message,
		OrderID:   verdict.OrderID,
		PaymentID: verdict.PaymentID,
		Amount:    verdict.Amount,
	}
	if result.Amount.IsZero() {
		result.Amount = ret.Amount
	}
	if result.Message == "" {
		if result.Success {
			result.Message = "payment completed"
		} else {
			result.Message = "payment was not completed"
		}
	}

	if result.Success && result.PaymentID != "" && !domain.IsPlaceholderID(result.PaymentID) {
		// Status propagation must not delay the result page.
		go func(paymentID string) {
			pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err2 := v.api.Process(pctx, paymentID, domain.StatusCompleted, rawQuery); err2 != nil {
				v.log.Error().Err(err2).Str("payment", paymentID).Msg("status propagation failed")
			}
		}(result.PaymentID)
	}

	if payload, err2 := json.Marshal(result); err2 == nil {
		if err3 := v.claims.StoreResult(ctx, ref, payload); err3 != nil {
			v.log.Error().Err(err3).Str("ref", ref).Msg("storing callback result failed")
		}
	}
	return result, nil
}

func failure(message string) *domain.GatewayCallbackResult {
	return &domain.GatewayCallbackResult{Success: false, Message: message}
}
