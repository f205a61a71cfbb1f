package session

import (
	"context"
	"errors"

	"github.com/vuonglv2610/storefront/internal/domain"
)

var ErrSessionNotFound = errors.New("checkout session not found or already consumed")

// Store is the only carrier of checkout state between the cart page and the
// checkout submission. Take consumes the session: a second Take for the same
// key reports ErrSessionNotFound, so stale sessions cannot be reused. Restore
// re-stages a consumed session under its original key when the submission
// failed before a payment came into existence.
type Store interface {
	Put(ctx context.Context, session *domain.CheckoutSession) (key string, err error)
	Take(ctx context.Context, key string) (*domain.CheckoutSession, error)
	Restore(ctx context.Context, key string, session *domain.CheckoutSession) error
}
