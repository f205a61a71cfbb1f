package poller

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vuonglv2610/storefront/internal/backend"
	"github.com/vuonglv2610/storefront/internal/domain"
)

// Fetcher is the slice of the backend client the poller needs.
type Fetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*domain.Payment, error)
}

// Update is one observation pushed to the consumer. Either Payment or Err
// is set, never both.
type Update struct {
	Payment *domain.Payment
	Err     error
}

type Options struct {
	// Interval between successful fetches. Defaults to 30s.
	Interval time.Duration
	// MaxAttempts per fetch cycle for transient errors. Defaults to 3.
	MaxAttempts int
	// Backoff before the second attempt, doubling after. Defaults to 1s.
	Backoff time.Duration
	// SeedStatus is the last status the caller already observed, e.g. from
	// the order view that started the poll. A fetch that moves a terminal
	// seed back to a non-terminal status is reported as a regression.
	SeedStatus domain.PaymentStatus
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 30 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = time.Second
	}
}

// Poller watches one payment until it reaches a terminal status. After a
// fetch cycle exhausts its attempts the poller goes dormant; Refresh wakes
// it for another cycle. It never resurrects a payment on its own.
type Poller struct {
	fetcher   Fetcher
	paymentID string
	opts      Options
	updates   chan Update
	refresh   chan struct{}
	stop      chan struct{}
	log       zerolog.Logger
}

func New(fetcher Fetcher, paymentID string, opts Options, log zerolog.Logger) *Poller {
	opts.defaults()
	return &Poller{
		fetcher:   fetcher,
		paymentID: paymentID,
		opts:      opts,
		updates:   make(chan Update, 8),
		refresh:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		log:       log,
	}
}

// Updates delivers observations. The channel closes once the payment is
// terminal or the poller is stopped.
func (p *Poller) Updates() <-chan Update {
	return p.updates
}

// Refresh wakes a dormant poller for one more fetch cycle. Never blocks;
// overlapping refreshes collapse into one.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Stop ends polling. Safe to call while Start is running.
func (p *Poller) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
}

// Start runs the poll loop until the payment settles, Stop is called, or
// ctx is cancelled. The first fetch happens immediately.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.updates)

	last := p.opts.SeedStatus
	for {
		payment, err := p.fetchCycle(ctx)
		switch {
		case err != nil:
			p.emit(Update{Err: err})
			// Dormant until the user asks again.
			if !p.waitSignal(ctx) {
				return
			}
			continue

		case last.IsTerminal() && !payment.PaymentStatus.IsTerminal():
			// The backend moved a settled payment backwards. Keep the
			// settled view and surface the inconsistency.
			p.log.Error().
				Str("payment", p.paymentID).
				Str("from", last.String()).
				Str("to", payment.PaymentStatus.String()).
				Msg("terminal payment status regressed")
			p.emit(Update{Err: backend.ErrStatusRegression})
			return
		}

		last = payment.PaymentStatus
		p.emit(Update{Payment: payment})
		if payment.PaymentStatus.IsTerminal() {
			return
		}

		if !p.waitInterval(ctx) {
			return
		}
	}
}

// fetchCycle fetches with bounded retry. Only transient failures are
// retried; anything else surfaces immediately.
func (p *Poller) fetchCycle(ctx context.Context) (*domain.Payment, error) {
	backoff := p.opts.Backoff
	var lastErr error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		payment, err := p.fetcher.GetPayment(ctx, p.paymentID)
		if err == nil {
			return payment, nil
		}
		lastErr = err
		if !backend.Transient(err) {
			return nil, err
		}
		if attempt == p.opts.MaxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-p.stop:
			return nil, lastErr
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, lastErr
}

func (p *Poller) waitInterval(ctx context.Context) bool {
	timer := time.NewTimer(p.opts.Interval)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-p.refresh:
		return true
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *Poller) waitSignal(ctx context.Context) bool {
	select {
	case <-p.refresh:
		return true
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (p *Poller) emit(u Update) {
	select {
	case p.updates <- u:
	default:
		p.log.Warn().Str("payment", p.paymentID).Msg("update dropped, consumer is behind")
	}
}
