package payment

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Redirect is a single scheduled navigation to a gateway URL. The delay
// gives the user a moment to read the confirmation before leaving; the
// whole thing can be abandoned until the timer fires.
type Redirect struct {
	url    string
	log    zerolog.Logger
	cancel chan struct{}
	done   chan struct{}
	once   sync.Once
}

// ScheduleRedirect validates the gateway URL and arms a one-shot timer that
// invokes navigate after delay. Navigation happens at most once; Cancel or
// context teardown before the timer fires suppresses it entirely.
func ScheduleRedirect(ctx context.Context, rawURL string, delay time.Duration, navigate func(url string), log zerolog.Logger) (*Redirect, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway URL failed: %w", err)
	}
	if !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("gateway URL %q is not an absolute http(s) URL", rawURL)
	}

	r := &Redirect{
		url:    rawURL,
		log:    log,
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}

	timer := time.NewTimer(delay)
	go func() {
		defer close(r.done)
		defer timer.Stop()
		select {
		case <-timer.C:
			r.log.Info().Str("url", rawURL).Msg("redirecting to payment gateway")
			navigate(rawURL)
		case <-r.cancel:
			r.log.Info().Str("url", rawURL).Msg("gateway redirect abandoned")
		case <-ctx.Done():
			r.log.Info().Str("url", rawURL).Msg("gateway redirect cancelled by shutdown")
		}
	}()
	return r, nil
}

// Cancel abandons the pending navigation. Safe to call more than once and
// after the redirect already fired.
func (r *Redirect) Cancel() {
	r.once.Do(func() { close(r.cancel) })
}

// Done is closed once the redirect fired or was abandoned.
func (r *Redirect) Done() <-chan struct{} {
	return r.done
}

// URL returns the validated gateway destination.
func (r *Redirect) URL() string {
	return r.url
}
