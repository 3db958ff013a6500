package payment

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"datahub-storefront/internal/domain/ports/adapter"
	"datahub-storefront/internal/infra/metrics"

	"github.com/rs/zerolog"
)

var _ adapter.WidgetReadiness = (*Readiness)(nil)

// Readiness is the process-wide "payment widget loaded" flag. The inline
// script is probed at most once; afterwards Ready only reads the flag.
type Readiness struct {
	scriptURL string
	client    *http.Client
	log       *zerolog.Logger

	once  sync.Once
	ready atomic.Bool
}

// ErrWidgetNotReady is returned by Check until the widget script has loaded.
var ErrWidgetNotReady = errors.New("payment widget not ready")

func NewReadiness(scriptURL string, logger *zerolog.Logger) *Readiness {
	l := logger.With().Str("component", "PaymentReadiness").Logger()
	metrics.SetPaymentWidgetReady(false)
	return &Readiness{
		scriptURL: scriptURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       &l,
	}
}

// Load fetches the widget script once. Later calls are no-ops whatever the first outcome was.
func (r *Readiness) Load(ctx context.Context) {
	r.once.Do(func() {
		if r.scriptURL == "" {
			r.log.Warn().Msg("no inline script url configured; payment widget unavailable")
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.scriptURL, nil)
		if err != nil {
			r.log.Error().Err(err).Msg("build script probe")
			return
		}
		resp, err := r.client.Do(req)
		if err != nil {
			r.log.Error().Err(err).Str("url", r.scriptURL).Msg("payment widget script unreachable")
			return
		}
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			r.log.Error().Int("status", resp.StatusCode).Str("url", r.scriptURL).Msg("payment widget script not served")
			return
		}
		r.ready.Store(true)
		metrics.SetPaymentWidgetReady(true)
		r.log.Info().Str("url", r.scriptURL).Msg("payment widget ready")
	})
}

// MarkReady sets the flag without probing and disables any later probe.
func (r *Readiness) MarkReady() {
	r.once.Do(func() {})
	r.ready.Store(true)
	metrics.SetPaymentWidgetReady(true)
}

func (r *Readiness) Ready() bool { return r.ready.Load() }

// Check reports readiness as a health check.
func (r *Readiness) Check(context.Context) error {
	if !r.Ready() {
		return ErrWidgetNotReady
	}
	return nil
}
