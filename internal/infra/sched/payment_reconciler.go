package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"datahub-storefront/internal/infra/metrics"
	"datahub-storefront/internal/infra/worker"
	"datahub-storefront/internal/usecase"
)

// PaymentReconciler periodically settles payments whose widget callback never
// arrived (tab closed, network loss, process crash mid-callback).
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	pool       *worker.Pool
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	batch      int
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.PaymentUseCase, pool *worker.Pool, interval, staleAfter time.Duration, logger *zerolog.Logger) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{uc: uc, pool: pool, interval: interval, staleAfter: staleAfter, batch: 200, log: &l}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick reconciles one batch and waits for it to finish. It returns the number
// of payments that changed status.
func (w *PaymentReconciler) Tick(ctx context.Context) int {
	pending, err := w.uc.Stale(ctx, time.Now().Add(-w.staleAfter), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending payments")
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for _, p := range pending {
		p := p // per-iteration copy (go directive < 1.22)
		wg.Add(1)
		err := w.pool.SubmitWait(ctx, func(ctx context.Context) error {
			defer wg.Done()
			outcome, err := w.uc.Reconcile(ctx, p)
			metrics.IncReconciled(outcome)
			if err != nil {
				return err
			}
			if outcome != usecase.ReconcileSkipped {
				mu.Lock()
				changed++
				mu.Unlock()
			}
			return nil
		})
		if err != nil {
			wg.Done()
			w.log.Warn().Err(err).Msg("reconcile batch interrupted")
			break
		}
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// queued tasks die with the pool
	}

	mu.Lock()
	defer mu.Unlock()
	if changed > 0 {
		w.log.Info().Int("count", changed).Int("scanned", len(pending)).Msg("payments reconciled")
	}
	return changed
}
