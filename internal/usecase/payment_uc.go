// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/domain/ports/adapter"
	"datahub-storefront/internal/domain/ports/repository"
	"datahub-storefront/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// Reconcile outcomes.
const (
	ReconcileSkipped          = "skipped"
	ReconcileUnverified       = "unverified"
	ReconcileAbandoned        = "abandoned"
	ReconcileFailed           = "failed"
	ReconcileSettled          = "settled"
	ReconcilePaidUnregistered = "paid_unregistered"
)

type PaymentUseCase interface {
	// Stale lists payments still pending after olderThan.
	Stale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Payment, error)
	// Reconcile asks the provider about a pending payment and settles it.
	// Paid registration fees are never registered here; they go to support as paid_unregistered.
	Reconcile(ctx context.Context, p *model.Payment) (string, error)
	ListByStatus(ctx context.Context, status model.PaymentStatus, limit int) ([]*model.Payment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	orders   repository.OrderRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	log      *zerolog.Logger
}

func NewPaymentUseCase(payments repository.PaymentRepository, orders repository.OrderRepository, tm repository.TransactionManager, gateway adapter.PaymentGateway, logger *zerolog.Logger) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{payments: payments, orders: orders, tm: tm, gateway: gateway, log: &l}
}

func (u *paymentUC) Stale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Payment, error) {
	return u.payments.ListPendingOlderThan(ctx, nil, olderThan, limit)
}

func (u *paymentUC) ListByStatus(ctx context.Context, status model.PaymentStatus, limit int) ([]*model.Payment, error) {
	switch status {
	case model.PaymentStatusPending, model.PaymentStatusSucceeded, model.PaymentStatusFailed,
		model.PaymentStatusAbandoned, model.PaymentStatusPaidUnregistered:
	default:
		return nil, fmt.Errorf("%w: unknown payment status %q", domain.ErrInvalidArgument, status)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return u.payments.ListByStatus(ctx, nil, status, limit)
}

func (u *paymentUC) Reconcile(ctx context.Context, p *model.Payment) (string, error) {
	if p.Status != model.PaymentStatusPending {
		return ReconcileSkipped, nil
	}
	lg := u.log.With().Str("payment_id", p.ID).Str("reference", p.Reference).Str("kind", string(p.Kind)).Logger()

	v, err := u.gateway.Verify(ctx, p.Reference)
	if err != nil {
		return ReconcileUnverified, fmt.Errorf("verify %s: %w", p.Reference, err)
	}

	var status model.PaymentStatus
	var outcome string
	switch {
	case !v.Paid:
		status, outcome = model.PaymentStatusAbandoned, ReconcileAbandoned
	case !verified(v, p):
		status, outcome = model.PaymentStatusFailed, ReconcileFailed
		lg.Warn().Int64("amount", v.AmountMinor).Str("currency", v.Currency).Msg("paid amount does not match")
	case p.Kind == model.PaymentKindCheckout:
		status, outcome = model.PaymentStatusSucceeded, ReconcileSettled
	default:
		status, outcome = model.PaymentStatusPaidUnregistered, ReconcilePaidUnregistered
	}

	var txRef *string
	var paidAt *time.Time
	if v.Paid {
		id, at := v.ProviderID, v.PaidAt
		if at.IsZero() {
			at = time.Now()
		}
		txRef, paidAt = &id, &at
	}

	var changed bool
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		changed, err = u.payments.UpdateStatusIfPending(ctx, tx, p.ID, status, txRef, paidAt)
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if changed && status == model.PaymentStatusSucceeded && p.OrderID != nil {
			if err := u.orders.MarkPaid(ctx, tx, *p.OrderID, *paidAt); err != nil {
				return fmt.Errorf("mark order paid: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return ReconcileUnverified, err
	}
	if !changed {
		// A callback settled it first.
		return ReconcileSkipped, nil
	}

	metrics.IncPayment(string(p.Kind), string(status))
	if v.Paid && outcome != ReconcileFailed {
		metrics.AddPaymentRevenue(string(p.Kind), p.Currency, p.AmountMinor)
	}
	if outcome == ReconcilePaidUnregistered {
		lg.Error().Msg("registration fee paid without a completed registration; needs support")
	} else {
		lg.Info().Str("outcome", outcome).Msg("payment reconciled")
	}
	return outcome, nil
}
