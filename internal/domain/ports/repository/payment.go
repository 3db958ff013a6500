package repository

import (
	"context"
	"time"

	"datahub-storefront/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Payment, error)
	// UpdateStatusIfPending moves a pending payment to status; it reports false when the
	// payment already left pending (another callback or the reconciler got there first).
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, providerTxRef *string, paidAt *time.Time) (bool, error)
	UpdateStatus(ctx context.Context, tx Tx, id string, status model.PaymentStatus) error
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	ListByStatus(ctx context.Context, tx Tx, status model.PaymentStatus, limit int) ([]*model.Payment, error)
}

// -----------------------------
// Orders
// -----------------------------

type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	MarkPaid(ctx context.Context, tx Tx, id string, paidAt time.Time) error
}
