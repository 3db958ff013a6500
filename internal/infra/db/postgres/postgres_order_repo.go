package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/domain/ports/repository"
	"datahub-storefront/internal/infra/security"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

// orderRepo stores contact details sealed with the encryption service.
type orderRepo struct {
	pool *pgxpool.Pool
	enc  *security.EncryptionService
}

func NewOrderRepo(pool *pgxpool.Pool, enc *security.EncryptionService) *orderRepo {
	return &orderRepo{pool: pool, enc: enc}
}

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (id, session_id, items, total_minor, currency, contact_enc, status, payment_reference, created_at, updated_at, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status=$7, payment_reference=$8, updated_at=$10, paid_at=$11;`

	items, err := json.Marshal(o.Items)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	contact, err := r.enc.EncryptJSON(o.Contact)
	if err != nil {
		return domain.ErrOperationFailed
	}
	_, err = execSQL(ctx, r.pool, tx, q, o.ID, o.SessionID, items, o.TotalMinor, o.Currency, contact,
		string(o.Status), o.PaymentReference, o.CreatedAt, o.UpdatedAt, o.PaidAt)
	if err != nil {
		return mapExecErr(err)
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := forUpdate(`SELECT id, session_id, items, total_minor, currency, contact_enc, status, payment_reference, created_at, updated_at, paid_at FROM orders WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	o := &model.Order{}
	var items []byte
	var contact string
	if err := row.Scan(&o.ID, &o.SessionID, &items, &o.TotalMinor, &o.Currency, &contact, &o.Status,
		&o.PaymentReference, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if err := r.enc.DecryptJSON(contact, &o.Contact); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}

// MarkPaid is a no-op for orders that are already paid.
func (r *orderRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, paidAt time.Time) error {
	const q = `UPDATE orders SET status='paid', paid_at=$2, updated_at=NOW() WHERE id=$1 AND status='pending';`
	if _, err := execSQL(ctx, r.pool, tx, q, id, paidAt); err != nil {
		return mapExecErr(err)
	}
	return nil
}
