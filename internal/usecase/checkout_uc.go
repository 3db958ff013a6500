// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/domain/ports/adapter"
	"datahub-storefront/internal/domain/ports/repository"
	"datahub-storefront/internal/infra/logging"
	"datahub-storefront/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutUseCase interface {
	// Submit validates the form, records a pending order with its payment and
	// returns what the browser needs to open the payment widget.
	Submit(ctx context.Context, sessionID string, form model.CheckoutForm) (*model.Order, *model.PaymentSetup, error)
	// Complete verifies reference with the provider and returns the success page URL.
	Complete(ctx context.Context, sessionID, reference string) (string, error)
	// Close records that the widget was dismissed. The order stays pending.
	Close(ctx context.Context, sessionID, reference string) error
}

type checkoutUC struct {
	carts    CartUseCase
	store    repository.CartRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	email    string
	log      *zerolog.Logger
	now      func() time.Time

	lastRef atomic.Int64
}

// checkoutRefAttempts bounds how often Submit draws a new reference after a collision.
const checkoutRefAttempts = 3

func NewCheckoutUseCase(
	carts CartUseCase,
	store repository.CartRepository,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	storeEmail string,
	logger *zerolog.Logger,
) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{
		carts:    carts,
		store:    store,
		orders:   orders,
		payments: payments,
		tm:       tm,
		gateway:  gateway,
		email:    storeEmail,
		log:      &l,
		now:      time.Now,
	}
}

func (u *checkoutUC) Submit(ctx context.Context, sessionID string, form model.CheckoutForm) (*model.Order, *model.PaymentSetup, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Submit")()
	cart, err := u.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if cart.IsEmpty() {
		metrics.IncCheckout("empty_cart")
		return nil, nil, domain.ErrCartEmpty
	}
	form = form.Normalize()
	if err := form.Validate(); err != nil {
		metrics.IncCheckout("invalid")
		return nil, nil, err
	}
	if u.gateway == nil || u.gateway.PublicKey() == "" {
		metrics.IncCheckout("config_missing")
		return nil, nil, domain.ErrPaymentConfig
	}

	order, err := model.NewOrder(cart, form)
	if err != nil {
		return nil, nil, err
	}
	now := u.now()
	ref := u.nextRef(now)
	order.PaymentReference = ref
	order.CreatedAt, order.UpdatedAt = now, now

	meta := model.PaymentMetadata{CustomFields: form.CustomFields()}
	orderID := order.ID
	p := &model.Payment{
		ID:          uuid.NewString(),
		Kind:        model.PaymentKindCheckout,
		SessionID:   sessionID,
		OrderID:     &orderID,
		Reference:   ref,
		Provider:    u.gateway.Name(),
		AmountMinor: order.TotalMinor,
		Currency:    order.Currency,
		Email:       form.Email,
		Phone:       form.Phone,
		Status:      model.PaymentStatusPending,
		Metadata:    meta,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 1; ; attempt++ {
		err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if err := u.orders.Save(ctx, tx, order); err != nil {
				return fmt.Errorf("save order: %w", err)
			}
			if err := u.payments.Save(ctx, tx, p); err != nil {
				return fmt.Errorf("save payment: %w", err)
			}
			return nil
		})
		if err == nil || !errors.Is(err, domain.ErrAlreadyExists) || attempt == checkoutRefAttempts {
			break
		}
		// Another instance took the same millisecond.
		u.log.Warn().Str("reference", ref).Int("attempt", attempt).Msg("checkout reference taken; retrying")
		ref = u.nextRef(u.now())
		order.PaymentReference = ref
		p.Reference = ref
	}
	if err != nil {
		metrics.IncCheckout("error")
		return nil, nil, err
	}
	metrics.IncCheckout("submitted")
	metrics.IncPayment(string(p.Kind), string(p.Status))

	u.log.Info().Str("order_id", order.ID).Str("reference", ref).Int64("total", order.TotalMinor).Msg("checkout submitted")
	return order, &model.PaymentSetup{
		PublicKey:   u.gateway.PublicKey(),
		Email:       form.Email,
		AmountMinor: p.AmountMinor,
		Currency:    p.Currency,
		Reference:   ref,
		Metadata:    meta,
	}, nil
}

func (u *checkoutUC) Complete(ctx context.Context, sessionID, reference string) (string, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Complete")()
	lg := u.log.With().Str("reference", reference).Logger()

	p, err := u.owned(ctx, sessionID, reference)
	if err != nil {
		return "", err
	}
	redirect := "/success?reference=" + url.QueryEscape(reference)
	if p.Status == model.PaymentStatusSucceeded {
		return redirect, nil
	}
	if p.IsFinal() {
		return "", domain.ErrPaymentNotVerified
	}

	v, err := u.gateway.Verify(ctx, reference)
	if err != nil {
		lg.Warn().Err(err).Msg("checkout verification unavailable")
		return "", fmt.Errorf("%w: %v", domain.ErrPaymentNotVerified, err)
	}
	if !verified(v, p) {
		lg.Warn().Str("provider_status", v.Status).Int64("amount", v.AmountMinor).Msg("checkout payment not confirmed")
		if _, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusFailed, nil, nil); err != nil {
			lg.Error().Err(err).Msg("mark payment failed")
		}
		metrics.IncPayment(string(p.Kind), string(model.PaymentStatusFailed))
		return "", domain.ErrPaymentNotVerified
	}

	if err := u.settle(ctx, p, v); err != nil {
		return "", err
	}
	if err := u.store.DeleteCart(ctx, sessionID); err != nil {
		lg.Warn().Err(err).Msg("clear cart after payment")
	}
	metrics.IncCheckout("paid")
	lg.Info().Msg("checkout paid")
	return redirect, nil
}

// nextRef returns a unix-millisecond reference strictly greater than any this
// process issued before.
func (u *checkoutUC) nextRef(now time.Time) string {
	for {
		last := u.lastRef.Load()
		n := now.UnixMilli()
		if n <= last {
			n = last + 1
		}
		if u.lastRef.CompareAndSwap(last, n) {
			return strconv.FormatInt(n, 10)
		}
	}
}

// settle marks p succeeded and its order paid in one transaction.
func (u *checkoutUC) settle(ctx context.Context, p *model.Payment, v adapter.Verification) error {
	txRef := v.ProviderID
	paidAt := v.PaidAt
	if paidAt.IsZero() {
		paidAt = u.now()
	}
	var changed bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		changed, err = u.payments.UpdateStatusIfPending(ctx, tx, p.ID, model.PaymentStatusSucceeded, &txRef, &paidAt)
		if err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if !changed || p.OrderID == nil {
			return nil
		}
		if err := u.orders.MarkPaid(ctx, tx, *p.OrderID, paidAt); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if changed {
		metrics.IncPayment(string(p.Kind), string(model.PaymentStatusSucceeded))
		metrics.AddPaymentRevenue(string(p.Kind), p.Currency, p.AmountMinor)
	}
	return nil
}

func (u *checkoutUC) Close(ctx context.Context, sessionID, reference string) error {
	p, err := u.owned(ctx, sessionID, reference)
	if err != nil {
		return err
	}
	u.log.Info().Str("reference", reference).Str("status", string(p.Status)).Msg("checkout payment window closed")
	return nil
}

// owned loads the checkout payment for reference if it belongs to sessionID.
func (u *checkoutUC) owned(ctx context.Context, sessionID, reference string) (*model.Payment, error) {
	if sessionID == "" || reference == "" {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.payments.FindByReference(ctx, nil, reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find payment: %w", err)
	}
	if p.Kind != model.PaymentKindCheckout || p.SessionID != sessionID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}
