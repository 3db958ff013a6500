// File: internal/usecase/cart_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/domain/ports/repository"
	"datahub-storefront/internal/infra/metrics"
)

// Compile-time check
var _ CartUseCase = (*cartUC)(nil)

type CartUseCase interface {
	Products(ctx context.Context) []model.Product
	Product(ctx context.Context, id string) (*model.Product, error)

	// Get returns the session's cart, empty when it has none.
	Get(ctx context.Context, sessionID string) (*model.Cart, error)
	AddItem(ctx context.Context, sessionID, productID string, qty int) (*model.Cart, error)
	// UpdateQuantity removes the line when qty is zero or less.
	UpdateQuantity(ctx context.Context, sessionID, productID string, qty int) (*model.Cart, error)
	RemoveItem(ctx context.Context, sessionID, productID string) (*model.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type cartUC struct {
	carts    repository.CartRepository
	catalog  map[string]model.Product
	order    []string
	currency string
	log      *zerolog.Logger
}

func NewCartUseCase(carts repository.CartRepository, products []model.Product, currency string, logger *zerolog.Logger) *cartUC {
	catalog := make(map[string]model.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		if p.Currency == "" {
			p.Currency = currency
		}
		catalog[p.ID] = p
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	l := logger.With().Str("component", "CartUC").Logger()
	return &cartUC{carts: carts, catalog: catalog, order: ids, currency: currency, log: &l}
}

func (u *cartUC) Products(_ context.Context) []model.Product {
	out := make([]model.Product, 0, len(u.order))
	for _, id := range u.order {
		out = append(out, u.catalog[id])
	}
	return out
}

func (u *cartUC) Product(_ context.Context, id string) (*model.Product, error) {
	p, ok := u.catalog[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (u *cartUC) Get(ctx context.Context, sessionID string) (*model.Cart, error) {
	if sessionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	c, err := u.carts.GetCart(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.NewCart(sessionID, u.currency), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

func (u *cartUC) AddItem(ctx context.Context, sessionID, productID string, qty int) (*model.Cart, error) {
	p, err := u.Product(ctx, productID)
	if err != nil {
		return nil, err
	}
	return u.mutate(ctx, sessionID, "add", func(c *model.Cart) error { return c.Add(p, qty) })
}

func (u *cartUC) UpdateQuantity(ctx context.Context, sessionID, productID string, qty int) (*model.Cart, error) {
	return u.mutate(ctx, sessionID, "update", func(c *model.Cart) error { return c.SetQuantity(productID, qty) })
}

func (u *cartUC) RemoveItem(ctx context.Context, sessionID, productID string) (*model.Cart, error) {
	return u.mutate(ctx, sessionID, "remove", func(c *model.Cart) error { return c.Remove(productID) })
}

func (u *cartUC) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrInvalidArgument
	}
	if err := u.carts.DeleteCart(ctx, sessionID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	metrics.IncCartOp("clear")
	return nil
}

func (u *cartUC) mutate(ctx context.Context, sessionID, op string, fn func(c *model.Cart) error) (*model.Cart, error) {
	c, err := u.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		if err := u.carts.DeleteCart(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("save cart: %w", err)
		}
	} else if err := u.carts.SaveCart(ctx, c); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	metrics.IncCartOp(op)
	u.log.Debug().Str("op", op).Int("items", c.Count()).Int64("total", c.Total()).Msg("cart updated")
	return c, nil
}
