package repository

import (
	"context"
	"time"

	"datahub-storefront/internal/domain/model"
)

// WizardStateRepository keeps each session's AFA wizard between requests.
// GetState returns domain.ErrNotFound when the session has no wizard yet.
type WizardStateRepository interface {
	SetState(ctx context.Context, state *model.WizardState) error
	GetState(ctx context.Context, sessionID string) (*model.WizardState, error)
	ClearState(ctx context.Context, sessionID string) error
}

// CartRepository keeps each session's cart. GetCart returns domain.ErrNotFound
// when the session has no cart.
type CartRepository interface {
	SaveCart(ctx context.Context, cart *model.Cart) error
	GetCart(ctx context.Context, sessionID string) (*model.Cart, error)
	DeleteCart(ctx context.Context, sessionID string) error
}

// Locker serializes work on a key across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// RateLimiter counts hits on key inside a fixed window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
