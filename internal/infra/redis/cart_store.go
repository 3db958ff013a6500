package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
)

var _ repository.CartRepository = (*CartStore)(nil)

// CartStore keeps carts as JSON. Every save refreshes the ttl.
type CartStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewCartStore(client RedisClient, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &CartStore{client: client, ttl: ttl}
}

func cartKey(sessionID string) string { return "cart:" + sessionID }

func (s *CartStore) SaveCart(ctx context.Context, cart *model.Cart) error {
	if cart == nil || cart.SessionID == "" {
		return domain.ErrInvalidArgument
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cartKey(cart.SessionID), data, s.ttl)
}

func (s *CartStore) GetCart(ctx context.Context, sessionID string) (*model.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var cart model.Cart
	if err := json.Unmarshal([]byte(data), &cart); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = map[string]*model.CartItem{}
	}
	return &cart, nil
}

func (s *CartStore) DeleteCart(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, cartKey(sessionID))
}
