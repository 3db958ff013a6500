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

var _ repository.WizardStateRepository = (*WizardStateRepo)(nil)

// WizardStateRepo stores one JSON wizard per session; an idle wizard expires after ttl.
// A wizard with a payment open is kept for inFlightTTL so a late widget
// callback still finds it.
type WizardStateRepo struct {
	client      RedisClient
	ttl         time.Duration
	inFlightTTL time.Duration
}

func NewWizardStateRepo(client RedisClient, ttl, inFlightTTL time.Duration) *WizardStateRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if inFlightTTL < ttl {
		inFlightTTL = ttl
	}
	return &WizardStateRepo{client: client, ttl: ttl, inFlightTTL: inFlightTTL}
}

func (s *WizardStateRepo) key(sessionID string) string {
	return fmt.Sprintf("afa_wizard:%s", sessionID)
}

func (s *WizardStateRepo) SetState(ctx context.Context, state *model.WizardState) error {
	if state == nil || state.SessionID == "" {
		return domain.ErrInvalidArgument
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ttl := s.ttl
	if state.PaymentInFlight() {
		ttl = s.inFlightTTL
	}
	return s.client.Set(ctx, s.key(state.SessionID), data, ttl)
}

func (s *WizardStateRepo) GetState(ctx context.Context, sessionID string) (*model.WizardState, error) {
	data, err := s.client.Get(ctx, s.key(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var state model.WizardState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("decode wizard state: %w", err)
	}
	return &state, nil
}

func (s *WizardStateRepo) ClearState(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID))
}
