package registration

import (
	"context"
	"sync"

	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/domain/ports/adapter"
)

var _ adapter.RegistrationService = (*MemoryService)(nil)

// MemoryService is an in-process registration backend for dev mode and tests.
type MemoryService struct {
	mu         sync.Mutex
	registered map[model.PhoneNumber]string
}

func NewMemoryService(preregistered ...model.PhoneNumber) *MemoryService {
	m := &MemoryService{registered: make(map[model.PhoneNumber]string)}
	for _, p := range preregistered {
		m.registered[p] = ""
	}
	return m
}

func (m *MemoryService) CheckStatus(_ context.Context, phone model.PhoneNumber) (model.RegistrationStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registered[phone]; ok {
		return model.RegistrationStatusRegistered, nil
	}
	return model.RegistrationStatusNotRegistered, nil
}

func (m *MemoryService) Register(_ context.Context, phone model.PhoneNumber, name string) (model.RegistrationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registered[phone]; ok {
		return model.RegistrationResult{AlreadyRegistered: true}, nil
	}
	m.registered[phone] = name
	return model.RegistrationResult{Success: true}, nil
}

// Name returns the name phone was registered with.
func (m *MemoryService) Name(phone model.PhoneNumber) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.registered[phone]
	return n, ok
}
