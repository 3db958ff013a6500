//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/domain/ports/adapter"
	"datahub-storefront/internal/domain/ports/repository"
	"datahub-storefront/internal/infra/i18n"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestMessages(t *testing.T) *i18n.Translator {
	t.Helper()
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	return tr
}

// =============================
// Session state
// =============================

type memWizardRepo struct {
	mu     sync.Mutex
	states map[string]model.WizardState
	saves  int
	setErr error
}

var _ repository.WizardStateRepository = (*memWizardRepo)(nil)

func newMemWizardRepo() *memWizardRepo {
	return &memWizardRepo{states: make(map[string]model.WizardState)}
}

func (m *memWizardRepo) SetState(_ context.Context, st *model.WizardState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.saves++
	m.states[st.SessionID] = *st
	return nil
}

func (m *memWizardRepo) GetState(_ context.Context, sessionID string) (*model.WizardState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

func (m *memWizardRepo) ClearState(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	return nil
}

func (m *memWizardRepo) get(sessionID string) (model.WizardState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[sessionID]
	return st, ok
}

type memCartRepo struct {
	mu    sync.Mutex
	carts map[string]*model.Cart
}

var _ repository.CartRepository = (*memCartRepo)(nil)

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: make(map[string]*model.Cart)}
}

func (m *memCartRepo) SaveCart(_ context.Context, c *model.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := model.NewCart(c.SessionID, c.Currency)
	for id, it := range c.Items {
		line := *it
		cp.Items[id] = &line
	}
	m.carts[c.SessionID] = cp
	return nil
}

func (m *memCartRepo) GetCart(_ context.Context, sessionID string) (*model.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := model.NewCart(c.SessionID, c.Currency)
	for id, it := range c.Items {
		line := *it
		cp.Items[id] = &line
	}
	return cp, nil
}

func (m *memCartRepo) DeleteCart(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, sessionID)
	return nil
}

// MockLocker grants one holder per key.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
	n    int
}

var _ repository.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: make(map[string]string)} }

func (m *MockLocker) TryLock(_ context.Context, key string, _ time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return "", domain.ErrBusy
	}
	m.n++
	tok := fmt.Sprintf("%s#%d", key, m.n)
	m.held[key] = tok
	return tok, nil
}

func (m *MockLocker) Unlock(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// MockLimiter blocks once a key has been seen Limit times.
type MockLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	Err  error
}

var _ repository.RateLimiter = (*MockLimiter)(nil)

func NewMockLimiter() *MockLimiter { return &MockLimiter{hits: make(map[string]int)} }

func (m *MockLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	m.hits[key]++
	return m.hits[key] <= limit, nil
}

// =============================
// Postgres repositories
// =============================

type memPaymentRepo struct {
	mu      sync.Mutex
	byID    map[string]*model.Payment
	saveErr error
	// saveErrs are returned by successive Save calls before saveErr applies.
	saveErrs []error
}

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byID: make(map[string]*model.Payment)}
}

func (m *memPaymentRepo) Save(_ context.Context, _ repository.Tx, p *model.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saveErrs) > 0 {
		err := m.saveErrs[0]
		m.saveErrs = m.saveErrs[1:]
		return err
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, other := range m.byID {
		if other.Reference == p.Reference && other.ID != p.ID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByReference(_ context.Context, _ repository.Tx, reference string) (*model.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.Reference == reference {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) UpdateStatusIfPending(_ context.Context, _ repository.Tx, id string, status model.PaymentStatus, txRef *string, paidAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if txRef != nil {
		p.ProviderTxRef = txRef
	}
	if paidAt != nil {
		p.PaidAt = paidAt
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) UpdateStatus(_ context.Context, _ repository.Tx, id string, status model.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	return nil
}

func (m *memPaymentRepo) ListPendingOlderThan(_ context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	return m.list(func(p *model.Payment) bool {
		return p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan)
	}, limit), nil
}

func (m *memPaymentRepo) ListByStatus(_ context.Context, _ repository.Tx, status model.PaymentStatus, limit int) ([]*model.Payment, error) {
	return m.list(func(p *model.Payment) bool { return p.Status == status }, limit), nil
}

func (m *memPaymentRepo) list(keep func(*model.Payment) bool, limit int) []*model.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Payment
	for _, p := range m.byID {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// only returns the single payment stored, failing the test otherwise.
func (m *memPaymentRepo) only(t *testing.T) *model.Payment {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.byID) != 1 {
		t.Fatalf("expected exactly one payment, got %d", len(m.byID))
	}
	for _, p := range m.byID {
		cp := *p
		return &cp
	}
	return nil
}

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

var _ repository.OrderRepository = (*memOrderRepo)(nil)

func newMemOrderRepo() *memOrderRepo { return &memOrderRepo{orders: make(map[string]*model.Order)} }

func (m *memOrderRepo) Save(_ context.Context, _ repository.Tx, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) FindByID(_ context.Context, _ repository.Tx, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) MarkPaid(_ context.Context, _ repository.Tx, id string, paidAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderStatusPending {
		return domain.ErrNotFound
	}
	o.Status = model.OrderStatusPaid
	o.PaidAt = &paidAt
	return nil
}

// MockTxManager runs fn without a transaction.
type MockTxManager struct {
	Calls int
	Err   error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.Err != nil {
		return m.Err
	}
	return fn(ctx, nil)
}

// =============================
// Adapters
// =============================

// MockRegistry wraps optional behavior around a registry of known numbers.
type MockRegistry struct {
	mu         sync.Mutex
	registered map[model.PhoneNumber]string

	CheckStatusFunc func(ctx context.Context, phone model.PhoneNumber) (model.RegistrationStatus, error)
	RegisterFunc    func(ctx context.Context, phone model.PhoneNumber, name string) (model.RegistrationResult, error)
}

var _ adapter.RegistrationService = (*MockRegistry)(nil)

func NewMockRegistry(registered ...model.PhoneNumber) *MockRegistry {
	m := &MockRegistry{registered: make(map[model.PhoneNumber]string)}
	for _, p := range registered {
		m.registered[p] = ""
	}
	return m
}

func (m *MockRegistry) CheckStatus(ctx context.Context, phone model.PhoneNumber) (model.RegistrationStatus, error) {
	if m.CheckStatusFunc != nil {
		return m.CheckStatusFunc(ctx, phone)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registered[phone]; ok {
		return model.RegistrationStatusRegistered, nil
	}
	return model.RegistrationStatusNotRegistered, nil
}

func (m *MockRegistry) Register(ctx context.Context, phone model.PhoneNumber, name string) (model.RegistrationResult, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, phone, name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.registered[phone]; ok {
		return model.RegistrationResult{AlreadyRegistered: true}, nil
	}
	m.registered[phone] = name
	return model.RegistrationResult{Success: true}, nil
}

func (m *MockRegistry) nameOf(phone model.PhoneNumber) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.registered[phone]
	return n, ok
}

type staticWidget bool

func (w staticWidget) Ready() bool { return bool(w) }
