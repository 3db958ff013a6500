//go:build !integration

package apiv1_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/infra/api/apiv1"
	"datahub-storefront/internal/infra/i18n"
)

const (
	testSecret   = "test-session-secret-please-change"
	testAdminKey = "test-admin-key"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

// ---- wizard ----

type mockWizardUC struct {
	st      *model.WizardState
	setup   *model.PaymentSetup
	err     error
	route   string
	lastSID string
	lastRef string
}

func (m *mockWizardUC) result(sid string) (*model.WizardState, error) {
	m.lastSID = sid
	return m.st, m.err
}

func (m *mockWizardUC) State(ctx context.Context, sid string) (*model.WizardState, error) {
	return m.result(sid)
}
func (m *mockWizardUC) SubmitNumber(ctx context.Context, sid, raw, name string) (*model.WizardState, error) {
	return m.result(sid)
}
func (m *mockWizardUC) ChangeName(ctx context.Context, sid, name string) (*model.WizardState, error) {
	return m.result(sid)
}
func (m *mockWizardUC) BeginPayment(ctx context.Context, sid string) (*model.WizardState, *model.PaymentSetup, error) {
	st, err := m.result(sid)
	return st, m.setup, err
}
func (m *mockWizardUC) CompletePayment(ctx context.Context, sid, ref, tx string) (*model.WizardState, error) {
	m.lastRef = ref
	return m.result(sid)
}
func (m *mockWizardUC) ClosePayment(ctx context.Context, sid string) (*model.WizardState, error) {
	return m.result(sid)
}
func (m *mockWizardUC) CheckAnother(ctx context.Context, sid string) (*model.WizardState, error) {
	return m.result(sid)
}
func (m *mockWizardUC) UseAnotherNumber(ctx context.Context, sid string) (*model.WizardState, error) {
	return m.result(sid)
}
func (m *mockWizardUC) Continue(ctx context.Context, sid string) (string, error) {
	m.lastSID = sid
	return m.route, m.err
}

// ---- cart ----

type mockCartUC struct {
	products []model.Product
	cart     *model.Cart
	err      error
	cleared  bool
	lastQty  int
	lastID   string
}

func (m *mockCartUC) Products(ctx context.Context) []model.Product { return m.products }
func (m *mockCartUC) Product(ctx context.Context, id string) (*model.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, domain.ErrProductNotFound
}
func (m *mockCartUC) Get(ctx context.Context, sid string) (*model.Cart, error) {
	return m.current(sid), m.err
}
func (m *mockCartUC) AddItem(ctx context.Context, sid, productID string, qty int) (*model.Cart, error) {
	m.lastID, m.lastQty = productID, qty
	return m.current(sid), m.err
}
func (m *mockCartUC) UpdateQuantity(ctx context.Context, sid, productID string, qty int) (*model.Cart, error) {
	m.lastID, m.lastQty = productID, qty
	return m.current(sid), m.err
}
func (m *mockCartUC) RemoveItem(ctx context.Context, sid, productID string) (*model.Cart, error) {
	m.lastID = productID
	return m.current(sid), m.err
}
func (m *mockCartUC) Clear(ctx context.Context, sid string) error {
	m.cleared = true
	return m.err
}

func (m *mockCartUC) current(sid string) *model.Cart {
	if m.cart == nil {
		return model.NewCart(sid, "GHS")
	}
	return m.cart
}

// ---- checkout ----

type mockCheckoutUC struct {
	order    *model.Order
	setup    *model.PaymentSetup
	redirect string
	err      error
	closed   string
}

func (m *mockCheckoutUC) Submit(ctx context.Context, sid string, form model.CheckoutForm) (*model.Order, *model.PaymentSetup, error) {
	return m.order, m.setup, m.err
}
func (m *mockCheckoutUC) Complete(ctx context.Context, sid, ref string) (string, error) {
	return m.redirect, m.err
}
func (m *mockCheckoutUC) Close(ctx context.Context, sid, ref string) error {
	m.closed = ref
	return m.err
}

// ---- payments ----

type mockPaymentUC struct {
	list       []*model.Payment
	err        error
	lastStatus model.PaymentStatus
	lastLimit  int
}

func (m *mockPaymentUC) Stale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Payment, error) {
	return nil, nil
}
func (m *mockPaymentUC) Reconcile(ctx context.Context, p *model.Payment) (string, error) {
	return "", nil
}
func (m *mockPaymentUC) ListByStatus(ctx context.Context, status model.PaymentStatus, limit int) ([]*model.Payment, error) {
	m.lastStatus, m.lastLimit = status, limit
	return m.list, m.err
}

// ---- harness ----

type harness struct {
	wizard   *mockWizardUC
	cart     *mockCartUC
	checkout *mockCheckoutUC
	payments *mockPaymentUC
	sessions *apiv1.SessionManager
	router   http.Handler
}

func newHarness(t *testing.T, adminKey string) *harness {
	t.Helper()
	msgs, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		t.Fatalf("translator: %v", err)
	}
	h := &harness{
		wizard:   &mockWizardUC{},
		cart:     &mockCartUC{},
		checkout: &mockCheckoutUC{},
		payments: &mockPaymentUC{},
		sessions: apiv1.NewSessionManager(testSecret, false, "", time.Hour),
	}
	srv := apiv1.NewServer(apiv1.Deps{
		Wizard:   h.wizard,
		Cart:     h.cart,
		Checkout: h.checkout,
		Payments: h.payments,
		Sessions: h.sessions,
		Messages: msgs,
		AdminKey: adminKey,
	}, newTestLogger())
	r := chi.NewRouter()
	apiv1.RegisterAPIV1(r, srv)
	h.router = r
	return h
}

func (h *harness) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.router.ServeHTTP(rr, req)
	return rr
}
