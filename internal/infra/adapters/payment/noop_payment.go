package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"datahub-storefront/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is a simple in-memory gateway to use in dev mode and tests.
// Permissive gateways report every reference as paid at the expected amount.
type NoopPaymentGateway struct {
	mu         sync.Mutex
	publicKey  string
	permissive bool
	intents    map[string]adapter.Verification
	calls      map[string]int
	fail       error
}

func NewNoopPaymentGateway(publicKey string, permissive bool) *NoopPaymentGateway {
	return &NoopPaymentGateway{
		publicKey:  publicKey,
		permissive: permissive,
		intents:    make(map[string]adapter.Verification),
		calls:      make(map[string]int),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) PublicKey() string { return g.publicKey }

// Expect records that reference was paid with amountMinor in currency.
func (g *NoopPaymentGateway) Expect(reference string, amountMinor int64, currency string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[reference] = adapter.Verification{
		Reference:   reference,
		Paid:        true,
		Status:      "success",
		AmountMinor: amountMinor,
		Currency:    currency,
		ProviderID:  "noop-" + reference,
		PaidAt:      time.Now(),
	}
}

// FailWith makes every following Verify return err.
func (g *NoopPaymentGateway) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = err
}

// Calls reports how many times reference was verified.
func (g *NoopPaymentGateway) Calls(reference string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[reference]
}

func (g *NoopPaymentGateway) Verify(_ context.Context, reference string) (adapter.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[reference]++
	if g.fail != nil {
		return adapter.Verification{}, fmt.Errorf("noop: %w", g.fail)
	}
	if v, ok := g.intents[reference]; ok {
		return v, nil
	}
	if g.permissive {
		return adapter.Verification{Reference: reference, Paid: true, Status: "success", ProviderID: "noop-" + reference, PaidAt: time.Now()}, nil
	}
	return adapter.Verification{Reference: reference, Status: "abandoned"}, nil
}
