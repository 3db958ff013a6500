package adapter

import (
	"context"
	"time"
)

// Verification is the provider's view of a transaction.
type Verification struct {
	Reference   string
	Paid        bool      // provider reports the charge as successful
	Status      string    // provider status e.g. success / abandoned / failed
	AmountMinor int64     // in minor units
	Currency    string    // ISO code
	ProviderID  string    // provider transaction id
	PaidAt      time.Time // provider timestamp if available
}

// PaymentGateway is the hex port for the hosted payment widget's provider.
type PaymentGateway interface {
	Name() string
	// PublicKey is the key the browser widget is initialized with; empty when unconfigured.
	PublicKey() string
	// Verify asks the provider what happened to reference.
	Verify(ctx context.Context, reference string) (Verification, error)
}

// WidgetReadiness reports whether the payment widget can be opened.
type WidgetReadiness interface {
	Ready() bool
}
