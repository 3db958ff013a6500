package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending          PaymentStatus = "pending"           // widget opened; awaiting callback
	PaymentStatusSucceeded        PaymentStatus = "succeeded"         // verified at provider and fulfilled
	PaymentStatusFailed           PaymentStatus = "failed"            // provider reports not paid
	PaymentStatusAbandoned        PaymentStatus = "abandoned"         // widget closed or never completed
	PaymentStatusPaidUnregistered PaymentStatus = "paid_unregistered" // money moved but AFA registration did not happen
)

type PaymentKind string

const (
	PaymentKindAFARegistration PaymentKind = "afa_registration"
	PaymentKindCheckout        PaymentKind = "checkout"
)

// CustomField is a metadata entry shown on the provider dashboard.
type CustomField struct {
	DisplayName  string `json:"display_name"`
	VariableName string `json:"variable_name"`
	Value        string `json:"value"`
}

// PaymentMetadata is attached to every widget setup.
type PaymentMetadata struct {
	CustomFields []CustomField `json:"custom_fields"`
}

// Payment records one payment attempt made through the widget.
type Payment struct {
	ID            string        // UUID
	Kind          PaymentKind   // what the money is for
	SessionID     string        // storefront session that opened the widget
	OrderID       *string       // set for checkout payments
	Reference     string        // unique per attempt, handed to the widget
	Provider      string        // e.g. "paystack"
	AmountMinor   int64         // minor currency units (pesewas for GHS)
	Currency      string        // ISO code, "GHS"
	Email         string        // payer email given to the widget
	Phone         string        // MTN number for AFA payments
	Status        PaymentStatus // see constants above
	ProviderTxRef *string       // provider transaction reference after verification
	Metadata      PaymentMetadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
}

// IsFinal reports whether no further callback can change the payment.
func (p *Payment) IsFinal() bool {
	switch p.Status {
	case PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusPaidUnregistered:
		return true
	}
	return false
}

// PaymentSetup is what the browser needs to open the payment widget.
type PaymentSetup struct {
	PublicKey   string          `json:"key"`
	Email       string          `json:"email"`
	AmountMinor int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Reference   string          `json:"ref"`
	Metadata    PaymentMetadata `json:"metadata"`
}

// ToMinor converts a major-unit amount to minor units.
func ToMinor(major int64) int64 { return major * 100 }
