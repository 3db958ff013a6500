package model

import (
	"net/mail"
	"strings"
	"time"

	"datahub-storefront/internal/domain"

	"github.com/oklog/ulid/v2"
)

// CheckoutForm is the shipping/contact details collected at checkout.
type CheckoutForm struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
}

// Normalize trims every field and reduces the phone to its digits.
func (f CheckoutForm) Normalize() CheckoutForm {
	return CheckoutForm{
		Email:     strings.TrimSpace(f.Email),
		FirstName: strings.TrimSpace(f.FirstName),
		LastName:  strings.TrimSpace(f.LastName),
		Phone:     NormalizePhone(f.Phone).String(),
		Address:   strings.TrimSpace(f.Address),
		City:      strings.TrimSpace(f.City),
	}
}

// Validate reports every missing or malformed field at once.
func (f CheckoutForm) Validate() error {
	errs := domain.ValidationErrors{}
	if f.Email == "" {
		errs["email"] = "Email is required"
	} else if _, err := mail.ParseAddress(f.Email); err != nil {
		errs["email"] = "Email is invalid"
	}
	if f.FirstName == "" {
		errs["firstName"] = "First name is required"
	}
	if f.LastName == "" {
		errs["lastName"] = "Last name is required"
	}
	if f.Phone == "" {
		errs["phone"] = "Phone number is required"
	} else if !PhoneNumber(f.Phone).IsComplete() {
		errs["phone"] = "Phone number is invalid"
	}
	if f.Address == "" {
		errs["address"] = "Address is required"
	}
	if f.City == "" {
		errs["city"] = "City is required"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// CustomFields renders the form as widget metadata.
func (f CheckoutForm) CustomFields() []CustomField {
	return []CustomField{
		{DisplayName: "First Name", VariableName: "first_name", Value: f.FirstName},
		{DisplayName: "Last Name", VariableName: "last_name", Value: f.LastName},
		{DisplayName: "Phone", VariableName: "phone", Value: f.Phone},
		{DisplayName: "Address", VariableName: "address", Value: f.Address},
		{DisplayName: "City", VariableName: "city", Value: f.City},
	}
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order is a checked-out cart.
type Order struct {
	ID               string // ULID
	SessionID        string
	Items            []CartItem
	TotalMinor       int64
	Currency         string
	Contact          CheckoutForm
	Status           OrderStatus
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PaidAt           *time.Time
}

// NewOrder snapshots cart into a pending order.
func NewOrder(cart *Cart, contact CheckoutForm) (*Order, error) {
	if cart.IsEmpty() {
		return nil, domain.ErrCartEmpty
	}
	now := time.Now()
	return &Order{
		ID:         ulid.Make().String(),
		SessionID:  cart.SessionID,
		Items:      cart.Lines(),
		TotalMinor: cart.Total(),
		Currency:   cart.Currency,
		Contact:    contact,
		Status:     OrderStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
