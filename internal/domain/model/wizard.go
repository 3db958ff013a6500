package model

import (
	"strings"
	"time"

	"datahub-storefront/internal/domain"
)

// WizardStep is a step of the AFA registration wizard.
type WizardStep string

const (
	StepEnterNumber       WizardStep = "enter_number"
	StepAlreadyRegistered WizardStep = "already_registered"
	StepRegistrationForm  WizardStep = "registration_form"
	StepSuccess           WizardStep = "success"
)

// WizardErrorCode identifies the user-facing problem shown on the current step.
// The text itself lives in the message catalog.
type WizardErrorCode string

const (
	WizardErrNone                WizardErrorCode = ""
	WizardErrInvalidPhone        WizardErrorCode = "invalid_phone"
	WizardErrNetwork             WizardErrorCode = "network_error"
	WizardErrService             WizardErrorCode = "service_error"
	WizardErrPaymentConfig       WizardErrorCode = "payment_config_missing"
	WizardErrPaymentNotReady     WizardErrorCode = "payment_not_ready"
	WizardErrPaymentNotVerified  WizardErrorCode = "payment_not_verified"
	WizardErrPostPaymentRegister WizardErrorCode = "post_payment_registration_failed"
	WizardErrInternal            WizardErrorCode = "internal_error"
)

// WizardState is the server-side state of one AFA registration wizard.
type WizardState struct {
	SessionID        string          `json:"session_id"`
	Step             WizardStep      `json:"step"`
	PhoneNumber      PhoneNumber     `json:"phone_number"`
	DisplayName      string          `json:"display_name"`
	ErrorCode        WizardErrorCode `json:"error_code,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
	Busy             bool            `json:"busy"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	TransactionRef   string          `json:"transaction_ref,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// NewWizardState returns a fresh wizard on the enter_number step.
func NewWizardState(sessionID string) *WizardState {
	return &WizardState{
		SessionID: sessionID,
		Step:      StepEnterNumber,
		UpdatedAt: time.Now(),
	}
}

// CanSubmitNumber mirrors the enabled state of the "Proceed" action.
func (s WizardState) CanSubmitNumber() bool {
	return s.Step == StepEnterNumber && !s.Busy && s.PhoneNumber.IsValidMTN()
}

// CanPay mirrors the enabled state of the "Pay" action.
func (s WizardState) CanPay() bool {
	return s.Step == StepRegistrationForm && !s.Busy && s.PhoneNumber.IsValidMTN()
}

// PaymentInFlight reports whether a payment attempt is open.
func (s WizardState) PaymentInFlight() bool {
	return s.Step == StepRegistrationForm && s.Busy && s.PaymentReference != ""
}

// WizardEvent is a discrete input to the wizard: a user action, a network
// completion or a payment widget callback.
type WizardEvent interface {
	wizardEvent()
}

type (
	// NumberSubmitted is the "Proceed" action on the enter_number step.
	NumberSubmitted struct {
		Raw  string
		Name string
	}
	// NameChanged edits the optional display name.
	NameChanged struct{ Name string }
	// StatusChecked is a successful status lookup.
	StatusChecked struct{ Registered bool }
	// StatusCheckFailed is a failed status lookup.
	StatusCheckFailed struct{ Code WizardErrorCode }
	// PaymentBlocked means the pay action could not open the widget.
	PaymentBlocked struct{ Code WizardErrorCode }
	// PaymentOpened means the widget was handed a fresh reference.
	PaymentOpened struct{ Reference string }
	// PaymentSucceeded is the widget success callback.
	PaymentSucceeded struct {
		Reference string
		TxRef     string
	}
	// PaymentFailed means the success callback could not be confirmed.
	PaymentFailed struct{ Code WizardErrorCode }
	// PaymentClosed is the widget dismissal callback.
	PaymentClosed struct{}
	// RegistrationCompleted is a register call that returned a result.
	RegistrationCompleted struct{ Result RegistrationResult }
	// RegistrationFailed is a register call that failed after payment.
	RegistrationFailed struct{ Code WizardErrorCode }
	// CheckAnother restarts the wizard from already_registered.
	CheckAnother struct{}
	// UseAnotherNumber goes back from registration_form to enter_number.
	UseAnotherNumber struct{}
)

func (NumberSubmitted) wizardEvent()       {}
func (NameChanged) wizardEvent()           {}
func (StatusChecked) wizardEvent()         {}
func (StatusCheckFailed) wizardEvent()     {}
func (PaymentBlocked) wizardEvent()        {}
func (PaymentOpened) wizardEvent()         {}
func (PaymentSucceeded) wizardEvent()      {}
func (PaymentFailed) wizardEvent()         {}
func (PaymentClosed) wizardEvent()         {}
func (RegistrationCompleted) wizardEvent() {}
func (RegistrationFailed) wizardEvent()    {}
func (CheckAnother) wizardEvent()          {}
func (UseAnotherNumber) wizardEvent()      {}

// Apply returns the state that follows s after ev.
//
// A returned domain.ErrInvalidTransition, domain.ErrBusy or
// domain.ErrPaymentReferenceMismatch means ev was rejected and the returned
// state equals s. domain.ErrInvalidPhone comes with a state carrying the
// validation error and must be kept.
func (s WizardState) Apply(ev WizardEvent) (WizardState, error) {
	next := s
	switch e := ev.(type) {
	case NumberSubmitted:
		if s.Step != StepEnterNumber {
			return s, domain.ErrInvalidTransition
		}
		if s.Busy {
			return s, domain.ErrBusy
		}
		next.PhoneNumber = NormalizePhone(e.Raw)
		next.DisplayName = strings.TrimSpace(e.Name)
		if !next.PhoneNumber.IsValidMTN() {
			next.setError(WizardErrInvalidPhone)
			return next.touch(), domain.ErrInvalidPhone
		}
		next.clearError()
		next.Busy = true

	case NameChanged:
		if s.Step != StepEnterNumber && s.Step != StepRegistrationForm {
			return s, domain.ErrInvalidTransition
		}
		if s.Busy {
			return s, domain.ErrBusy
		}
		next.DisplayName = strings.TrimSpace(e.Name)

	case StatusChecked:
		if s.Step != StepEnterNumber || !s.Busy {
			return s, domain.ErrInvalidTransition
		}
		next.Busy = false
		next.clearError()
		if e.Registered {
			next.Step = StepAlreadyRegistered
		} else {
			next.Step = StepRegistrationForm
		}

	case StatusCheckFailed:
		if s.Step != StepEnterNumber || !s.Busy {
			return s, domain.ErrInvalidTransition
		}
		next.Busy = false
		next.setError(e.Code)

	case PaymentBlocked:
		if s.Step != StepRegistrationForm {
			return s, domain.ErrInvalidTransition
		}
		if s.Busy {
			return s, domain.ErrBusy
		}
		next.setError(e.Code)

	case PaymentOpened:
		if s.Step != StepRegistrationForm {
			return s, domain.ErrInvalidTransition
		}
		if s.Busy {
			return s, domain.ErrBusy
		}
		if !s.PhoneNumber.IsValidMTN() {
			next.setError(WizardErrInvalidPhone)
			return next.touch(), domain.ErrInvalidPhone
		}
		next.clearError()
		next.Busy = true
		next.PaymentReference = e.Reference
		next.TransactionRef = ""

	case PaymentSucceeded:
		if !s.PaymentInFlight() {
			return s, domain.ErrInvalidTransition
		}
		if e.Reference != s.PaymentReference {
			return s, domain.ErrPaymentReferenceMismatch
		}
		next.TransactionRef = e.TxRef

	case PaymentFailed:
		if !s.PaymentInFlight() {
			return s, domain.ErrInvalidTransition
		}
		next.Busy = false
		next.setError(e.Code)

	case PaymentClosed:
		if s.Step != StepRegistrationForm {
			return s, domain.ErrInvalidTransition
		}
		if !s.Busy {
			return s, nil
		}
		next.Busy = false
		next.PaymentReference = ""
		next.TransactionRef = ""

	case RegistrationCompleted:
		if !s.PaymentInFlight() {
			return s, domain.ErrInvalidTransition
		}
		next.Busy = false
		switch {
		case e.Result.AlreadyRegistered:
			next.clearError()
			next.Step = StepAlreadyRegistered
		case e.Result.Success:
			next.clearError()
			next.Step = StepSuccess
		default:
			next.setError(WizardErrPostPaymentRegister)
		}

	case RegistrationFailed:
		if !s.PaymentInFlight() {
			return s, domain.ErrInvalidTransition
		}
		next.Busy = false
		next.setError(e.Code)

	case CheckAnother:
		if s.Step != StepAlreadyRegistered {
			return s, domain.ErrInvalidTransition
		}
		return *NewWizardState(s.SessionID), nil

	case UseAnotherNumber:
		if s.Step != StepRegistrationForm {
			return s, domain.ErrInvalidTransition
		}
		if s.Busy {
			return s, domain.ErrBusy
		}
		next.Step = StepEnterNumber
		next.clearError()
		next.PaymentReference = ""
		next.TransactionRef = ""

	default:
		return s, domain.ErrInvalidTransition
	}
	return next.touch(), nil
}

func (s *WizardState) setError(code WizardErrorCode) {
	s.ErrorCode = code
	s.ErrorMessage = ""
}

func (s *WizardState) clearError() {
	s.ErrorCode = WizardErrNone
	s.ErrorMessage = ""
}

func (s WizardState) touch() WizardState {
	s.UpdatedAt = time.Now()
	return s
}
