package model

// RegistrationStatus is what the registration backend knows about a number.
type RegistrationStatus string

const (
	RegistrationStatusRegistered    RegistrationStatus = "registered"
	RegistrationStatusNotRegistered RegistrationStatus = "not_registered"
)

func (s RegistrationStatus) IsRegistered() bool { return s == RegistrationStatusRegistered }

// RegistrationResult is the outcome of a registration attempt.
// AlreadyRegistered may be true even after a not_registered status check:
// the number can get registered between the check and the payment.
type RegistrationResult struct {
	Success           bool `json:"success"`
	AlreadyRegistered bool `json:"alreadyRegistered"`
}
