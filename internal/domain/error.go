package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid exec context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("could not read database row")

	// Registration wizard
	ErrInvalidPhone             = errors.New("invalid MTN phone number")
	ErrNetwork                  = errors.New("registration service unreachable")
	ErrService                  = errors.New("registration service error")
	ErrPaymentConfig            = errors.New("payment configuration missing")
	ErrPaymentNotReady          = errors.New("payment system still loading")
	ErrPostPaymentRegistration  = errors.New("registration failed after payment")
	ErrInvalidTransition        = errors.New("action not allowed in current step")
	ErrBusy                     = errors.New("another action is in progress")
	ErrPaymentReferenceMismatch = errors.New("payment reference does not match the active attempt")
	ErrPaymentNotVerified       = errors.New("payment could not be verified")
	ErrRateLimited              = errors.New("too many requests")

	// Cart and checkout
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrItemNotInCart   = errors.New("item not in cart")
	ErrCartEmpty       = errors.New("cart is empty")
)

// ServiceError is a non-success response from the registration backend.
type ServiceError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: registration service returned %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: registration service returned %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *ServiceError) Is(target error) bool { return target == ErrService }

// ValidationErrors maps form field names to a problem with that field.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Is(target error) bool { return target == ErrInvalidArgument }
