package adapter

import (
	"context"

	"datahub-storefront/internal/domain/model"
)

// RegistrationService is the external AFA registration backend.
//
// Both calls fail with an error matching domain.ErrNetwork when the backend
// cannot be reached and domain.ErrService (a *domain.ServiceError) when it
// answers with a non-success response. Registering a registered number is not
// an error; it is reported through RegistrationResult.AlreadyRegistered.
type RegistrationService interface {
	CheckStatus(ctx context.Context, phone model.PhoneNumber) (model.RegistrationStatus, error)
	Register(ctx context.Context, phone model.PhoneNumber, name string) (model.RegistrationResult, error)
}
