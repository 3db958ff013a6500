//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/infra/adapters/payment"
	"datahub-storefront/internal/usecase"
)

type wizardFixture struct {
	states   *memWizardRepo
	locker   *MockLocker
	limiter  *MockLimiter
	payments *memPaymentRepo
	registry *MockRegistry
	gateway  *payment.NoopPaymentGateway
	uc       usecase.AFAWizardUseCase
}

func newWizardFixture(t *testing.T, publicKey string, ready bool) *wizardFixture {
	t.Helper()
	f := &wizardFixture{
		states:   newMemWizardRepo(),
		locker:   NewMockLocker(),
		limiter:  NewMockLimiter(),
		payments: newMemPaymentRepo(),
		registry: NewMockRegistry("0241111111"),
		gateway:  payment.NewNoopPaymentGateway(publicKey, false),
	}
	f.uc = usecase.NewAFAWizardUseCase(
		f.states, f.locker, f.limiter, f.payments, f.registry, f.gateway, staticWidget(ready),
		newTestMessages(t),
		usecase.AFAWizardConfig{StoreEmail: "receipt@geniusdatahub.com", CheckLimit: 3, CheckWindow: time.Minute},
		newTestLogger(),
	)
	return f
}

// toForm submits an unregistered number and checks the wizard reached the form.
func (f *wizardFixture) toForm(t *testing.T, ctx context.Context, sess string) {
	t.Helper()
	st, err := f.uc.SubmitNumber(ctx, sess, "055 123 4567", "Kofi Mensah")
	if err != nil || st.Step != model.StepRegistrationForm {
		t.Fatalf("expected registration_form, got %+v, %v", st, err)
	}
}

// open begins a payment and tells the gateway it was paid in full.
func (f *wizardFixture) open(t *testing.T, ctx context.Context, sess string) *model.PaymentSetup {
	t.Helper()
	f.toForm(t, ctx, sess)
	_, setup, err := f.uc.BeginPayment(ctx, sess)
	if err != nil {
		t.Fatalf("BeginPayment failed: %v", err)
	}
	f.gateway.Expect(setup.Reference, setup.AmountMinor, setup.Currency)
	return setup
}

func TestAFAWizardUseCase_SubmitNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("should route a registered number to already_registered", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		st, err := f.uc.SubmitNumber(ctx, "s1", "0241111111", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.Step != model.StepAlreadyRegistered || st.Busy {
			t.Errorf("unexpected state %+v", st)
		}
		saved, ok := f.states.get("s1")
		if !ok || saved.Step != model.StepAlreadyRegistered {
			t.Errorf("expected the state to be persisted, got %+v", saved)
		}
	})

	t.Run("should route an unregistered number to the form", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.toForm(t, ctx, "s1")
		saved, _ := f.states.get("s1")
		if saved.PhoneNumber != "0551234567" || saved.DisplayName != "Kofi Mensah" {
			t.Errorf("expected normalized phone and name, got %+v", saved)
		}
	})

	t.Run("should keep an invalid number on enter_number without calling the backend", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		called := false
		f.registry.CheckStatusFunc = func(context.Context, model.PhoneNumber) (model.RegistrationStatus, error) {
			called = true
			return model.RegistrationStatusNotRegistered, nil
		}
		st, err := f.uc.SubmitNumber(ctx, "s1", "0201234567", "")
		if !errors.Is(err, domain.ErrInvalidPhone) {
			t.Fatalf("expected ErrInvalidPhone, got %v", err)
		}
		if called {
			t.Error("expected no status check for an invalid number")
		}
		if st.Step != model.StepEnterNumber || st.ErrorMessage != "Enter a valid Ghana MTN number" {
			t.Errorf("unexpected state %+v", st)
		}
	})

	t.Run("should show the network message when the backend is unreachable", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.registry.CheckStatusFunc = func(context.Context, model.PhoneNumber) (model.RegistrationStatus, error) {
			return "", fmt.Errorf("status: %w: connection refused", domain.ErrNetwork)
		}
		st, err := f.uc.SubmitNumber(ctx, "s1", "0551234567", "")
		if !errors.Is(err, domain.ErrNetwork) {
			t.Fatalf("expected ErrNetwork, got %v", err)
		}
		if st.Step != model.StepEnterNumber || st.Busy || st.ErrorCode != model.WizardErrNetwork {
			t.Errorf("unexpected state %+v", st)
		}
		if !strings.HasPrefix(st.ErrorMessage, "Network error") {
			t.Errorf("unexpected message %q", st.ErrorMessage)
		}
	})

	t.Run("should show the service message on a backend error", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.registry.CheckStatusFunc = func(context.Context, model.PhoneNumber) (model.RegistrationStatus, error) {
			return "", &domain.ServiceError{Op: "status", StatusCode: 500}
		}
		st, err := f.uc.SubmitNumber(ctx, "s1", "0551234567", "")
		if !errors.Is(err, domain.ErrService) || st.ErrorCode != model.WizardErrService {
			t.Errorf("expected a service error, got %+v, %v", st, err)
		}
	})

	t.Run("should rate limit repeated checks", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		for i := 0; i < 3; i++ {
			if _, err := f.uc.SubmitNumber(ctx, "s1", "0241111111", ""); err != nil {
				t.Fatalf("check %d: %v", i, err)
			}
			if _, err := f.uc.CheckAnother(ctx, "s1"); err != nil {
				t.Fatalf("reset %d: %v", i, err)
			}
		}
		if _, err := f.uc.SubmitNumber(ctx, "s1", "0241111111", ""); !errors.Is(err, domain.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("should report busy while another request holds the session", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		if _, err := f.locker.TryLock(ctx, "lock:afa_wizard:s1", time.Minute); err != nil {
			t.Fatal(err)
		}
		st, err := f.uc.SubmitNumber(ctx, "s1", "0551234567", "")
		if !errors.Is(err, domain.ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", err)
		}
		if st == nil || st.Step != model.StepEnterNumber {
			t.Errorf("expected the current state with the error, got %+v", st)
		}
	})

	t.Run("should release a status check that never finished", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.states.states["s1"] = model.WizardState{
			SessionID: "s1", Step: model.StepEnterNumber, PhoneNumber: "0551234567",
			Busy: true, UpdatedAt: time.Now().Add(-time.Hour),
		}
		st, err := f.uc.State(ctx, "s1")
		if err != nil {
			t.Fatalf("State failed: %v", err)
		}
		if st.Busy || st.ErrorCode != model.WizardErrInternal {
			t.Errorf("expected a released wizard, got %+v", st)
		}
		saved, ok := f.states.get("s1")
		if !ok || saved.Busy || saved.ErrorCode != model.WizardErrInternal {
			t.Errorf("expected the released wizard to be stored, got %+v", saved)
		}
	})

	t.Run("should not count invalid numbers against the limit", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		for i := 0; i < 4; i++ {
			if _, err := f.uc.SubmitNumber(ctx, "s1", "12345", ""); !errors.Is(err, domain.ErrInvalidPhone) {
				t.Fatalf("attempt %d: expected ErrInvalidPhone, got %v", i, err)
			}
		}
		st, err := f.uc.SubmitNumber(ctx, "s1", "0551234567", "")
		if err != nil {
			t.Fatalf("expected the valid number to be checked, got %v", err)
		}
		if st.Step != model.StepRegistrationForm {
			t.Errorf("unexpected state %+v", st)
		}
		if n := f.limiter.hits["rate_limit:s1:afa_number"]; n != 1 {
			t.Errorf("expected one counted check, got %d", n)
		}
	})
}

func TestAFAWizardUseCase_BeginPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should open a payment with the registration fee", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.toForm(t, ctx, "s1")
		st, setup, err := f.uc.BeginPayment(ctx, "s1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !st.Busy || st.PaymentReference != setup.Reference {
			t.Errorf("expected an in-flight payment, got %+v", st)
		}
		if setup.PublicKey != "pk_test" || setup.AmountMinor != 2000 || setup.Currency != "GHS" || setup.Email != "receipt@geniusdatahub.com" {
			t.Errorf("unexpected setup %+v", setup)
		}
		if !strings.HasPrefix(setup.Reference, "afa_0551234567_") {
			t.Errorf("unexpected reference %q", setup.Reference)
		}
		fields := setup.Metadata.CustomFields
		if len(fields) != 2 || fields[0].VariableName != "afa_mtn" || fields[0].Value != "0551234567" || fields[1].Value != "Kofi Mensah" {
			t.Errorf("unexpected metadata %+v", fields)
		}
		p := f.payments.only(t)
		if p.Status != model.PaymentStatusPending || p.Kind != model.PaymentKindAFARegistration || p.Reference != setup.Reference {
			t.Errorf("unexpected payment %+v", p)
		}
	})

	t.Run("should block without a public key", func(t *testing.T) {
		f := newWizardFixture(t, "", true)
		f.toForm(t, ctx, "s1")
		st, setup, err := f.uc.BeginPayment(ctx, "s1")
		if !errors.Is(err, domain.ErrPaymentConfig) || setup != nil {
			t.Fatalf("expected ErrPaymentConfig, got %v", err)
		}
		if st.Busy || st.ErrorMessage != "Payment configuration missing. Please contact support." {
			t.Errorf("unexpected state %+v", st)
		}
	})

	t.Run("should block while the widget is loading", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", false)
		f.toForm(t, ctx, "s1")
		st, _, err := f.uc.BeginPayment(ctx, "s1")
		if !errors.Is(err, domain.ErrPaymentNotReady) || st.ErrorCode != model.WizardErrPaymentNotReady {
			t.Errorf("expected ErrPaymentNotReady, got %+v, %v", st, err)
		}
	})

	t.Run("should reject pay before the form", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		if _, _, err := f.uc.BeginPayment(ctx, "s1"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("should reject a second payment while one is open", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.open(t, ctx, "s1")
		if _, _, err := f.uc.BeginPayment(ctx, "s1"); !errors.Is(err, domain.ErrBusy) {
			t.Errorf("expected ErrBusy, got %v", err)
		}
	})

	t.Run("should clear busy when the payment cannot be recorded", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.toForm(t, ctx, "s1")
		f.payments.saveErr = errors.New("db down")
		st, setup, err := f.uc.BeginPayment(ctx, "s1")
		if err == nil || setup != nil {
			t.Fatalf("expected an error, got %v", err)
		}
		if st.Busy || st.ErrorCode != model.WizardErrInternal {
			t.Errorf("unexpected state %+v", st)
		}
	})
}

func TestAFAWizardUseCase_CompletePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("should register the number after a verified payment", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		st, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, "T123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.Step != model.StepSuccess || st.Busy {
			t.Errorf("unexpected state %+v", st)
		}
		if name, ok := f.registry.nameOf("0551234567"); !ok || name != "Kofi Mensah" {
			t.Errorf("expected the number to be registered with its name, got %q %v", name, ok)
		}
		p := f.payments.only(t)
		if p.Status != model.PaymentStatusSucceeded || p.PaidAt == nil || p.ProviderTxRef == nil {
			t.Errorf("unexpected payment %+v", p)
		}
	})

	t.Run("should keep the reference for support when registration fails", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		f.registry.RegisterFunc = func(context.Context, model.PhoneNumber, string) (model.RegistrationResult, error) {
			return model.RegistrationResult{}, &domain.ServiceError{Op: "register", StatusCode: 502}
		}
		st, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, "T123")
		if !errors.Is(err, domain.ErrPostPaymentRegistration) {
			t.Fatalf("expected ErrPostPaymentRegistration, got %v", err)
		}
		if st.Step != model.StepRegistrationForm || st.Busy || !strings.Contains(st.ErrorMessage, setup.Reference) {
			t.Errorf("unexpected state %+v", st)
		}
		if p := f.payments.only(t); p.Status != model.PaymentStatusPaidUnregistered {
			t.Errorf("expected paid_unregistered, got %s", p.Status)
		}
	})

	t.Run("should treat an unsuccessful register result as post-payment failure", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		f.registry.RegisterFunc = func(context.Context, model.PhoneNumber, string) (model.RegistrationResult, error) {
			return model.RegistrationResult{}, nil
		}
		st, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, "")
		if !errors.Is(err, domain.ErrPostPaymentRegistration) || st.ErrorCode != model.WizardErrPostPaymentRegister {
			t.Errorf("expected a post-payment failure, got %+v, %v", st, err)
		}
	})

	t.Run("should go to already_registered when the backend already knows the number", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		f.registry.RegisterFunc = func(context.Context, model.PhoneNumber, string) (model.RegistrationResult, error) {
			return model.RegistrationResult{AlreadyRegistered: true}, nil
		}
		st, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, "")
		if err != nil || st.Step != model.StepAlreadyRegistered {
			t.Errorf("expected already_registered, got %+v, %v", st, err)
		}
		if p := f.payments.only(t); p.Status != model.PaymentStatusSucceeded {
			t.Errorf("expected succeeded, got %s", p.Status)
		}
	})

	t.Run("should not register when the provider denies the payment", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.toForm(t, ctx, "s1")
		_, setup, err := f.uc.BeginPayment(ctx, "s1")
		if err != nil {
			t.Fatal(err)
		}
		st, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, "T1")
		if !errors.Is(err, domain.ErrPaymentNotVerified) {
			t.Fatalf("expected ErrPaymentNotVerified, got %v", err)
		}
		if st.Busy || st.Step != model.StepRegistrationForm {
			t.Errorf("unexpected state %+v", st)
		}
		if _, ok := f.registry.nameOf("0551234567"); ok {
			t.Error("expected no registration")
		}
		if p := f.payments.only(t); p.Status != model.PaymentStatusFailed {
			t.Errorf("expected failed, got %s", p.Status)
		}
	})

	t.Run("should reject a paid amount that does not match", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		f.gateway.Expect(setup.Reference, 100, "GHS")
		if _, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, ""); !errors.Is(err, domain.ErrPaymentNotVerified) {
			t.Errorf("expected ErrPaymentNotVerified, got %v", err)
		}
	})

	t.Run("should leave the payment pending when the provider is unreachable", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		f.gateway.FailWith(errors.New("timeout"))
		if _, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, ""); !errors.Is(err, domain.ErrPaymentNotVerified) {
			t.Fatalf("expected ErrPaymentNotVerified, got %v", err)
		}
		if p := f.payments.only(t); p.Status != model.PaymentStatusPending {
			t.Errorf("expected pending for reconciliation, got %s", p.Status)
		}
	})

	t.Run("should register a late payment after the wizard expired", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		if err := f.states.ClearState(ctx, "s1"); err != nil {
			t.Fatal(err)
		}

		st, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, "T123")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.Step != model.StepSuccess || st.Busy {
			t.Errorf("unexpected state %+v", st)
		}
		if name, ok := f.registry.nameOf("0551234567"); !ok || name != "Kofi Mensah" {
			t.Errorf("expected the number to be registered with its name, got %q %v", name, ok)
		}
		if p := f.payments.only(t); p.Status != model.PaymentStatusSucceeded {
			t.Errorf("expected succeeded, got %s", p.Status)
		}
		if saved, ok := f.states.get("s1"); !ok || saved.Step != model.StepSuccess {
			t.Errorf("expected the finished wizard to be stored, got %+v", saved)
		}
	})

	t.Run("should correct a payment settled by the reconciler while the widget was open", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		p := f.payments.only(t)
		if err := f.payments.UpdateStatus(ctx, nil, p.ID, model.PaymentStatusPaidUnregistered); err != nil {
			t.Fatal(err)
		}

		st, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, "T123")
		if err != nil || st.Step != model.StepSuccess {
			t.Fatalf("expected success, got %+v, %v", st, err)
		}
		if got := f.payments.only(t); got.Status != model.PaymentStatusSucceeded {
			t.Errorf("expected succeeded, got %s", got.Status)
		}
	})

	t.Run("should resume an abandoned payment after the wizard expired", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		_ = f.states.ClearState(ctx, "s1")
		p := f.payments.only(t)
		_ = f.payments.UpdateStatus(ctx, nil, p.ID, model.PaymentStatusAbandoned)

		st, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, "T123")
		if err != nil || st.Step != model.StepSuccess {
			t.Fatalf("expected success, got %+v, %v", st, err)
		}
		if got := f.payments.only(t); got.Status != model.PaymentStatusSucceeded {
			t.Errorf("expected succeeded, got %s", got.Status)
		}
	})

	t.Run("should not resume a payment that belongs to another session", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")

		if _, err := f.uc.CompletePayment(ctx, "s2", setup.Reference, "T123"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}
		if _, ok := f.registry.nameOf("0551234567"); ok {
			t.Error("expected no registration")
		}
		if p := f.payments.only(t); p.Status != model.PaymentStatusPending {
			t.Errorf("expected pending, got %s", p.Status)
		}
	})

	t.Run("should ignore a callback for another reference", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.open(t, ctx, "s1")
		st, err := f.uc.CompletePayment(ctx, "s1", "afa_other", "")
		if !errors.Is(err, domain.ErrPaymentReferenceMismatch) {
			t.Fatalf("expected ErrPaymentReferenceMismatch, got %v", err)
		}
		if !st.Busy {
			t.Error("expected the open attempt to stay in flight")
		}
	})
}

func TestAFAWizardUseCase_Navigation(t *testing.T) {
	ctx := context.Background()

	t.Run("should abandon the payment when the widget is closed", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.open(t, ctx, "s1")
		st, err := f.uc.ClosePayment(ctx, "s1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if st.Busy || st.PaymentReference != "" || !st.CanPay() {
			t.Errorf("unexpected state %+v", st)
		}
		if p := f.payments.only(t); p.Status != model.PaymentStatusAbandoned {
			t.Errorf("expected abandoned, got %s", p.Status)
		}
	})

	t.Run("should go back to enter_number keeping the number", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.toForm(t, ctx, "s1")
		st, err := f.uc.UseAnotherNumber(ctx, "s1")
		if err != nil || st.Step != model.StepEnterNumber || st.PhoneNumber != "0551234567" {
			t.Errorf("unexpected state %+v, %v", st, err)
		}
	})

	t.Run("should update the display name on the form", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		f.toForm(t, ctx, "s1")
		st, err := f.uc.ChangeName(ctx, "s1", "Ama")
		if err != nil || st.DisplayName != "Ama" {
			t.Errorf("unexpected state %+v, %v", st, err)
		}
	})

	t.Run("should hand off to bundles after success and forget the wizard", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		setup := f.open(t, ctx, "s1")
		if _, err := f.uc.CompletePayment(ctx, "s1", setup.Reference, ""); err != nil {
			t.Fatal(err)
		}
		route, err := f.uc.Continue(ctx, "s1")
		if err != nil || route != "/bundles/afa" {
			t.Fatalf("expected /bundles/afa, got %q, %v", route, err)
		}
		if _, ok := f.states.get("s1"); ok {
			t.Error("expected the wizard to be cleared")
		}
	})

	t.Run("should refuse to continue before success", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		if _, err := f.uc.Continue(ctx, "s1"); !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})

	t.Run("should require a session", func(t *testing.T) {
		f := newWizardFixture(t, "pk_test", true)
		if _, err := f.uc.State(ctx, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
