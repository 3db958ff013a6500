// File: internal/usecase/afa_wizard_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/domain/ports/adapter"
	"datahub-storefront/internal/domain/ports/repository"
	"datahub-storefront/internal/infra/logging"
	"datahub-storefront/internal/infra/metrics"
)

// Compile-time check
var _ AFAWizardUseCase = (*afaWizardUC)(nil)

// AFAWizardUseCase drives one AFA registration wizard per storefront session.
//
// Every method returns the wizard state the caller should render, also when it
// returns an error. Errors classify what happened (domain.ErrInvalidPhone,
// domain.ErrNetwork, domain.ErrPaymentConfig, ...); the user-facing text is
// already in the state's ErrorMessage.
type AFAWizardUseCase interface {
	State(ctx context.Context, sessionID string) (*model.WizardState, error)
	SubmitNumber(ctx context.Context, sessionID, raw, name string) (*model.WizardState, error)
	ChangeName(ctx context.Context, sessionID, name string) (*model.WizardState, error)
	BeginPayment(ctx context.Context, sessionID string) (*model.WizardState, *model.PaymentSetup, error)
	CompletePayment(ctx context.Context, sessionID, reference, providerTxRef string) (*model.WizardState, error)
	ClosePayment(ctx context.Context, sessionID string) (*model.WizardState, error)
	CheckAnother(ctx context.Context, sessionID string) (*model.WizardState, error)
	UseAnotherNumber(ctx context.Context, sessionID string) (*model.WizardState, error)
	// Continue returns the bundle purchase route once registration succeeded.
	Continue(ctx context.Context, sessionID string) (string, error)
}

// Messages renders message keys into user-facing text.
type Messages interface {
	T(key string, args ...interface{}) string
}

type AFAWizardConfig struct {
	FeeMajor      int64
	Currency      string
	StoreEmail    string
	PackagesRoute string

	// LockTTL bounds how long one transition may hold the session lock.
	LockTTL time.Duration
	// StaleBusyAfter releases a status check that never finished.
	StaleBusyAfter time.Duration

	CheckLimit  int
	CheckWindow time.Duration

	Dev bool
}

type afaWizardUC struct {
	states   repository.WizardStateRepository
	locker   repository.Locker
	limiter  repository.RateLimiter
	payments repository.PaymentRepository
	registry adapter.RegistrationService
	gateway  adapter.PaymentGateway
	widget   adapter.WidgetReadiness
	msgs     Messages
	cfg      AFAWizardConfig
	log      *zerolog.Logger
	now      func() time.Time
}

func NewAFAWizardUseCase(
	states repository.WizardStateRepository,
	locker repository.Locker,
	limiter repository.RateLimiter,
	payments repository.PaymentRepository,
	registry adapter.RegistrationService,
	gateway adapter.PaymentGateway,
	widget adapter.WidgetReadiness,
	msgs Messages,
	cfg AFAWizardConfig,
	logger *zerolog.Logger,
) *afaWizardUC {
	if cfg.FeeMajor <= 0 {
		cfg.FeeMajor = 20
	}
	if cfg.Currency == "" {
		cfg.Currency = "GHS"
	}
	if cfg.PackagesRoute == "" {
		cfg.PackagesRoute = "/bundles/afa"
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 45 * time.Second
	}
	if cfg.StaleBusyAfter <= 0 {
		cfg.StaleBusyAfter = 2 * time.Minute
	}
	l := logger.With().Str("component", "AFAWizardUC").Logger()
	return &afaWizardUC{
		states:   states,
		locker:   locker,
		limiter:  limiter,
		payments: payments,
		registry: registry,
		gateway:  gateway,
		widget:   widget,
		msgs:     msgs,
		cfg:      cfg,
		log:      &l,
		now:      time.Now,
	}
}

func (u *afaWizardUC) State(ctx context.Context, sessionID string) (*model.WizardState, error) {
	defer logging.TraceDuration(u.log, "AFAWizardUC.State")()
	return u.withLock(ctx, sessionID, func(st *model.WizardState) (*model.WizardState, error) {
		return st, nil
	})
}

func (u *afaWizardUC) SubmitNumber(ctx context.Context, sessionID, raw, name string) (*model.WizardState, error) {
	defer logging.TraceDuration(u.log, "AFAWizardUC.SubmitNumber")()
	return u.withLock(ctx, sessionID, func(st *model.WizardState) (*model.WizardState, error) {
		next, err := u.apply(st, model.NumberSubmitted{Raw: raw, Name: name})
		if err != nil {
			return next, err
		}
		// Only numbers that would reach the registry count against the limit.
		if u.limiter != nil && u.cfg.CheckLimit > 0 {
			ok, err := u.limiter.Allow(ctx, "rate_limit:"+sessionID+":afa_number", u.cfg.CheckLimit, u.cfg.CheckWindow)
			if err != nil {
				u.log.Warn().Err(err).Msg("rate limiter unavailable; allowing request")
			} else if !ok {
				metrics.IncRateLimited("afa_number")
				return st, domain.ErrRateLimited
			}
		}
		// Persist the busy flag so concurrent reads render the check in progress.
		if err := u.states.SetState(ctx, next); err != nil {
			return st, fmt.Errorf("save busy wizard: %w", err)
		}

		lg := logging.With(logging.WithPhone(ctx, next.PhoneNumber.String(), u.cfg.Dev), u.log)
		status, checkErr := u.registry.CheckStatus(ctx, next.PhoneNumber)
		var ev model.WizardEvent = model.StatusChecked{Registered: status.IsRegistered()}
		if checkErr != nil {
			lg.Warn().Err(checkErr).Msg("registration status check failed")
			ev = model.StatusCheckFailed{Code: codeFor(checkErr)}
		}
		done, err := u.apply(next, ev)
		if err != nil {
			return next, err
		}
		lg.Info().Str("step", string(done.Step)).Msg("registration status checked")
		return done, checkErr
	})
}

func (u *afaWizardUC) ChangeName(ctx context.Context, sessionID, name string) (*model.WizardState, error) {
	return u.simple(ctx, sessionID, model.NameChanged{Name: name})
}

func (u *afaWizardUC) BeginPayment(ctx context.Context, sessionID string) (*model.WizardState, *model.PaymentSetup, error) {
	defer logging.TraceDuration(u.log, "AFAWizardUC.BeginPayment")()
	var setup *model.PaymentSetup
	st, err := u.withLock(ctx, sessionID, func(st *model.WizardState) (*model.WizardState, error) {
		if st.Step != model.StepRegistrationForm {
			return st, domain.ErrInvalidTransition
		}
		if st.Busy {
			return st, domain.ErrBusy
		}

		var blocked model.WizardErrorCode
		var blockedErr error
		switch {
		case !st.PhoneNumber.IsValidMTN():
			blocked, blockedErr = model.WizardErrInvalidPhone, domain.ErrInvalidPhone
		case u.gateway == nil || u.gateway.PublicKey() == "":
			blocked, blockedErr = model.WizardErrPaymentConfig, domain.ErrPaymentConfig
		case u.widget == nil || !u.widget.Ready():
			blocked, blockedErr = model.WizardErrPaymentNotReady, domain.ErrPaymentNotReady
		}
		if blockedErr != nil {
			next, err := u.apply(st, model.PaymentBlocked{Code: blocked})
			if err != nil {
				return next, err
			}
			return next, blockedErr
		}

		now := u.now()
		ref := fmt.Sprintf("afa_%s_%d", st.PhoneNumber, now.UnixMilli())
		next, err := u.apply(st, model.PaymentOpened{Reference: ref})
		if err != nil {
			return next, err
		}

		meta := model.PaymentMetadata{CustomFields: []model.CustomField{
			{DisplayName: "MTN Number", VariableName: "afa_mtn", Value: st.PhoneNumber.String()},
			{DisplayName: "Full Name", VariableName: "afa_name", Value: st.DisplayName},
		}}
		p := &model.Payment{
			ID:          uuid.NewString(),
			Kind:        model.PaymentKindAFARegistration,
			SessionID:   sessionID,
			Reference:   ref,
			Provider:    u.gateway.Name(),
			AmountMinor: model.ToMinor(u.cfg.FeeMajor),
			Currency:    u.cfg.Currency,
			Email:       u.cfg.StoreEmail,
			Phone:       st.PhoneNumber.String(),
			Status:      model.PaymentStatusPending,
			Metadata:    meta,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := u.payments.Save(ctx, nil, p); err != nil {
			u.log.Error().Err(err).Str("reference", ref).Msg("persist pending payment")
			return u.failPayment(next, model.WizardErrInternal, fmt.Errorf("save payment: %w", err))
		}
		metrics.IncPayment(string(p.Kind), string(p.Status))

		setup = &model.PaymentSetup{
			PublicKey:   u.gateway.PublicKey(),
			Email:       p.Email,
			AmountMinor: p.AmountMinor,
			Currency:    p.Currency,
			Reference:   ref,
			Metadata:    meta,
		}
		u.log.Info().Str("reference", ref).Msg("afa payment opened")
		return next, nil
	})
	return st, setup, err
}

func (u *afaWizardUC) CompletePayment(ctx context.Context, sessionID, reference, providerTxRef string) (*model.WizardState, error) {
	defer logging.TraceDuration(u.log, "AFAWizardUC.CompletePayment")()
	return u.withLock(ctx, sessionID, func(st *model.WizardState) (*model.WizardState, error) {
		p, findErr := u.payments.FindByReference(ctx, nil, reference)
		cur := st
		if findErr == nil && !st.PaymentInFlight() {
			if resumed, ok := resumeAttempt(st, sessionID, p); ok {
				u.log.Warn().Str("reference", reference).Str("payment_status", string(p.Status)).
					Msg("wizard state lost during payment; resuming from payment record")
				cur = resumed
			}
		}
		next, err := u.apply(cur, model.PaymentSucceeded{Reference: reference, TxRef: providerTxRef})
		if err != nil {
			return st, err
		}
		lg := logging.With(logging.WithPhone(ctx, next.PhoneNumber.String(), u.cfg.Dev), u.log).
			With().Str("reference", reference).Logger()

		if findErr != nil {
			lg.Error().Err(findErr).Msg("payment record missing for callback")
			return u.failPayment(next, model.WizardErrInternal, fmt.Errorf("find payment: %w", findErr))
		}

		v, err := u.gateway.Verify(ctx, reference)
		if err != nil {
			// Left pending; the reconciler settles it once the provider answers.
			lg.Warn().Err(err).Msg("payment verification unavailable")
			return u.failPayment(next, model.WizardErrPaymentNotVerified, fmt.Errorf("%w: %v", domain.ErrPaymentNotVerified, err))
		}
		if !verified(v, p) {
			lg.Warn().Str("provider_status", v.Status).Int64("amount", v.AmountMinor).Msg("payment not confirmed by provider")
			if _, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusFailed, nil, nil); err != nil {
				lg.Error().Err(err).Msg("mark payment failed")
			}
			metrics.IncPayment(string(p.Kind), string(model.PaymentStatusFailed))
			return u.failPayment(next, model.WizardErrPaymentNotVerified, domain.ErrPaymentNotVerified)
		}

		txRef := v.ProviderID
		if txRef == "" {
			txRef = providerTxRef
		}
		paidAt := v.PaidAt
		if paidAt.IsZero() {
			paidAt = u.now()
		}

		result, regErr := u.registry.Register(ctx, next.PhoneNumber, next.DisplayName)
		var ev model.WizardEvent = model.RegistrationCompleted{Result: result}
		if regErr != nil {
			ev = model.RegistrationFailed{Code: model.WizardErrPostPaymentRegister}
		}
		done, err := u.apply(next, ev)
		if err != nil {
			return next, err
		}

		status := model.PaymentStatusSucceeded
		if done.ErrorCode == model.WizardErrPostPaymentRegister {
			status = model.PaymentStatusPaidUnregistered
			lg.Error().Err(regErr).Bool("success", result.Success).Msg("registration failed after payment; needs support")
		}
		u.recordOutcome(ctx, &lg, p, status, txRef, paidAt)

		if status == model.PaymentStatusPaidUnregistered {
			if regErr != nil {
				return done, fmt.Errorf("%w: %v", domain.ErrPostPaymentRegistration, regErr)
			}
			return done, domain.ErrPostPaymentRegistration
		}
		lg.Info().Str("step", string(done.Step)).Msg("afa registration completed")
		return done, nil
	})
}

func (u *afaWizardUC) ClosePayment(ctx context.Context, sessionID string) (*model.WizardState, error) {
	defer logging.TraceDuration(u.log, "AFAWizardUC.ClosePayment")()
	return u.withLock(ctx, sessionID, func(st *model.WizardState) (*model.WizardState, error) {
		ref := st.PaymentReference
		next, err := u.apply(st, model.PaymentClosed{})
		if err != nil || ref == "" || !st.Busy {
			return next, err
		}
		p, err := u.payments.FindByReference(ctx, nil, ref)
		if err != nil {
			u.log.Warn().Err(err).Str("reference", ref).Msg("closed payment not found")
			return next, nil
		}
		changed, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, model.PaymentStatusAbandoned, nil, nil)
		if err != nil {
			u.log.Error().Err(err).Str("reference", ref).Msg("mark payment abandoned")
			return next, nil
		}
		if changed {
			metrics.IncPayment(string(p.Kind), string(model.PaymentStatusAbandoned))
		}
		u.log.Info().Str("reference", ref).Msg("afa payment closed")
		return next, nil
	})
}

func (u *afaWizardUC) CheckAnother(ctx context.Context, sessionID string) (*model.WizardState, error) {
	return u.simple(ctx, sessionID, model.CheckAnother{})
}

func (u *afaWizardUC) UseAnotherNumber(ctx context.Context, sessionID string) (*model.WizardState, error) {
	return u.simple(ctx, sessionID, model.UseAnotherNumber{})
}

func (u *afaWizardUC) Continue(ctx context.Context, sessionID string) (string, error) {
	st, _, err := u.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if st.Step != model.StepSuccess {
		return "", domain.ErrInvalidTransition
	}
	if err := u.states.ClearState(ctx, sessionID); err != nil {
		u.log.Warn().Err(err).Msg("clear finished wizard")
	}
	return u.cfg.PackagesRoute, nil
}

// --- helpers ---

func (u *afaWizardUC) simple(ctx context.Context, sessionID string, ev model.WizardEvent) (*model.WizardState, error) {
	return u.withLock(ctx, sessionID, func(st *model.WizardState) (*model.WizardState, error) {
		return u.apply(st, ev)
	})
}

// withLock runs fn on the session's wizard under the session lock and saves
// the state fn returns when it differs from the loaded one.
func (u *afaWizardUC) withLock(ctx context.Context, sessionID string, fn func(st *model.WizardState) (*model.WizardState, error)) (*model.WizardState, error) {
	if sessionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	ctx = logging.WithSessID(ctx, sessionID)
	key := "lock:afa_wizard:" + sessionID
	token, err := u.locker.TryLock(ctx, key, u.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrBusy) {
			st, _, loadErr := u.load(ctx, sessionID)
			if loadErr != nil {
				return nil, domain.ErrBusy
			}
			return st, domain.ErrBusy
		}
		return nil, fmt.Errorf("lock wizard: %w", err)
	}
	defer func() {
		if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			u.log.Warn().Err(err).Msg("unlock wizard")
		}
	}()

	st, dirty, err := u.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	loaded := *st
	out, fnErr := fn(st)
	if out == nil {
		out = &loaded
	}
	if dirty || *out != loaded {
		if out.UpdatedAt.IsZero() {
			out.UpdatedAt = u.now()
		}
		if err := u.states.SetState(context.WithoutCancel(ctx), out); err != nil {
			u.log.Error().Err(err).Msg("save wizard")
			if fnErr == nil {
				fnErr = fmt.Errorf("save wizard: %w", err)
			}
		}
	}
	return out, fnErr
}

// apply runs the reducer, renders the error message and records the transition.
func (u *afaWizardUC) apply(st *model.WizardState, ev model.WizardEvent) (*model.WizardState, error) {
	next, err := st.Apply(ev)
	if err != nil && !errors.Is(err, domain.ErrInvalidPhone) {
		return st, err
	}
	u.render(&next)
	metrics.ObserveWizardTransition(string(st.Step), string(next.Step))
	if next.ErrorCode != model.WizardErrNone && next.ErrorCode != st.ErrorCode {
		metrics.IncWizardError(string(next.ErrorCode))
	}
	return &next, err
}

// failPayment ends the in-flight attempt with code and returns cause.
func (u *afaWizardUC) failPayment(st *model.WizardState, code model.WizardErrorCode, cause error) (*model.WizardState, error) {
	next, err := u.apply(st, model.PaymentFailed{Code: code})
	if err != nil {
		return st, err
	}
	return next, cause
}

// recordOutcome stores the final status of an AFA payment. A payment the
// reconciler settled while the widget was open is corrected to status, except
// that a succeeded payment is never downgraded.
func (u *afaWizardUC) recordOutcome(ctx context.Context, lg *zerolog.Logger, p *model.Payment, status model.PaymentStatus, txRef string, paidAt time.Time) {
	changed, err := u.payments.UpdateStatusIfPending(ctx, nil, p.ID, status, &txRef, &paidAt)
	if err != nil {
		lg.Error().Err(err).Str("status", string(status)).Msg("update payment status")
		return
	}
	prev := model.PaymentStatusPending
	if !changed {
		latest, err := u.payments.FindByID(ctx, nil, p.ID)
		if err != nil {
			lg.Error().Err(err).Msg("reload settled payment")
			return
		}
		prev = latest.Status
		if prev == status || prev == model.PaymentStatusSucceeded {
			return
		}
		lg.Warn().Str("previous", string(prev)).Str("status", string(status)).Msg("payment settled before callback; correcting status")
		if err := u.payments.UpdateStatus(ctx, nil, p.ID, status); err != nil {
			lg.Error().Err(err).Str("status", string(status)).Msg("correct payment status")
			return
		}
	}
	metrics.IncPayment(string(p.Kind), string(status))
	// The reconciler already counted the revenue of a paid_unregistered payment.
	if prev != model.PaymentStatusPaidUnregistered {
		metrics.AddPaymentRevenue(string(p.Kind), p.Currency, p.AmountMinor)
	}
}

// resumeAttempt rebuilds the in-flight attempt for p when the session's wizard
// expired or was reset while the widget was open.
func resumeAttempt(st *model.WizardState, sessionID string, p *model.Payment) (*model.WizardState, bool) {
	if p.Kind != model.PaymentKindAFARegistration || p.SessionID != sessionID || p.Phone == "" {
		return nil, false
	}
	switch p.Status {
	case model.PaymentStatusPending, model.PaymentStatusAbandoned, model.PaymentStatusPaidUnregistered:
	default:
		return nil, false
	}
	if st.Busy || (st.Step != model.StepEnterNumber && st.Step != model.StepRegistrationForm) {
		return nil, false
	}
	name := ""
	for _, f := range p.Metadata.CustomFields {
		if f.VariableName == "afa_name" {
			name = f.Value
		}
	}
	return &model.WizardState{
		SessionID:        sessionID,
		Step:             model.StepRegistrationForm,
		PhoneNumber:      model.NormalizePhone(p.Phone),
		DisplayName:      name,
		Busy:             true,
		PaymentReference: p.Reference,
		UpdatedAt:        st.UpdatedAt,
	}, true
}

func (u *afaWizardUC) render(st *model.WizardState) {
	switch {
	case st.ErrorCode == model.WizardErrNone:
		st.ErrorMessage = ""
	case st.ErrorCode == model.WizardErrPostPaymentRegister && st.PaymentReference != "":
		st.ErrorMessage = u.msgs.T("post_payment_registration_failed_ref", st.PaymentReference)
	default:
		st.ErrorMessage = u.msgs.T(string(st.ErrorCode))
	}
}

// load returns the session's wizard. dirty reports a state that is not yet
// stored as returned: a new wizard or a recovered stale status check.
func (u *afaWizardUC) load(ctx context.Context, sessionID string) (st *model.WizardState, dirty bool, err error) {
	st, err = u.states.GetState(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		st = model.NewWizardState(sessionID)
		st.UpdatedAt = time.Time{}
		return st, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load wizard: %w", err)
	}
	// A status check that never completed (crashed process) must not wedge the wizard.
	if st.Step == model.StepEnterNumber && st.Busy && u.now().Sub(st.UpdatedAt) > u.cfg.StaleBusyAfter {
		if next, err := st.Apply(model.StatusCheckFailed{Code: model.WizardErrInternal}); err == nil {
			u.render(&next)
			return &next, true, nil
		}
	}
	return st, false, nil
}

// codeFor maps a registration client error to the message shown to the user.
func codeFor(err error) model.WizardErrorCode {
	switch {
	case errors.Is(err, domain.ErrNetwork):
		return model.WizardErrNetwork
	case errors.Is(err, domain.ErrService):
		return model.WizardErrService
	default:
		return model.WizardErrInternal
	}
}

// verified reports whether the provider confirms p in full.
func verified(v adapter.Verification, p *model.Payment) bool {
	if !v.Paid {
		return false
	}
	if v.AmountMinor != 0 && v.AmountMinor != p.AmountMinor {
		return false
	}
	if v.Currency != "" && v.Currency != p.Currency {
		return false
	}
	return true
}
