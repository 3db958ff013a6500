package apiv1

import (
	"errors"
	"net/http"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
)

// WizardView is the wizard as the browser renders it.
type WizardView struct {
	Step             model.WizardStep      `json:"step"`
	PhoneNumber      string                `json:"phoneNumber"`
	DisplayName      string                `json:"displayName"`
	ErrorCode        model.WizardErrorCode `json:"errorCode,omitempty"`
	ErrorMessage     string                `json:"errorMessage,omitempty"`
	Busy             bool                  `json:"busy"`
	PaymentReference string                `json:"paymentReference,omitempty"`
	CanSubmitNumber  bool                  `json:"canSubmitNumber"`
	CanPay           bool                  `json:"canPay"`
}

type wizardResponse struct {
	State   *WizardView         `json:"state"`
	Payment *model.PaymentSetup `json:"payment,omitempty"`
	Error   *Error              `json:"error,omitempty"`
}

func newWizardView(st *model.WizardState) *WizardView {
	if st == nil {
		return nil
	}
	return &WizardView{
		Step:             st.Step,
		PhoneNumber:      st.PhoneNumber.String(),
		DisplayName:      st.DisplayName,
		ErrorCode:        st.ErrorCode,
		ErrorMessage:     st.ErrorMessage,
		Busy:             st.Busy,
		PaymentReference: st.PaymentReference,
		CanSubmitNumber:  st.CanSubmitNumber(),
		CanPay:           st.CanPay(),
	}
}

// shownInState are failures the wizard state already explains; the request itself succeeded.
var shownInState = []error{
	domain.ErrNetwork,
	domain.ErrService,
	domain.ErrPostPaymentRegistration,
	domain.ErrPaymentNotVerified,
}

func (s *Server) respondWizard(w http.ResponseWriter, r *http.Request, st *model.WizardState, setup *model.PaymentSetup, err error) {
	resp := wizardResponse{State: newWizardView(st), Payment: setup}
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}
	status, code := classify(err)
	if st != nil {
		for _, soft := range shownInState {
			if errors.Is(err, soft) {
				status = http.StatusOK
				break
			}
		}
	}
	e := s.apiError(r, err, code, status)
	if st != nil && st.ErrorMessage != "" {
		e.Message = st.ErrorMessage
	}
	resp.Error = &e
	writeJSON(w, status, resp)
}

func (s *Server) afaState(w http.ResponseWriter, r *http.Request) {
	st, err := s.wizard.State(r.Context(), sessionID(r))
	s.respondWizard(w, r, st, nil, err)
}

type afaNumberRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
}

func (s *Server) afaSubmitNumber(w http.ResponseWriter, r *http.Request) {
	var req afaNumberRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.wizard.SubmitNumber(r.Context(), sessionID(r), req.Phone, req.Name)
	s.respondWizard(w, r, st, nil, err)
}

func (s *Server) afaChangeName(w http.ResponseWriter, r *http.Request) {
	var req afaNumberRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.wizard.ChangeName(r.Context(), sessionID(r), req.Name)
	s.respondWizard(w, r, st, nil, err)
}

func (s *Server) afaPay(w http.ResponseWriter, r *http.Request) {
	st, setup, err := s.wizard.BeginPayment(r.Context(), sessionID(r))
	s.respondWizard(w, r, st, setup, err)
}

type paymentCallbackRequest struct {
	Reference string `json:"reference"`
	Trans     string `json:"trans"`
}

func (s *Server) afaPaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req paymentCallbackRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Reference == "" {
		s.fail(w, r, domain.ErrInvalidArgument)
		return
	}
	st, err := s.wizard.CompletePayment(r.Context(), sessionID(r), req.Reference, req.Trans)
	s.respondWizard(w, r, st, nil, err)
}

func (s *Server) afaPaymentClose(w http.ResponseWriter, r *http.Request) {
	st, err := s.wizard.ClosePayment(r.Context(), sessionID(r))
	s.respondWizard(w, r, st, nil, err)
}

func (s *Server) afaReset(w http.ResponseWriter, r *http.Request) {
	st, err := s.wizard.CheckAnother(r.Context(), sessionID(r))
	s.respondWizard(w, r, st, nil, err)
}

func (s *Server) afaBack(w http.ResponseWriter, r *http.Request) {
	st, err := s.wizard.UseAnotherNumber(r.Context(), sessionID(r))
	s.respondWizard(w, r, st, nil, err)
}

func (s *Server) afaContinue(w http.ResponseWriter, r *http.Request) {
	route, err := s.wizard.Continue(r.Context(), sessionID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	http.Redirect(w, r, route, http.StatusSeeOther)
}
