package apiv1

import (
	"net/http"

	"datahub-storefront/internal/domain"
	"datahub-storefront/internal/domain/model"
)

type checkoutResponse struct {
	OrderID string              `json:"orderId"`
	Total   int64               `json:"total"`
	Payment *model.PaymentSetup `json:"payment"`
}

func (s *Server) submitCheckout(w http.ResponseWriter, r *http.Request) {
	var form model.CheckoutForm
	if err := decode(r, &form); err != nil {
		s.fail(w, r, err)
		return
	}
	order, setup, err := s.checkout.Submit(r.Context(), sessionID(r), form)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, checkoutResponse{OrderID: order.ID, Total: order.TotalMinor, Payment: setup})
}

func (s *Server) checkoutCallback(w http.ResponseWriter, r *http.Request) {
	var req paymentCallbackRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Reference == "" {
		s.fail(w, r, domain.ErrInvalidArgument)
		return
	}
	redirect, err := s.checkout.Complete(r.Context(), sessionID(r), req.Reference)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirect": redirect, "message": s.msgs.T("checkout_success")})
}

func (s *Server) checkoutClose(w http.ResponseWriter, r *http.Request) {
	var req paymentCallbackRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.checkout.Close(r.Context(), sessionID(r), req.Reference); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
