package apiv1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"datahub-storefront/internal/domain"
)

const maxBodyBytes = 64 << 10

// Error is the error part of every JSON envelope.
type Error struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type errorKind struct {
	err    error
	status int
	code   string
}

// Order matters: the first match wins.
var errorKinds = []errorKind{
	{domain.ErrInvalidPhone, http.StatusUnprocessableEntity, "invalid_phone"},
	{domain.ErrInvalidQuantity, http.StatusUnprocessableEntity, "invalid_quantity"},
	{domain.ErrCartEmpty, http.StatusUnprocessableEntity, "cart_empty"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrBusy, http.StatusConflict, "busy"},
	{domain.ErrPaymentReferenceMismatch, http.StatusConflict, "reference_mismatch"},
	{domain.ErrPaymentNotReady, http.StatusConflict, "payment_not_ready"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{domain.ErrPaymentConfig, http.StatusServiceUnavailable, "payment_config_missing"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{domain.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{domain.ErrItemNotInCart, http.StatusNotFound, "item_not_in_cart"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrPostPaymentRegistration, http.StatusBadGateway, "post_payment_registration_failed"},
	{domain.ErrPaymentNotVerified, http.StatusPaymentRequired, "payment_not_verified"},
	{domain.ErrNetwork, http.StatusBadGateway, "network_error"},
	{domain.ErrService, http.StatusBadGateway, "service_error"},
	{domain.ErrInvalidArgument, http.StatusBadRequest, "invalid_request"},
}

// classify maps err to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusUnprocessableEntity, "validation_failed"
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string, fields map[string]string) {
	writeJSON(w, status, struct {
		Error Error `json:"error"`
	}{Error{Code: code, Message: msg, Fields: fields}})
}

// fail writes err with its mapped status. Internal errors are logged, never echoed.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	writeJSON(w, status, struct {
		Error Error `json:"error"`
	}{s.apiError(r, err, code, status)})
}

func (s *Server) apiError(r *http.Request, err error, code string, status int) Error {
	e := Error{Code: code, Message: s.msgs.T(code)}
	var verrs domain.ValidationErrors
	if errors.As(err, &verrs) {
		e.Fields = verrs
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		s.logger(r).Error().Err(err).Str("code", code).Msg("request failed")
	}
	return e
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}
