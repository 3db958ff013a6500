package apiv1

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"datahub-storefront/internal/domain/model"
)

// authMiddleware provides simple Bearer token authentication for the admin API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminKey == "" {
			s.log.Error().Msg("Admin API key is not configured")
			writeError(w, http.StatusForbidden, "forbidden", "Forbidden", nil)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", nil)
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized: Malformed token", nil)
			return
		}

		if subtle.ConstantTimeCompare([]byte(tokenParts[1]), []byte(s.adminKey)) != 1 {
			writeError(w, http.StatusForbidden, "forbidden", "Forbidden", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type PaymentView struct {
	ID            string              `json:"id"`
	Kind          model.PaymentKind   `json:"kind"`
	Reference     string              `json:"reference"`
	Provider      string              `json:"provider"`
	AmountMinor   int64               `json:"amount"`
	Currency      string              `json:"currency"`
	Phone         string              `json:"phone,omitempty"`
	Status        model.PaymentStatus `json:"status"`
	OrderID       *string             `json:"order_id,omitempty"`
	ProviderTxRef *string             `json:"provider_tx_ref,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
}

func (s *Server) adminListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := model.PaymentStatus(q.Get("status"))
	if status == "" {
		status = model.PaymentStatusPaidUnregistered
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	ps, err := s.payments.ListByStatus(r.Context(), status, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items := make([]PaymentView, 0, len(ps))
	for _, p := range ps {
		items = append(items, PaymentView{
			ID: p.ID, Kind: p.Kind, Reference: p.Reference, Provider: p.Provider,
			AmountMinor: p.AmountMinor, Currency: p.Currency, Phone: p.Phone, Status: p.Status,
			OrderID: p.OrderID, ProviderTxRef: p.ProviderTxRef, CreatedAt: p.CreatedAt, PaidAt: p.PaidAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "status": status})
}
