package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"datahub-storefront/internal/domain/model"
)

type CartView struct {
	Items    []CartLine `json:"items"`
	Count    int        `json:"count"`
	Total    int64      `json:"total"`
	Currency string     `json:"currency"`
}

type CartLine struct {
	model.CartItem
	LineTotal int64 `json:"line_total"`
}

func newCartView(c *model.Cart) CartView {
	lines := c.Lines()
	v := CartView{Items: make([]CartLine, 0, len(lines)), Count: c.Count(), Total: c.Total(), Currency: c.Currency}
	for _, it := range lines {
		v.Items = append(v.Items, CartLine{CartItem: it, LineTotal: it.LineTotal()})
	}
	return v
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.cart.Products(r.Context())})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.cart.Get(r.Context(), sessionID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(c))
}

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

func (req cartItemRequest) qty() int {
	if req.Quantity == nil {
		return 1
	}
	return *req.Quantity
}

func (s *Server) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.cart.AddItem(r.Context(), sessionID(r), req.ProductID, req.qty())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(c))
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", s.msgs.T("invalid_quantity"), nil)
		return
	}
	c, err := s.cart.UpdateQuantity(r.Context(), sessionID(r), chi.URLParam(r, "productID"), *req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(c))
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	c, err := s.cart.RemoveItem(r.Context(), sessionID(r), chi.URLParam(r, "productID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCartView(c))
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.cart.Clear(r.Context(), sessionID(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
