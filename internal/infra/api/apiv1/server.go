package apiv1

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"datahub-storefront/internal/infra/logging"
	"datahub-storefront/internal/usecase"
)

// Server holds the storefront API handlers.
type Server struct {
	wizard   usecase.AFAWizardUseCase
	cart     usecase.CartUseCase
	checkout usecase.CheckoutUseCase
	payments usecase.PaymentUseCase
	sessions *SessionManager
	msgs     usecase.Messages
	adminKey string
	log      *zerolog.Logger
}

type Deps struct {
	Wizard   usecase.AFAWizardUseCase
	Cart     usecase.CartUseCase
	Checkout usecase.CheckoutUseCase
	Payments usecase.PaymentUseCase
	Sessions *SessionManager
	Messages usecase.Messages
	AdminKey string
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "APIv1").Logger()
	return &Server{
		wizard:   d.Wizard,
		cart:     d.Cart,
		checkout: d.Checkout,
		payments: d.Payments,
		sessions: d.Sessions,
		msgs:     d.Messages,
		adminKey: d.AdminKey,
		log:      &l,
	}
}

// RegisterAPIV1 mounts every /api/v1 route on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", s.listProducts)

		r.Group(func(r chi.Router) {
			r.Use(s.sessions.Middleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.getCart)
				r.Delete("/", s.clearCart)
				r.Post("/items", s.addCartItem)
				r.Patch("/items/{productID}", s.updateCartItem)
				r.Delete("/items/{productID}", s.removeCartItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", s.submitCheckout)
				r.Post("/callback", s.checkoutCallback)
				r.Post("/close", s.checkoutClose)
			})

			r.Route("/afa", func(r chi.Router) {
				r.Get("/", s.afaState)
				r.Post("/number", s.afaSubmitNumber)
				r.Post("/name", s.afaChangeName)
				r.Post("/pay", s.afaPay)
				r.Post("/payment/callback", s.afaPaymentCallback)
				r.Post("/payment/close", s.afaPaymentClose)
				r.Post("/reset", s.afaReset)
				r.Post("/back", s.afaBack)
				r.Get("/continue", s.afaContinue)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/payments", s.adminListPayments)
		})
	})
}

func (s *Server) logger(r *http.Request) *zerolog.Logger {
	return logging.With(r.Context(), s.log)
}

func sessionID(r *http.Request) string { return logging.SessionID(r.Context()) }
