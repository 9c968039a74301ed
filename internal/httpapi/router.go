package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/kitchencloud/checkout-go/internal/middleware"
)

func NewRouter(h *PaymentHandler, m *Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)
	r.Use(middleware.CorrelationID)

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", MetricsHandler())

	r.Route("/api/payment", func(r chi.Router) {
		r.Post("/create-order", m.instrument("create-order", h.CreateOrder))
		r.Post("/verify-payment", m.instrument("verify-payment", h.VerifyPayment))
		r.Post("/claim-intent", m.instrument("claim-intent", h.ClaimIntent))
		r.Get("/orders", m.instrument("orders", h.ListOrders))
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "payment-service",
	})
}
