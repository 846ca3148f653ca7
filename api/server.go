/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for internal dashboards

ROUTE GROUPS:
  /api/events/*          Posting engine (upstream business events)
  /api/reconciliation/*  Reconciliation engine
  /api/reports/*         Reporting engine
  /api/cashbooks/*       Cashbook reads
  /api/entries/*         Entry reads

SECURITY NOTE:
  No authentication middleware currently. Upstream services reach this
  engine over the internal network only.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Posting: upstream business events
		r.Route("/events", func(r chi.Router) {
			r.Post("/sale", h.PostSale)
			r.Post("/purchase", h.PostPurchase)
			r.Post("/inventory", h.PostInventory)
			r.Post("/cash-receipt", h.PostCashReceipt)
			r.Post("/cash-payment", h.PostCashPayment)
			r.Post("/expense", h.PostExpense)
		})

		// Reconciliation
		r.Route("/reconciliation", func(r chi.Router) {
			r.Post("/auto", h.AutoReconcile)
			r.Post("/pair", h.ReconcilePair)
			r.Post("/unreconcile", h.Unreconcile)
		})

		// Reports
		r.Route("/reports", func(r chi.Router) {
			r.Get("/profit-loss", h.ProfitLoss)
			r.Get("/cash-position", h.CashPosition)
			r.Get("/month-over-month", h.MonthOverMonth)
		})

		// Reads
		r.Get("/cashbooks/{name}/entries", h.GetCashbookEntries)
		r.Get("/entries/{id}", h.GetEntry)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
