/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Auth:       JWT bearer auth on /api (health excluded)

ROUTE GROUPS:
  /api/employees/*      Requests, history, balances
  /api/requests/*       Approval queue and decisions
  /api/admin/*          Allocation resets, dev seeding
  /api/payroll/*        Pay-period deduction reads

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: JWT principal middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(newAuthMiddleware(jwtSecret))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Post("/{id}/requests", h.SubmitRequest)
			r.Get("/{id}/requests", h.ListEmployeeRequests)
			r.Get("/{id}/balance", h.GetBalance)
		})

		// Request approval routes
		r.Route("/requests", func(r chi.Router) {
			r.Get("/pending", h.ListPendingRequests)
			r.Post("/{id}/approve", h.ApproveRequest)
			r.Post("/{id}/reject", h.RejectRequest)
			r.Post("/{id}/cancel", h.CancelRequest)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Put("/allocations", h.ResetAllocation)
			r.Post("/seed", h.Seed)
		})

		// Payroll routes
		r.Route("/payroll", func(r chi.Router) {
			r.Get("/deductions", h.Deductions)
		})
	})

	return r
}
