/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:        Request logging
  2. Recoverer:     Panic recovery (500 instead of crash)
  3. RequestID:     Unique ID per request for tracing
  4. CORS:          Cross-origin requests for the frontend
  5. Authenticator: Bearer token on everything except inventory browse

ROUTE GROUPS:
  /api/flights|hotels|entertainments|tours   Public browse
  /api/bookings/*                            Booking lifecycle
  /api/packages/*                            Custom package drafts
  /api/payments/*                            Settlement
  /api/refunds/*                             Refund lifecycle
  /api/admin/*                               Inventory management, overrides

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go:     Token validation and role gating
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, jwtSecret string, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public inventory browse
		r.Get("/flights", h.ListFlights)
		r.Get("/hotels", h.ListHotels)
		r.Get("/entertainments", h.ListEntertainments)
		r.Get("/tours", h.ListTours)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(Authenticator(jwtSecret))

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", h.CreateBooking)
				r.Get("/", h.ListBookings)
				r.Get("/{id}", h.GetBooking)
				r.Delete("/{id}", h.CancelBooking)
				r.With(RequireAdmin).Patch("/{id}/status", h.TransitionBooking)
			})

			r.Route("/packages", func(r chi.Router) {
				r.Post("/", h.CreatePackage)
				r.Get("/", h.ListPackages)
				r.Put("/{id}", h.UpdatePackage)
				r.Delete("/{id}", h.DeletePackage)
				r.Post("/{id}/book", h.BookPackage)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/plans/{bookingID}", h.CreatePlan)
				r.Get("/plans/{bookingID}", h.GetPlan)
				r.Post("/installments/{id}/pay", h.PayInstallment)
				r.Post("/installments/{id}/confirm", h.ConfirmInstallment)
				r.Post("/full/{bookingID}", h.InitiateFullPayment)
				r.Post("/full/{bookingID}/confirm", h.ConfirmFullPayment)
			})

			r.Route("/refunds", func(r chi.Router) {
				r.Post("/", h.RequestRefund)
				r.With(RequireAdmin).Post("/{bookingID}/resolve", h.ResolveRefund)
				r.With(RequireAdmin).Post("/{bookingID}/process", h.ProcessRefund)
			})

			// Admin inventory management
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Post("/flights", h.CreateFlight)
				r.Post("/hotels", h.CreateHotel)
				r.Post("/entertainments", h.CreateEntertainment)
				r.Post("/tours", h.CreateTourPackage)

				// Demo tooling
				r.Get("/scenarios", h.ListScenarios)
				r.Post("/scenarios/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		})
	})

	return r
}
