/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestLogging: zap log line per request, X-Request-ID header
  2. Recoverer:      Panic recovery (500 instead of crash)
  3. CORS:           Cross-origin requests for the entry frontend
  4. RequireActor:   X-Actor-ID mandatory on POST/PUT/DELETE

ROUTE GROUPS:
  /api/accounts/*     Accounts, balances, summaries, analytics
  /api/locations/*    Locations
  /api/categories/*   Categories
  /api/movements/*    Movement entry, edit, search, batch, audit
  /api/favorites/*    Description autocomplete
  /api/seed           Default catalog
  /healthz            Liveness and store ping

SECURITY NOTE:
  Authentication happens upstream. This service trusts X-Actor-ID as the
  identity of whoever is making the change and records it, nothing more.

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
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(RequestLogging(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireActor)

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
			r.Get("/balances", h.ListBalances)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetAccount)
				r.Put("/", h.UpdateAccount)
				r.Post("/deactivate", h.DeactivateAccount)
				r.Post("/reactivate", h.ReactivateAccount)
				r.Get("/balance", h.GetBalance)
				r.Get("/history", h.GetHistory)
				r.Get("/summary", h.GetSummary)
				r.Get("/summary/monthly", h.GetMonthlySummary)
				r.Get("/summary/locations", h.GetLocationSummary)
				r.Get("/projection", h.GetProjection)
				r.Get("/anomalies", h.GetAnomalies)
				r.Post("/reconcile", h.Reconcile)
			})
		})

		// Location routes
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", h.ListLocations)
			r.Post("/", h.CreateLocation)
			r.Get("/{id}", h.GetLocation)
			r.Post("/{id}/deactivate", h.DeactivateLocation)
			r.Post("/{id}/reactivate", h.ReactivateLocation)
		})

		// Category routes
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
			r.Get("/{id}", h.GetCategory)
			r.Post("/{id}/deactivate", h.DeactivateCategory)
			r.Post("/{id}/reactivate", h.ReactivateCategory)
		})

		// Movement routes
		r.Route("/movements", func(r chi.Router) {
			r.Get("/", h.ListMovements)
			r.Post("/", h.CreateMovement)
			r.Post("/batch", h.CommitBatch)
			r.Get("/count", h.CountMovements)
			r.Get("/{id}", h.GetMovement)
			r.Put("/{id}", h.UpdateMovement)
			r.Delete("/{id}", h.DeleteMovement)
			r.Get("/{id}/audit", h.GetAuditTrail)
		})

		// Favorite description routes
		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", h.ListFavorites)
			r.Post("/rebuild", h.RebuildFavorites)
		})

		r.Post("/seed", h.Seed)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", nil)
	})

	return r
}
