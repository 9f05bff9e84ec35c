package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/loyer/internal/auth"
	"github.com/MrJamesThe3rd/loyer/internal/http/dashboard"
	"github.com/MrJamesThe3rd/loyer/internal/http/export"
	"github.com/MrJamesThe3rd/loyer/internal/http/lease"
	"github.com/MrJamesThe3rd/loyer/internal/http/payment"
	"github.com/MrJamesThe3rd/loyer/internal/http/reconcile"
	"github.com/MrJamesThe3rd/loyer/internal/http/settings"
)

type Handlers struct {
	Leases    *lease.Handler
	Payments  *payment.Handler
	Settings  *settings.Handler
	Dashboard *dashboard.Handler
	Reconcile *reconcile.Handler
	Export    *export.Handler
}

type Options struct {
	AllowedOrigins []string
	Timeout        time.Duration
}

func New(issuer *auth.Issuer, opts Options, h Handlers) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(issuer.Middleware)

		r.Route("/leases", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Leases.Routes(r)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Payments.Routes(r)
		})

		r.Route("/settings", h.Settings.Routes)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleOwner))

			r.Route("/dashboard", h.Dashboard.Routes)
			r.Route("/reconciliation", h.Reconcile.Routes)

			r.Route("/export", func(r chi.Router) {
				r.Use(middleware.AllowContentType("application/json"))
				h.Export.Routes(r)
			})
		})
	})

	return router
}
