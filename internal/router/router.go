// Package router sets up all HTTP routes and middleware chains for the
// themedesk API. Operational endpoints are public; everything under /api
// requires the operator.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"themedesk/internal/handlers"
	"themedesk/internal/middleware"
)

// Options configures the router.
type Options struct {
	// CORSOrigins lists allowed browser origins. Empty disables CORS.
	CORSOrigins []string
	// DraftLimit and DraftWindow bound model calls per operator.
	DraftLimit  int
	DraftWindow time.Duration
}

// New creates the configured chi router. The returned stop function
// terminates the rate limiter's cleanup goroutine.
func New(api *handlers.API, auth *middleware.OperatorAuth, opts Options) (chi.Router, func()) {
	if opts.DraftLimit <= 0 {
		opts.DraftLimit = 20
	}
	if opts.DraftWindow <= 0 {
		opts.DraftWindow = time.Minute
	}
	drafts := middleware.NewRateLimiter(opts.DraftLimit, opts.DraftWindow)

	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.OTPHeader, middleware.RequestIDHeader},
			ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Get("/overview", api.Overview)
		r.Get("/operator/totp.png", handlers.TOTPQRCode(auth))

		r.Route("/segments/{segment}", func(r chi.Router) {
			r.Get("/themes", api.PendingThemes)
			r.Post("/select", api.Select)
			r.Post("/skip", api.Skip)
			r.Post("/reset", api.Reset)
		})

		r.Route("/themes", func(r chi.Router) {
			r.Post("/", api.CreateTheme)
			r.Get("/{id}", api.GetTheme)
			r.Put("/{id}/draft", api.SaveDraft)
			r.Post("/{id}/submit", api.Submit)
			r.Post("/{id}/approve", api.Approve)
			r.Post("/{id}/unapprove", api.Unapprove)
			r.Post("/{id}/push", api.Push)

			// Each of these costs a model call.
			r.Group(func(r chi.Router) {
				r.Use(drafts.Middleware)
				r.Post("/{id}/draft", api.GenerateDraft)
				r.Post("/{id}/draft/regenerate", api.RegenerateDraft)
			})
		})
	})

	return r, drafts.Stop
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
