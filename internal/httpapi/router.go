package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"giggen/internal/api"
	"giggen/internal/booking"
	"giggen/internal/metrics"
	"giggen/internal/notify"
	"giggen/pkg/config"
)

type Dependencies struct {
	Cfg      config.Config
	Log      logrus.FieldLogger
	Bookings *booking.Manager
	Changes  booking.ChangeSubscriber

	// Notifications is nil when running without a database.
	Notifications *notify.Repository

	// Draining ends open change streams when closed.
	Draining <-chan struct{}
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	allowedHeaders := []string{"Content-Type", "Authorization"}
	if !deps.Cfg.IsProd() {
		// dev identity fallback, see api.SupabaseAuth
		allowedHeaders = append(allowedHeaders, "X-User-Id")
	}
	r.Use(api.CORSMiddleware(api.CORSOptions{
		AllowedOrigins: deps.Cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: allowedHeaders,
		MaxAgeSeconds:  600,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	bookingHandlers := booking.Handlers{
		Bookings: deps.Bookings,
		Changes:  deps.Changes,
		Log:      deps.Log,
		Draining: deps.Draining,
	}

	// v1
	r.Route("/v1", func(r chi.Router) {
		r.Route("/bookings", func(r chi.Router) {
			// Discovery and public bookings need no session.
			r.Get("/public", bookingHandlers.ListPublic)
			r.With(api.SupabaseAuth(deps.Cfg, false)).Get("/{id}", bookingHandlers.Get)

			r.Group(func(r chi.Router) {
				r.Use(api.SupabaseAuth(deps.Cfg, true))

				r.Post("/", bookingHandlers.Create)
				r.Get("/", bookingHandlers.List)
				r.Get("/stream", bookingHandlers.Stream)
				r.Get("/{id}/events", bookingHandlers.Events)
				r.Patch("/{id}/terms", bookingHandlers.PatchTerms)

				r.Post("/{id}/allow", bookingHandlers.Allow)
				r.Post("/{id}/reject", bookingHandlers.Reject)
				r.Post("/{id}/approve", bookingHandlers.Approve)
				r.Post("/{id}/publish", bookingHandlers.Publish)
				r.Post("/{id}/visibility", bookingHandlers.Visibility)
				r.Post("/{id}/cancel", bookingHandlers.Cancel)
				r.Post("/{id}/read", bookingHandlers.MarkRead)
			})
		})

		if deps.Notifications != nil {
			notifyHandlers := notify.Handlers{Repo: deps.Notifications}
			r.Group(func(r chi.Router) {
				r.Use(api.SupabaseAuth(deps.Cfg, true))
				r.Get("/notifications", notifyHandlers.List)
				r.Post("/notifications/{id}/read", notifyHandlers.MarkRead)
			})
		}
	})

	return r
}
