package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"giggen/internal/booking"
)

var (
	// BookingTransitions counts applied operations by action and status pair.
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "transitions_total",
			Help:      "The total number of applied booking operations",
		},
		[]string{"action", "from", "to"},
	)

	// BookingFailures counts rejected or failed operations by error kind.
	BookingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "failures_total",
			Help:      "The total number of booking operations that returned an error",
		},
		[]string{"action", "reason"},
	)

	HTTPRequestDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "http",
			Name:       "request_duration_seconds",
			Help:       "The time spent serving HTTP requests",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"method", "route", "status"},
	)
)

// Observer feeds booking manager outcomes into the counters above.
type Observer struct{}

func (Observer) Applied(action booking.Action, from, to booking.Status) {
	BookingTransitions.With(prometheus.Labels{
		"action": action.Key(),
		"from":   statusLabel(from),
		"to":     statusLabel(to),
	}).Inc()
}

func (Observer) Failed(action booking.Action, err error) {
	BookingFailures.With(prometheus.Labels{
		"action": action.Key(),
		"reason": Reason(err),
	}).Inc()
}

// Reason maps an error to a low-cardinality label.
func Reason(err error) string {
	switch {
	case errors.Is(err, booking.ErrInvalidParty):
		return "invalid_party"
	case errors.Is(err, booking.ErrReceiverNotFound):
		return "receiver_not_found"
	case errors.Is(err, booking.ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, booking.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, booking.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, booking.ErrBookingNotFound):
		return "not_found"
	case errors.Is(err, booking.ErrInvalidTerms):
		return "invalid_terms"
	default:
		return "persistence"
	}
}

func statusLabel(s booking.Status) string {
	if s == "" {
		return "none"
	}
	return string(s)
}

// Middleware records request durations labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestDuration.With(prometheus.Labels{
			"method": r.Method,
			"route":  route,
			"status": strconv.Itoa(status),
		}).Observe(time.Since(start).Seconds())
	})
}
