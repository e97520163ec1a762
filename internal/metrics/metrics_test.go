package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"giggen/internal/booking"
)

func TestObserver_Applied(t *testing.T) {
	c := BookingTransitions.WithLabelValues("approve", "allowed", "approved_by_sender")
	before := testutil.ToFloat64(c)

	Observer{}.Applied(booking.ActionApprove, booking.StatusAllowed, booking.StatusApprovedBySender)

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestObserver_AppliedDeleteUsesNone(t *testing.T) {
	c := BookingTransitions.WithLabelValues("reject", "pending", "none")
	before := testutil.ToFloat64(c)

	Observer{}.Applied(booking.ActionReject, booking.StatusPending, "")

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestObserver_Failed(t *testing.T) {
	c := BookingFailures.WithLabelValues("set_visibility", "invalid_transition")
	before := testutil.ToFloat64(c)

	err := fmt.Errorf("%w: cannot change visibility of a booking that is pending", booking.ErrInvalidTransition)
	Observer{}.Failed(booking.ActionSetVisibility, err)

	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "concurrent_modification", Reason(booking.ErrConcurrentModification))
	assert.Equal(t, "not_found", Reason(booking.ErrBookingNotFound))
	assert.Equal(t, "persistence", Reason(&booking.PersistenceError{Op: "update booking", Err: fmt.Errorf("conn reset")}))
}

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/bookings/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/bookings/abc", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	// one series for this route/status pair
	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), 1)
	s, ok := HTTPRequestDuration.WithLabelValues("GET", "/v1/bookings/{id}", "418").(prometheus.Summary)
	if assert.True(t, ok) {
		assert.Equal(t, 1, testutil.CollectAndCount(s))
	}
}
