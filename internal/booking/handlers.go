package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"giggen/internal/api"
)

const maxBodyBytes = 1 << 20

// Handlers exposes the Manager over HTTP.
type Handlers struct {
	Bookings *Manager
	Changes  ChangeSubscriber
	Log      logrus.FieldLogger

	// Heartbeat is the SSE keep-alive interval; zero means 25s.
	Heartbeat time.Duration

	// Draining closes when the server shuts down. Open streams end on it.
	Draining <-chan struct{}
}

type CreateRequest struct {
	ReceiverID string `json:"receiverId"`
	Terms      Terms  `json:"terms"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

type PublishRequest struct {
	MakePublic *bool `json:"makePublic"`
}

type VisibilityRequest struct {
	IsPublic *bool `json:"isPublic"`
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if err := decode(r, &req, true); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	b, err := h.Bookings.CreateBooking(r.Context(), userID, req.ReceiverID, req.Terms)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking": b})
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.Bookings.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) ListPublic(w http.ResponseWriter, r *http.Request) {
	items, err := h.Bookings.ListPublic(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.Bookings.Get(r.Context(), chi.URLParam(r, "id"), api.UserIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": b})
}

func (h Handlers) Events(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	items, err := h.Bookings.History(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) PatchTerms(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var patch TermsPatch
	if err := decode(r, &patch, true); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	b, err := h.Bookings.UpdateTerms(r.Context(), chi.URLParam(r, "id"), userID, patch)
	h.writeBooking(w, r, b, err)
}

func (h Handlers) Allow(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	b, err := h.Bookings.AllowBooking(r.Context(), chi.URLParam(r, "id"), userID)
	h.writeBooking(w, r, b, err)
}

func (h Handlers) Reject(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ReasonRequest
	if err := decode(r, &req, false); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	if err := h.Bookings.RejectBooking(r.Context(), chi.URLParam(r, "id"), userID, req.Reason); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handlers) Approve(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	b, err := h.Bookings.Approve(r.Context(), chi.URLParam(r, "id"), userID)
	h.writeBooking(w, r, b, err)
}

func (h Handlers) Publish(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req PublishRequest
	if err := decode(r, &req, false); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	b, err := h.Bookings.Publish(r.Context(), chi.URLParam(r, "id"), userID, req.MakePublic)
	h.writeBooking(w, r, b, err)
}

func (h Handlers) Visibility(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req VisibilityRequest
	if err := decode(r, &req, true); err != nil || req.IsPublic == nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "isPublic is required")
		return
	}

	b, err := h.Bookings.ToggleVisibility(r.Context(), chi.URLParam(r, "id"), userID, *req.IsPublic)
	h.writeBooking(w, r, b, err)
}

func (h Handlers) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ReasonRequest
	if err := decode(r, &req, false); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	b, err := h.Bookings.Cancel(r.Context(), chi.URLParam(r, "id"), userID, req.Reason)
	h.writeBooking(w, r, b, err)
}

func (h Handlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	b, err := h.Bookings.MarkAgreementRead(r.Context(), chi.URLParam(r, "id"), userID)
	h.writeBooking(w, r, b, err)
}

// Stream sends the caller's booking changes as server-sent events until the
// client goes away. `?bookingId=` narrows the stream to one booking.
func (h Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "streaming unsupported")
		return
	}

	ctx := r.Context()
	changes, err := h.Changes.Subscribe(ctx, ChangeFilter{
		UserID:    userID,
		BookingID: r.URL.Query().Get("bookingId"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.Draining:
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-changes:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger().WithError(err).WithField("booking_id", ev.BookingID).Error("failed to encode change event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h Handlers) writeBooking(w http.ResponseWriter, r *http.Request, b *Booking, err error) {
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"booking": b})
}

func (h Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := ErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.logger().WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("booking request failed")
		api.WriteError(w, status, code, "internal error")
		return
	}
	api.WriteAPIError(w, status, api.APIError{
		Code:      code,
		Message:   err.Error(),
		BookingID: chi.URLParam(r, "id"),
	})
}

func (h Handlers) logger() logrus.FieldLogger {
	if h.Log == nil {
		return logrus.StandardLogger()
	}
	return h.Log
}

// ErrorStatus maps a Manager error to its HTTP status and error code.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidParty):
		return http.StatusBadRequest, "INVALID_PARTY"
	case errors.Is(err, ErrInvalidTerms):
		return http.StatusBadRequest, "INVALID_TERMS"
	case errors.Is(err, ErrReceiverNotFound):
		return http.StatusNotFound, "RECEIVER_NOT_FOUND"
	case errors.Is(err, ErrBookingNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden, "NOT_AUTHORIZED"
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, "INVALID_STATE_TRANSITION"
	case errors.Is(err, ErrConcurrentModification):
		return http.StatusConflict, "CONCURRENT_MODIFICATION"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := api.UserIDFromContext(r.Context())
	if userID == "" {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing user identity")
		return "", false
	}
	return userID, true
}

// decode reads a JSON body. An empty body is accepted unless required.
func decode(r *http.Request, v any, required bool) error {
	if r.Body == nil {
		if required {
			return io.EOF
		}
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) && !required {
			return nil
		}
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
