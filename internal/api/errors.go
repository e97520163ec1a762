package api

import (
	"encoding/json"
	"net/http"
)

// ErrorEnvelope is the body of every non-2xx response.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// BookingID is set when the request addressed a single booking.
	BookingID string `json:"bookingId,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteAPIError(w, status, APIError{Code: code, Message: message})
}

func WriteAPIError(w http.ResponseWriter, status int, e APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorEnvelope{Error: e})
}
