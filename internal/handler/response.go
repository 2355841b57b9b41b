package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// WriteJSON serialises data as the response body with the given status.
// The Content-Type header has to go out before WriteHeader.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the error envelope every endpoint returns: a stable
// machine-readable code plus a message for the app to show.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes the error envelope with the given status code.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON strictly decodes the request body into v. The Content-Type
// must be application/json, and unknown fields are rejected so a typoed
// field in a bid or counter-offer fails loudly instead of being
// silently dropped.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// timeFormat is the wire layout for timestamps: UTC, second precision.
const timeFormat = "2006-01-02T15:04:05Z"
