// Package httpx holds the JSON response helpers shared by the HTTP handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorCode is a client-facing error identifier with its HTTP status.
type ErrorCode struct {
	Name    string
	Status  int
	Message string
}

var (
	ErrBadRequest   = ErrorCode{"BAD_REQUEST", http.StatusBadRequest, "Bad request."}
	ErrValidation   = ErrorCode{"VALIDATION_ERROR", http.StatusBadRequest, "Please check the input values."}
	ErrUnauthorized = ErrorCode{"UNAUTHORIZED", http.StatusUnauthorized, "Authentication required."}
	ErrTokenInvalid = ErrorCode{"TOKEN_INVALID", http.StatusUnauthorized, "The token is not valid."}
	ErrForbidden    = ErrorCode{"FORBIDDEN", http.StatusForbidden, "Access denied."}
	ErrNotFound     = ErrorCode{"NOT_FOUND", http.StatusNotFound, "Resource not found."}
	ErrInternal     = ErrorCode{"INTERNAL_ERROR", http.StatusInternalServerError, "Internal server error."}
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteJSON writes payload as JSON with status. A nil payload writes only the status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError writes code as an ErrorBody. An empty message uses the code's default.
func WriteError(w http.ResponseWriter, code ErrorCode, message string) {
	if message == "" {
		message = code.Message
	}
	WriteJSON(w, code.Status, ErrorBody{Error: code.Name, Message: message})
}

// DecodeJSON decodes the request body into dest, rejecting unknown fields.
func DecodeJSON(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.New("request body required")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
