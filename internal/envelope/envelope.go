// Package envelope writes the JSON response shape shared by every endpoint:
// {"success": bool, "data": ..., "error": {"code": ..., "message": ...}}.
package envelope

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes returned to clients.
const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeInvalidBarcode  = "INVALID_BARCODE"
	CodeInvalidOverride = "INVALID_OVERRIDE"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL"
)

// Response is the envelope itself.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   *Error `json:"error"`
}

// Error is the error member of a failed response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// OK writes a successful response carrying data.
func OK(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{Success: true, Data: data})
}

// Fail writes a failed response.
func Fail(w http.ResponseWriter, status int, code, message string) {
	write(w, status, Response{Error: &Error{Code: code, Message: message}})
}

func write(w http.ResponseWriter, status int, v Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
