package web

// errors.go provides unified error response handling for the web layer.
//
// All errors are logged with full technical detail server-side and returned
// to clients as user-friendly messages with action suggestions, mapped via
// core.MapError. HTTP status codes come from the core error taxonomy.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/tabcheck/tabcheck/internal/core"
)

// ErrorResponse is the JSON structure for API error responses. It carries
// both machine-readable (Code) and human-readable (Error, Action) fields.
type ErrorResponse struct {
	Error  string `json:"error"`
	Action string `json:"action,omitempty"`
	Code   string `json:"code"`
}

// respondError logs the technical error and writes the mapped user message
// with a status derived from the error's kind.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSON(w, status, ErrorResponse{
		Error:  userMsg.Message,
		Action: userMsg.Action,
		Code:   userMsg.Code,
	})
}

// respondBadRequest is for malformed requests that never reach the service.
func (s *Server) respondBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	slog.Warn("bad request",
		"path", r.URL.Path,
		"method", r.Method,
		"error", message,
		"request_id", middleware.GetReqID(r.Context()),
	)
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Code: "REQ400"})
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrRunInFlight),
		errors.Is(err, core.ErrRunNotTerminal),
		errors.Is(err, core.ErrRunSuperseded):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrInvalidRuleConfiguration),
		errors.Is(err, core.ErrUnreadableFile),
		errors.Is(err, core.ErrUnknownVerdict):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON with the given status. Encoding errors are
// logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
