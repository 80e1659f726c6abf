package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON / writeError so success and error
// bodies have one shape across the API:
//
//	{"error": "not_found", "message": "article not found with id abc123"}
//
// The frontend can rely on "error" being a stable machine-readable kind.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sakif/openwiki/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error kind (e.g. "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending input field, for validation errors
}

// writeJSON sends data as JSON with the given status code.
// Headers and status MUST be set before the body is written.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorKind maps a domain error to an HTTP status and error kind.
//
// errors.Is walks the whole chain, so a service error like
// fmt.Errorf("saving article: %w", apperror.PersistenceFailed(...)) still maps.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, apperror.ErrPersistence):
		return http.StatusInternalServerError, "persistence_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError translates err into the standard error payload.
//
// Only AppError.Message reaches the client. Causes (driver errors, dial
// errors, upstream bodies) are logged for 5xx answers and never sent.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, kind := errorKind(err)

	resp := ErrorResponse{Error: kind, Message: "An internal error occurred"}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) && kind != "internal_error" {
		resp.Message = appErr.Message
		resp.Field = appErr.Field
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, status, resp)
}

// maxBodyBytes caps request bodies. A saved article carries at most one
// extract, which Wikipedia already bounds.
const maxBodyBytes = 2 << 20

// decodeJSON reads a JSON request body into dst. A body that is missing, too
// large or not valid JSON is a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return apperror.ValidationFailed("body", "request body is required")
	}
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// NotFound answers unknown routes with the standard error payload.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   "not_found",
		Message: "no route for " + r.Method + " " + r.URL.Path,
	})
}

// MethodNotAllowed answers a known path called with the wrong verb.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Error:   "method_not_allowed",
		Message: r.Method + " is not supported on " + r.URL.Path,
	})
}
