package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/lostfound/internal/service"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// jsonMessage writes a 200 response carrying a message and optional data keys.
func jsonMessage(w http.ResponseWriter, message string, kv ...any) {
	body := map[string]any{"message": message}
	for i := 0; i+1 < len(kv); i += 2 {
		body[kv[i].(string)] = kv[i+1]
	}
	jsonResponse(w, http.StatusOK, body)
}

// internalError logs err and writes a generic 500.
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "error", err, "method", r.Method, "path", r.URL.Path)
	jsonError(w, http.StatusInternalServerError, "Internal server error")
}

// serviceError maps a service error onto a status code. notFound is the
// message used for service.ErrNotFound.
func serviceError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, service.ErrNotFound):
		jsonError(w, http.StatusNotFound, notFound)
	case errors.Is(err, service.ErrUsernameTaken):
		jsonError(w, http.StatusConflict, "Username already exists")
	case errors.Is(err, service.ErrEmailTaken):
		jsonError(w, http.StatusConflict, "Email already registered")
	case errors.Is(err, service.ErrClaimNotPending):
		jsonError(w, http.StatusConflict, "Claim is no longer pending")
	case errors.Is(err, service.ErrForbidden):
		jsonError(w, http.StatusForbidden, "Access denied")
	default:
		internalError(w, r, "request failed", err)
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
