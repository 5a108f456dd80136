package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tally/internal/core"
	applog "tally/internal/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors to HTTP statuses. Unknown errors become 500
// with a generic body so internals never leak to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
		message = err.Error()
	case errors.Is(err, core.ErrInvalidState):
		status = http.StatusConflict
		message = err.Error()
	case errors.Is(err, core.ErrUnknownField), errors.Is(err, core.ErrValidation):
		status = http.StatusUnprocessableEntity
		message = err.Error()
	case errors.Is(err, core.ErrInvalidArgument):
		status = http.StatusBadRequest
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}

	writeJSON(w, status, errorResponse{Error: message})
}
