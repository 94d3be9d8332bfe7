package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rpggio/phasetrack/internal/auth"
	"github.com/rpggio/phasetrack/internal/domain/validation"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string                  `json:"error"`
	Details []validation.FieldError `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details []validation.FieldError) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

// failure describes how one handler reports errors.
type failure struct {
	// internal is returned with 500; the cause is only logged.
	internal string
	// notFound is returned with 404 for errors matching notFoundErr.
	notFound    string
	notFoundErr error
}

// respondError maps service errors to status codes. Validation errors keep
// their message and field details.
func respondError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error, f failure) {
	switch {
	case errors.Is(err, validation.ErrInvalid):
		writeError(w, http.StatusBadRequest, validation.Message(err), validation.Details(err))
	case errors.Is(err, auth.ErrUnauthenticated), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
	case f.notFoundErr != nil && errors.Is(err, f.notFoundErr):
		writeError(w, http.StatusNotFound, f.notFound, nil)
	default:
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, f.internal, nil)
	}
}
