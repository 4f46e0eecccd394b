package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"storyforge/repository"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes data with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	})
}

// statusFor maps repository errors onto HTTP statuses. Storage failures are never
// described to the client.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFoundOrAccessDenied):
		return http.StatusNotFound, repository.ErrNotFoundOrAccessDenied.Error()
	case errors.Is(err, repository.ErrInvalidIdentifier):
		return http.StatusBadRequest, "invalid id"
	case errors.Is(err, repository.ErrMissingOwnerContext),
		errors.Is(err, repository.ErrInvalidCollection):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

// writeRepoError replies with the status for err and logs anything unexpected.
func writeRepoError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	}
	writeError(w, status, message)
}
