package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"uptrack/internal/service"
)

const maxBodyBytes = 1 << 20

var errBadPayload = errors.New("invalid request payload")

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into dst. An empty body leaves dst untouched
// when allowEmpty is set.
func decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	var ve *service.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	case errors.As(err, &ve):
		return ve
	default:
		return errBadPayload
	}
}

// writeError maps service errors onto status codes. Unknown errors are
// logged with the request id and answered with a generic body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Message, "field": ve.Field})
	case errors.Is(err, errBadPayload):
		respondError(w, http.StatusBadRequest, "Invalid request payload")
	case errors.Is(err, service.ErrInvalidID):
		respondError(w, http.StatusBadRequest, "Invalid ID format")
	case errors.Is(err, service.ErrMissingIdentity):
		respondError(w, http.StatusBadRequest, "Supervisor email is required")
	case errors.Is(err, service.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, "Todo not found")
	case errors.Is(err, service.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		respondError(w, http.StatusUnauthorized, "Invalid refresh token")
	case errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidVerificationToken),
		errors.Is(err, service.ErrAlreadyVerified):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).
			Str("request_id", requestIDFrom(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
