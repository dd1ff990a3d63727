package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jrsteele09/portal-session-server/auth"
	apperrors "github.com/jrsteele09/portal-session-server/internal/errors"
	"github.com/jrsteele09/portal-session-server/otc"
	"github.com/jrsteele09/portal-session-server/token"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, errorResponse{Error: errorCode, Message: description})
}

// writeError maps an error onto a status code. Only the error-state message of
// a session is passed through to the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var sessErr *auth.SessionError
	var authErr *token.AuthError

	switch {
	case errors.As(err, &sessErr):
		switch sessErr.Code {
		case auth.CodeNoSessionFound:
			writeJSONError(w, string(sessErr.Code), "session not found", http.StatusNotFound)
		case auth.CodeSessionExpired:
			writeJSONError(w, string(sessErr.Code), "session has expired", http.StatusUnauthorized)
		case auth.CodeInvalidSessionType:
			writeJSONError(w, string(sessErr.Code), "session data is invalid", http.StatusBadRequest)
		case auth.CodeSessionInErrorState:
			writeJSONError(w, string(sessErr.Code), sessErr.Message, http.StatusConflict)
		default:
			writeJSONError(w, string(sessErr.Code), "session error", http.StatusBadRequest)
		}
		return

	case errors.As(err, &authErr):
		zerolog.Ctx(r.Context()).Debug().Str("kind", string(authErr.Kind)).Msg("Authentication failed")
		writeJSONError(w, "UNAUTHORIZED", "authentication failed", http.StatusUnauthorized)
		return

	case errors.Is(err, otc.ErrChallengeNotFound):
		writeJSONError(w, "OTC_NOT_FOUND", "no pending verification code", http.StatusNotFound)
		return
	case errors.Is(err, otc.ErrTooManyAttempts):
		writeJSONError(w, "OTC_TOO_MANY_ATTEMPTS", "too many attempts, request a new code", http.StatusTooManyRequests)
		return
	case errors.Is(err, otc.ErrInvalidCode):
		writeJSONError(w, "OTC_INVALID_CODE", "verification code is incorrect", http.StatusUnauthorized)
		return
	case errors.Is(err, otc.ErrInvalidMethod), errors.Is(err, otc.ErrInvalidRequest),
		errors.Is(err, apperrors.ErrInvalidRequest), errors.Is(err, apperrors.ErrMissingIDParam):
		writeJSONError(w, "INVALID_REQUEST", err.Error(), http.StatusBadRequest)
		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	writeJSONError(w, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := decoder.Decode(v); err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "decode request body: %v", err)
	}
	return nil
}
