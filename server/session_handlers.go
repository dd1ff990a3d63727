package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/jrsteele09/portal-session-server/auth"
	apperrors "github.com/jrsteele09/portal-session-server/internal/errors"
	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/jrsteele09/portal-session-server/token"
	"github.com/rs/zerolog"
)

// CreateSessionHandler stores a new embed session and returns its id and branding.
func (s *Server) CreateSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input sessions.TokenData
		if err := decodeJSON(w, r, &input); err != nil {
			writeError(w, r, err)
			return
		}

		result, err := s.sessions.CreateEmbedSession(r.Context(), input)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

// SessionJWTHandler mints a token for the session named in the URL and points
// the caller's cookies at it.
func (s *Server) SessionJWTHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue(sessionIDPathValue)
		if sessionID == "" {
			writeError(w, r, apperrors.ErrMissingIDParam)
			return
		}

		resolved := s.sessions.ResolveAndNormalizeSessionForURL(r, sessionID)
		opts := &auth.MintOptions{
			AuthenticationState: resolved.AuthenticationState,
			NaviStytchUserID:    resolved.NaviStytchUserID,
		}
		if resolved.Mismatch() {
			zerolog.Ctx(r.Context()).Info().
				Str("session_id", sessionID).
				Str("previous_session_id", resolved.PreviousSessionID).
				Msg("Session in URL differs from credentials, switching session")
			// Verification belongs to the previous session.
			opts = &auth.MintOptions{AuthenticationState: token.Unauthenticated}
		}

		result, err := s.sessions.GetEmbedSessionAndMintJWT(r.Context(), sessionID, opts)
		if err != nil {
			writeError(w, r, err)
			return
		}

		s.cookies.SetAuthCookies(w, sessionID, result.JWT)
		writeJSON(w, http.StatusOK, result)
	}
}

// RefreshSessionHandler extends the caller's session and mints a fresh token.
func (s *Server) RefreshSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.sessions.RefreshSessionAndMintJWT(r.Context(), r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		s.cookies.SetAuthCookies(w, result.SessionID, result.JWT)
		writeJSON(w, http.StatusOK, result)
	}
}

type activateRequest struct {
	CareflowID    string                 `json:"careflowId"`
	StakeholderID string                 `json:"stakeholderId"`
	PatientID     string                 `json:"patientId"`
	CareflowData  *sessions.CareflowData `json:"careflowData,omitempty"`
}

// ActivateSessionHandler binds the session in the URL to a started care flow.
// It is called by the trusted care-flow starter, not by the patient's browser,
// and requires the activation secret when one is configured.
func (s *Server) ActivateSessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.activationAllowed(r) {
			writeJSONError(w, "UNAUTHORIZED", "activation secret is missing or wrong", http.StatusUnauthorized)
			return
		}

		sessionID := r.PathValue(sessionIDPathValue)
		if sessionID == "" {
			writeError(w, r, apperrors.ErrMissingIDParam)
			return
		}

		var req activateRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		err := s.sessions.UpgradeToActive(r.Context(), auth.UpgradeInput{
			SessionID:     sessionID,
			CareflowID:    req.CareflowID,
			StakeholderID: req.StakeholderID,
			PatientID:     req.PatientID,
			CareflowData:  req.CareflowData,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) activationAllowed(r *http.Request) bool {
	secret := s.config.GetActivationSecret()
	if secret == "" {
		return true
	}
	given := r.Header.Get(activationSecretHeader)
	return subtle.ConstantTimeCompare([]byte(given), []byte(secret)) == 1
}

// LogoutHandler clears both credential cookies. The session record is kept.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.cookies.ClearAuthCookies(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
