package server

import (
	"net/http"

	"github.com/jrsteele09/portal-session-server/auth"
	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/jrsteele09/portal-session-server/token"
)

type otcStartRequest struct {
	Method      sessions.OTCMethod `json:"method"`
	Destination string             `json:"destination"`
}

type otcStartResponse struct {
	RequestID   string `json:"requestId"`
	ExpiresAt   int64  `json:"expiresAt"`
	MaxAttempts int    `json:"maxAttempts"`
}

type otcVerifyRequest struct {
	Code string `json:"code"`
}

type otcVerifyResponse struct {
	JWT                 string                    `json:"jwt"`
	AuthenticationState token.AuthenticationState `json:"authenticationState"`
}

// OTCStartHandler sends a one-time code for the caller's session.
func (s *Server) OTCStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolved := s.sessions.ResolveSessionFromRequest(r)
		if resolved.SessionID == "" {
			writeError(w, r, auth.ErrNoSessionFound)
			return
		}

		var req otcStartRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		challenge, err := s.otc.Start(r.Context(), resolved.SessionID, req.Method, req.Destination)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, otcStartResponse{
			RequestID:   challenge.LastRequestID,
			ExpiresAt:   challenge.ExpiresAt,
			MaxAttempts: challenge.MaxAttempts,
		})
	}
}

// OTCVerifyHandler checks the code and, on success, mints a verified token for
// the caller's session.
func (s *Server) OTCVerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resolved := s.sessions.ResolveSessionFromRequest(r)
		if resolved.SessionID == "" {
			writeError(w, r, auth.ErrNoSessionFound)
			return
		}

		var req otcVerifyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		userID, err := s.otc.Verify(r.Context(), resolved.SessionID, req.Code)
		if err != nil {
			writeError(w, r, err)
			return
		}

		jwt, err := s.sessions.MintJWTFromStoredSession(r.Context(), resolved.SessionID, &auth.MintOptions{
			AuthenticationState: token.Verified,
			NaviStytchUserID:    userID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}

		s.cookies.SetAuthCookies(w, resolved.SessionID, jwt)
		writeJSON(w, http.StatusOK, otcVerifyResponse{JWT: jwt, AuthenticationState: token.Verified})
	}
}
