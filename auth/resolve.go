package auth

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/portal-session-server/token"
	"github.com/rs/zerolog/log"
)

// Resolution is who the caller is, as far as their credentials say. SessionID
// is empty when no credential named a session.
type Resolution struct {
	SessionID           string                    `json:"sessionId,omitempty"`
	AuthenticationState token.AuthenticationState `json:"authenticationState"`
	NaviStytchUserID    string                    `json:"naviStytchUserId,omitempty"`
}

// URLResolution is a Resolution pinned to the session id of a URL.
// PreviousSessionID holds the credential-derived id when it differed.
type URLResolution struct {
	Resolution
	PreviousSessionID string `json:"previousSessionId,omitempty"`
}

// Mismatch reports whether the caller's credentials named a different session.
func (u URLResolution) Mismatch() bool {
	return u.PreviousSessionID != ""
}

// ResolveSessionFromRequest reads the caller's credentials in precedence order:
// the session cookie, then a bearer token, and finally the token cookie, which
// only ever contributes authentication state and the identity-provider user,
// and only when it was minted for the resolved session. Invalid credentials are
// ignored.
func (s *SessionService) ResolveSessionFromRequest(r *http.Request) Resolution {
	res := Resolution{AuthenticationState: token.Unauthenticated}

	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		res.SessionID = c.Value
	} else if bearer := bearerToken(r); bearer != "" {
		if claims, err := s.tokens.VerifyToken(bearer); err == nil {
			res.SessionID = claims.Subject
			res.AuthenticationState = claims.AuthenticationState
			res.NaviStytchUserID = claims.NaviStytchUserID
		} else {
			log.Debug().Err(err).Msg("Ignoring invalid bearer token")
		}
	}

	if res.NaviStytchUserID == "" {
		if c, err := r.Cookie(TokenCookieName); err == nil && c.Value != "" {
			if claims, err := s.tokens.VerifyToken(c.Value); err != nil {
				log.Debug().Err(err).Msg("Ignoring invalid token cookie")
			} else if res.SessionID != "" && claims.Subject != res.SessionID {
				log.Debug().
					Str("session_id", res.SessionID).
					Str("token_session_id", claims.Subject).
					Msg("Ignoring token cookie minted for another session")
			} else {
				res.AuthenticationState = claims.AuthenticationState
				res.NaviStytchUserID = claims.NaviStytchUserID
			}
		}
	}
	return res
}

// ResolveAndNormalizeSessionForURL resolves the caller and makes urlSessionID
// the session of record.
func (s *SessionService) ResolveAndNormalizeSessionForURL(r *http.Request, urlSessionID string) URLResolution {
	res := s.ResolveSessionFromRequest(r)
	out := URLResolution{Resolution: res}
	if res.SessionID != "" && res.SessionID != urlSessionID {
		out.PreviousSessionID = res.SessionID
	}
	out.SessionID = urlSessionID
	return out
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
