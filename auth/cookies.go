package auth

import (
	"net/http"
	"time"
)

const (
	// SessionCookieName carries the session id.
	SessionCookieName = "portal_session_id"
	// TokenCookieName carries the most recently minted JWT.
	TokenCookieName = "portal_jwt"
)

// CookiePolicy holds the attributes shared by both credential cookies.
type CookiePolicy struct {
	Secure        bool
	SameSite      http.SameSite
	SessionMaxAge time.Duration
	TokenMaxAge   time.Duration
}

// NewCookiePolicy returns the policy for the deployment. The portal runs inside
// a third-party iframe in production, which needs SameSite=None and Secure.
func NewCookiePolicy(production bool) CookiePolicy {
	p := CookiePolicy{
		SameSite:      http.SameSiteLaxMode,
		SessionMaxAge: DefaultSessionTTL,
		TokenMaxAge:   DefaultTokenTTL,
	}
	if production {
		p.Secure = true
		p.SameSite = http.SameSiteNoneMode
	}
	return p
}

// SetAuthCookies writes the session and token cookies.
func (p CookiePolicy) SetAuthCookies(w http.ResponseWriter, sessionID, jwt string) {
	http.SetCookie(w, p.cookie(SessionCookieName, sessionID, int(p.SessionMaxAge.Seconds())))
	http.SetCookie(w, p.cookie(TokenCookieName, jwt, int(p.TokenMaxAge.Seconds())))
}

// ClearAuthCookies expires both cookies.
func (p CookiePolicy) ClearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie(SessionCookieName, "", -1))
	http.SetCookie(w, p.cookie(TokenCookieName, "", -1))
}

func (p CookiePolicy) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   p.Secure,
		SameSite: p.SameSite,
	}
}
