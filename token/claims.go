package token

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/portal-session-server/sessions"
)

// AuthenticationState records how strongly the caller proved their identity.
type AuthenticationState string

const (
	Unauthenticated AuthenticationState = "unauthenticated"
	Verified        AuthenticationState = "verified"
	Authenticated   AuthenticationState = "authenticated"
)

// IsValid reports whether a is a known authentication state.
func (a AuthenticationState) IsValid() bool {
	switch a {
	case Unauthenticated, Verified, Authenticated:
		return true
	}
	return false
}

// Claims is the payload of a portal JWT: a snake_case projection of the session
// plus the registered sub, iss, exp and iat claims.
type Claims struct {
	CareflowID          string               `json:"careflow_id,omitempty"`
	StakeholderID       string               `json:"stakeholder_id,omitempty"`
	PatientID           string               `json:"patient_id,omitempty"`
	TenantID            string               `json:"tenant_id"`
	OrgID               string               `json:"org_id"`
	Environment         sessions.Environment `json:"environment"`
	AuthenticationState AuthenticationState  `json:"authentication_state"`
	NaviStytchUserID    string               `json:"navi_stytch_user_id,omitempty"`
	CreatedAt           int64                `json:"createdAt"`
	jwt.RegisteredClaims
}

// SessionID returns the session the token was minted for.
func (c *Claims) SessionID() string {
	return c.Subject
}

// ValidatePayload checks the claim set against the token payload schema. It is
// not named Validate so the jwt parser does not run it as a claims validator.
func (c *Claims) ValidatePayload() error {
	var errs sessions.ValidationErrors
	if strings.TrimSpace(c.Subject) == "" {
		errs = errs.Add("sub", "is required")
	}
	if strings.TrimSpace(c.TenantID) == "" {
		errs = errs.Add("tenant_id", "is required")
	}
	if strings.TrimSpace(c.OrgID) == "" {
		errs = errs.Add("org_id", "is required")
	}
	if !c.Environment.IsValid() {
		errs = errs.Add("environment", "must be one of the known deployment tiers")
	}
	if !c.AuthenticationState.IsValid() {
		errs = errs.Add("authentication_state", "must be one of unauthenticated, verified, authenticated")
	}
	if strings.TrimSpace(c.Issuer) == "" {
		errs = errs.Add("iss", "is required")
	}
	if c.CreatedAt < 0 {
		errs = errs.Add("createdAt", "must not be negative")
	}
	if c.ExpiresAt == nil || c.ExpiresAt.Unix() <= 0 {
		errs = errs.Add("exp", "must be a positive number")
	}
	if c.IssuedAt == nil {
		errs = errs.Add("iat", "is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
