// Package auth ties credential resolution, session persistence and token
// minting together for the portal route handlers.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/jrsteele09/portal-session-server/branding"
	"github.com/jrsteele09/portal-session-server/internal/metrics"
	"github.com/jrsteele09/portal-session-server/internal/shortid"
	"github.com/jrsteele09/portal-session-server/internal/utils"
	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/jrsteele09/portal-session-server/store"
	"github.com/jrsteele09/portal-session-server/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSessionTTL = 30 * 24 * time.Hour
	DefaultTokenTTL   = 15 * time.Minute
	DefaultIssuer     = "portal-session-server"
)

// TokenIssuer mints and verifies portal JWTs. *token.Service satisfies it.
type TokenIssuer interface {
	CreateJWTFromSession(data sessions.TokenData, sessionID, issuer string, overrides *token.Overrides) (string, error)
	VerifyToken(raw string) (*token.Claims, error)
}

var _ TokenIssuer = (*token.Service)(nil)

// SessionService is the facade the route handlers use for every session operation.
//
// Reads always precede writes within a call, but nothing serialises concurrent
// calls for the same session: the last write wins.
type SessionService struct {
	store      *store.SessionStore
	tokens     TokenIssuer
	branding   branding.Lookup
	issuer     string
	sessionTTL time.Duration
	tokenTTL   time.Duration
	nowFunc    func() time.Time
}

// SessionServiceOption configures a SessionService.
type SessionServiceOption func(*SessionService)

// WithIssuer sets the iss claim of minted tokens.
func WithIssuer(issuer string) SessionServiceOption {
	return func(s *SessionService) {
		s.issuer = issuer
	}
}

// WithSessionTTL sets how far refresh and creation push a session's expiry.
func WithSessionTTL(ttl time.Duration) SessionServiceOption {
	return func(s *SessionService) {
		s.sessionTTL = ttl
	}
}

// WithTokenTTL sets the lifetime of minted tokens.
func WithTokenTTL(ttl time.Duration) SessionServiceOption {
	return func(s *SessionService) {
		s.tokenTTL = ttl
	}
}

// WithBranding installs the lookup consulted when sessions are created.
func WithBranding(lookup branding.Lookup) SessionServiceOption {
	return func(s *SessionService) {
		s.branding = lookup
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) SessionServiceOption {
	return func(s *SessionService) {
		s.nowFunc = now
	}
}

// NewSessionService creates a SessionService over the session store and token issuer.
func NewSessionService(sessionStore *store.SessionStore, tokens TokenIssuer, options ...SessionServiceOption) (*SessionService, error) {
	if sessionStore == nil {
		return nil, errors.New("[NewSessionService] session store is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewSessionService] token issuer is required")
	}

	s := &SessionService{
		store:      sessionStore,
		tokens:     tokens,
		issuer:     DefaultIssuer,
		sessionTTL: DefaultSessionTTL,
		tokenTTL:   DefaultTokenTTL,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = DefaultTokenTTL
	}
	return s, nil
}

// MintOptions carries the caller-supplied claims of a minted token.
type MintOptions struct {
	AuthenticationState token.AuthenticationState
	NaviStytchUserID    string
}

func (o *MintOptions) overrides() *token.Overrides {
	if o == nil {
		return &token.Overrides{AuthenticationState: token.Unauthenticated}
	}
	state := o.AuthenticationState
	if state == "" {
		state = token.Unauthenticated
	}
	return &token.Overrides{AuthenticationState: state, NaviStytchUserID: o.NaviStytchUserID}
}

// RefreshResult is returned by RefreshSessionAndMintJWT.
type RefreshResult struct {
	JWT                 string    `json:"jwt"`
	SessionID           string    `json:"sessionId"`
	SessionExpiresAt    time.Time `json:"-"`
	SessionExpiresAtISO string    `json:"sessionExpiresAtIso"`
}

// EmbedSessionResult is returned by GetEmbedSessionAndMintJWT.
type EmbedSessionResult struct {
	JWT     string             `json:"jwt"`
	Session sessions.TokenData `json:"session"`
}

// CreateSessionResult is returned by CreateEmbedSession. Branding is empty when
// the organisation has none or the lookup failed.
type CreateSessionResult struct {
	SessionID string          `json:"sessionId"`
	Branding  branding.Config `json:"branding"`
}

// UpgradeInput holds the care flow identifiers that activate a session.
type UpgradeInput struct {
	SessionID     string                 `json:"sessionId"`
	CareflowID    string                 `json:"careflowId"`
	StakeholderID string                 `json:"stakeholderId"`
	PatientID     string                 `json:"patientId"`
	CareflowData  *sessions.CareflowData `json:"careflowData,omitempty"`
}

// RefreshSessionAndMintJWT resolves the caller's session, pushes its expiry out
// by the session TTL and mints a fresh token carrying the resolved
// authentication state.
func (s *SessionService) RefreshSessionAndMintJWT(ctx context.Context, r *http.Request) (*RefreshResult, error) {
	resolution := s.ResolveSessionFromRequest(r)
	if resolution.SessionID == "" {
		return nil, newSessionError(CodeNoSessionFound, "no session found on request", nil)
	}

	data, err := s.store.GetSession(ctx, resolution.SessionID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, newSessionError(CodeSessionExpired, "session has expired", nil)
	}

	extended := s.ExtendSessionExpiration(*data)
	if err := s.store.SetSession(ctx, resolution.SessionID, extended); err != nil {
		return nil, err
	}

	jwt, err := s.mint(extended, resolution.SessionID, &MintOptions{
		AuthenticationState: resolution.AuthenticationState,
		NaviStytchUserID:    resolution.NaviStytchUserID,
	})
	if err != nil {
		return nil, err
	}

	expiresAt := time.Unix(extended.Exp, 0).UTC()
	return &RefreshResult{
		JWT:                 jwt,
		SessionID:           resolution.SessionID,
		SessionExpiresAt:    expiresAt,
		SessionExpiresAtISO: expiresAt.Format(time.RFC3339),
	}, nil
}

// ExtendSessionExpiration returns data with exp set to now plus the session TTL.
func (s *SessionService) ExtendSessionExpiration(data sessions.TokenData) sessions.TokenData {
	extended := data.Clone()
	extended.Exp = s.nowFunc().Add(s.sessionTTL).Unix()
	return extended
}

// MintJWTFromStoredSession mints a token for a stored session without touching
// the session record.
func (s *SessionService) MintJWTFromStoredSession(ctx context.Context, sessionID string, opts *MintOptions) (string, error) {
	data, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if data == nil {
		return "", newSessionError(CodeSessionExpired, "session has expired", nil)
	}
	return s.mint(*data, sessionID, opts)
}

// GetEmbedSessionAndMintJWT loads a session for the embed flow and mints a token
// for it. Sessions in the error state are refused without minting.
func (s *SessionService) GetEmbedSessionAndMintJWT(ctx context.Context, sessionID string, opts *MintOptions) (*EmbedSessionResult, error) {
	data, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, newSessionError(CodeNoSessionFound, "session not found", nil)
	}

	value, err := sessions.ParseValue(*data)
	if err != nil {
		return nil, newSessionError(CodeInvalidSessionType, "stored session has an invalid shape", err)
	}
	if errored, ok := value.(sessions.Errored); ok {
		return nil, newSessionError(CodeSessionInErrorState, errored.Reason(), nil)
	}

	session := value.Data()
	if err := session.Validate(); err != nil {
		return nil, newSessionError(CodeInvalidSessionType, "stored session is not valid session data", err)
	}

	jwt, err := s.mint(session, sessionID, opts)
	if err != nil {
		return nil, err
	}
	return &EmbedSessionResult{JWT: jwt, Session: session}, nil
}

// CreateEmbedSession validates input, names it deterministically and stores it
// in the created state.
func (s *SessionService) CreateEmbedSession(ctx context.Context, input sessions.TokenData) (*CreateSessionResult, error) {
	now := s.nowFunc()

	data := input.Clone()
	data.CreatedAt = now.UnixMilli()
	data.State = sessions.StateCreated
	data.ErrorMessage = ""
	if data.Exp <= 0 {
		data.Exp = now.Add(s.sessionTTL).Unix()
	}
	data.Normalize()
	if err := data.Validate(); err != nil {
		return nil, newSessionError(CodeInvalidSessionType, "session input is invalid", err)
	}

	sessionID, err := shortid.Generate(data, shortid.DefaultLength)
	if err != nil {
		return nil, errors.Wrap(err, "SessionService.CreateEmbedSession id")
	}
	if err := s.store.SetSession(ctx, sessionID, data); err != nil {
		return nil, err
	}

	metrics.SessionsCreated.Inc()
	log.Info().Str("session_id", sessionID).Str("org_id", data.OrgID).Msg("Created embed session")

	return &CreateSessionResult{
		SessionID: sessionID,
		Branding:  s.lookupBranding(ctx, data.OrgID),
	}, nil
}

// UpgradeToActive binds a stored session to a started care flow.
func (s *SessionService) UpgradeToActive(ctx context.Context, input UpgradeInput) error {
	data, err := s.store.GetSession(ctx, input.SessionID)
	if err != nil {
		return err
	}
	if data == nil {
		return newSessionError(CodeSessionExpired, "session has expired", nil)
	}
	if data.State == sessions.StateError {
		return newSessionError(CodeSessionInErrorState, data.ErrorMessage, nil)
	}

	updated := data.Clone()
	updated.CareflowID = input.CareflowID
	updated.StakeholderID = input.StakeholderID
	updated.PatientID = input.PatientID
	if input.CareflowData != nil {
		updated.CareflowData = utils.Ptr(*input.CareflowData)
	}
	updated.State = sessions.StateActive

	if _, err := sessions.ParseValue(updated); err != nil {
		return newSessionError(CodeInvalidSessionType, "upgraded session has an invalid shape", err)
	}
	if err := s.store.SetSession(ctx, input.SessionID, updated); err != nil {
		return err
	}

	metrics.SessionsUpgraded.Inc()
	log.Info().Str("session_id", input.SessionID).Str("careflow_id", input.CareflowID).Msg("Session upgraded to active")
	return nil
}

// Get reads a raw key from the session store.
func (s *SessionService) Get(ctx context.Context, key string) ([]byte, error) {
	return s.store.Get(ctx, key)
}

// Set writes a raw key to the session store.
func (s *SessionService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.store.Set(ctx, key, value, ttl)
}

// Delete removes a raw key from the session store.
func (s *SessionService) Delete(ctx context.Context, key string) error {
	return s.store.Delete(ctx, key)
}

// TokenTTL is the lifetime of minted tokens.
func (s *SessionService) TokenTTL() time.Duration { return s.tokenTTL }

// SessionTTL is how far refresh pushes a session's expiry.
func (s *SessionService) SessionTTL() time.Duration { return s.sessionTTL }

// mint signs a token for data whose exp is renewed to now plus the token TTL.
// The stored record is never modified.
func (s *SessionService) mint(data sessions.TokenData, sessionID string, opts *MintOptions) (string, error) {
	renewed := data.Clone()
	renewed.Exp = s.nowFunc().Add(s.tokenTTL).Unix()
	return s.tokens.CreateJWTFromSession(renewed, sessionID, s.issuer, opts.overrides())
}

func (s *SessionService) lookupBranding(ctx context.Context, orgID string) branding.Config {
	if s.branding == nil {
		return branding.Config{}
	}
	cfg, err := s.branding.GetBrandingByOrgID(ctx, orgID)
	if err != nil {
		log.Warn().Err(err).Str("org_id", orgID).Msg("Branding lookup failed")
		return branding.Config{}
	}
	return utils.Value(cfg)
}
