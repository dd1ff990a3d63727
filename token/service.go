// Package token converts session records to JWT payloads and signs and
// verifies them with a shared HMAC secret.
package token

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/portal-session-server/internal/metrics"
	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/rs/zerolog/log"
)

// Overrides replaces values that would otherwise be defaulted when a session
// is projected onto a token payload.
type Overrides struct {
	AuthenticationState AuthenticationState
	NaviStytchUserID    string
}

// Service mints and verifies portal JWTs. It is inert until Initialize is called.
type Service struct {
	mu      sync.RWMutex
	signer  Signer
	nowFunc func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNowFunc overrides the clock used for iat and expiry checks (primarily for testing).
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.nowFunc = now
	}
}

// WithSigner installs a signer up front, leaving the service initialized.
func WithSigner(signer Signer) ServiceOption {
	return func(s *Service) {
		s.signer = signer
	}
}

// NewService creates an uninitialized token service.
func NewService(options ...ServiceOption) *Service {
	s := &Service{
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Initialize installs the HMAC secret. Calling it again replaces the secret.
func (s *Service) Initialize(secret string) error {
	if strings.TrimSpace(secret) == "" {
		return newAuthError(KindInitializationFailed, "signing secret is empty", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signer = NewHMACSigner(secret)
	return nil
}

// IsInitialized reports whether a signing secret has been installed.
func (s *Service) IsInitialized() bool {
	return s.currentSigner() != nil
}

func (s *Service) currentSigner() Signer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer
}

// ConvertSessionToJWTPayload projects a session onto token claims and validates
// the result.
func (s *Service) ConvertSessionToJWTPayload(data sessions.TokenData, sessionID, issuer string, overrides *Overrides) (*Claims, error) {
	if !s.IsInitialized() {
		return nil, newAuthError(KindNotInitialized, "token service is not initialized", nil)
	}

	claims := &Claims{
		CareflowID:          data.CareflowID,
		StakeholderID:       data.StakeholderID,
		PatientID:           data.PatientID,
		TenantID:            data.TenantID,
		OrgID:               data.OrgID,
		Environment:         data.Environment,
		AuthenticationState: Unauthenticated,
		NaviStytchUserID:    data.NaviStytchUserID,
		CreatedAt:           data.CreatedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  sessionID,
			Issuer:   issuer,
			IssuedAt: jwt.NewNumericDate(s.nowFunc()),
		},
	}
	if data.Exp > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Unix(data.Exp, 0))
	}
	if overrides != nil {
		if overrides.AuthenticationState != "" {
			claims.AuthenticationState = overrides.AuthenticationState
		}
		if overrides.NaviStytchUserID != "" {
			claims.NaviStytchUserID = overrides.NaviStytchUserID
		}
	}

	if err := claims.ValidatePayload(); err != nil {
		return nil, newAuthError(KindSessionConversionFailed, "session could not be converted to a token payload", err)
	}
	return claims, nil
}

// CreateJWTFromSession checks the session against its schema, converts it to
// claims and signs them.
func (s *Service) CreateJWTFromSession(data sessions.TokenData, sessionID, issuer string, overrides *Overrides) (string, error) {
	signer := s.currentSigner()
	if signer == nil {
		return "", newAuthError(KindNotInitialized, "token service is not initialized", nil)
	}

	session := data.Clone()
	session.Normalize()
	if err := session.Validate(); err != nil {
		return "", newAuthError(KindInvalidSessionData, "session data is invalid", err)
	}

	claims, err := s.ConvertSessionToJWTPayload(session, sessionID, issuer, overrides)
	if err != nil {
		return "", err
	}

	signed, err := signer.Sign(claims)
	if err != nil {
		return "", newAuthError(KindJWTCreationFailed, "token could not be signed", err)
	}
	metrics.TokensMinted.WithLabelValues(string(claims.AuthenticationState)).Inc()
	return signed, nil
}

// VerifyToken checks the signature and expiry of raw and returns its claims.
func (s *Service) VerifyToken(raw string) (*Claims, error) {
	claims, err := s.verify(raw)
	if err != nil {
		kind := KindOf(err)
		metrics.TokenVerifyFailures.WithLabelValues(string(kind)).Inc()
		log.Debug().Str("kind", string(kind)).Msg("Token verification failed")
		return nil, err
	}
	return claims, nil
}

func (s *Service) verify(raw string) (*Claims, error) {
	signer := s.currentSigner()
	if signer == nil {
		return nil, newAuthError(KindNotInitialized, "token service is not initialized", nil)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, newAuthError(KindInvalidTokenFormat, "token is empty", nil)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signer.GetSigningMethod().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.nowFunc),
	)

	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(raw, claims, signer.GetVerificationKey)
	if err != nil {
		return nil, mapParseError(err)
	}
	if !parsed.Valid {
		return nil, newAuthError(KindInvalidTokenFormat, "token is not valid", nil)
	}

	if err := claims.ValidatePayload(); err != nil {
		return nil, newAuthError(KindPayloadValidationFailed, "token payload failed validation", err)
	}
	return claims, nil
}

// mapParseError translates golang-jwt errors onto AuthError kinds. Signature
// problems are checked before claim problems, matching the parser's order.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newAuthError(KindInvalidTokenFormat, "token is malformed", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return newAuthError(KindTokenSignatureInvalid, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return newAuthError(KindTokenExpired, "token has expired", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return newAuthError(KindMissingRequiredClaims, "token is missing required claims", err)
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return newAuthError(KindInvalidClaimsFormat, "token claims are invalid", err)
	}
	return newAuthError(KindUnknown, "token could not be verified", err)
}
