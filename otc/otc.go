// Package otc runs one-time-code verification for a session against an
// external identity provider.
package otc

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/portal-session-server/internal/metrics"
	"github.com/jrsteele09/portal-session-server/internal/utils"
	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/jrsteele09/portal-session-server/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAttempts = 5
	DefaultTTL         = 10 * time.Minute
)

var (
	ErrChallengeNotFound = errors.New("no pending one-time code for session")
	ErrTooManyAttempts   = errors.New("too many one-time code attempts")
	ErrInvalidCode       = errors.New("one-time code rejected")
	ErrInvalidMethod     = errors.New("unsupported one-time code method")
	ErrInvalidRequest    = errors.New("session id, destination and code are required")
)

// StartResult is what the provider returns after sending a code.
type StartResult struct {
	MethodID     string
	StytchUserID string
}

// Provider sends and checks one-time codes. VerifyCode returns the provider's
// user id on success and an error wrapping ErrInvalidCode when the code is wrong.
type Provider interface {
	SendCode(ctx context.Context, method sessions.OTCMethod, destination string) (StartResult, error)
	VerifyCode(ctx context.Context, methodID, code string) (string, error)
}

// Service stores challenges per session and enforces the attempt limit.
//
// Attempts are counted with a read-modify-write, so concurrent verifications of
// the same session can under-count.
type Service struct {
	store        *store.SessionStore
	provider     Provider
	maxAttempts  int
	ttl          time.Duration
	nowFunc      func() time.Time
	newRequestID func() string
}

// Option configures a Service.
type Option func(*Service)

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		s.maxAttempts = n
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func WithRequestIDFunc(f func() string) Option {
	return func(s *Service) {
		s.newRequestID = f
	}
}

// NewService creates an OTC service.
func NewService(sessionStore *store.SessionStore, provider Provider, options ...Option) (*Service, error) {
	if sessionStore == nil {
		return nil, errors.New("[otc.NewService] session store is required")
	}
	if provider == nil {
		return nil, errors.New("[otc.NewService] provider is required")
	}
	s := &Service{
		store:        sessionStore,
		provider:     provider,
		maxAttempts:  DefaultMaxAttempts,
		ttl:          DefaultTTL,
		nowFunc:      time.Now,
		newRequestID: uuid.NewString,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	return s, nil
}

// Start sends a code to destination and replaces any pending challenge for the session.
func (s *Service) Start(ctx context.Context, sessionID string, method sessions.OTCMethod, destination string) (*sessions.OTCChallenge, error) {
	if !method.IsValid() {
		return nil, ErrInvalidMethod
	}
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(destination) == "" {
		return nil, ErrInvalidRequest
	}

	sent, err := s.provider.SendCode(ctx, method, destination)
	if err != nil {
		return nil, errors.Wrap(err, "otc.Start send")
	}

	challenge := sessions.OTCChallenge{
		MethodID:      sent.MethodID,
		Method:        method,
		Destination:   destination,
		MaxAttempts:   s.maxAttempts,
		ExpiresAt:     s.nowFunc().Add(s.ttl).Unix(),
		StytchUserID:  sent.StytchUserID,
		LastRequestID: s.newRequestID(),
	}
	if err := s.store.SetOTCChallenge(ctx, sessionID, challenge); err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sessionID).Object("challenge", challenge).Msg("One-time code sent")
	return &challenge, nil
}

// Verify checks code against the pending challenge and returns the provider's user id.
func (s *Service) Verify(ctx context.Context, sessionID, code string) (string, error) {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(code) == "" {
		return "", ErrInvalidRequest
	}

	challenge, err := s.store.GetOTCChallenge(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if challenge == nil {
		return "", ErrChallengeNotFound
	}
	if challenge.Attempts >= challenge.MaxAttempts {
		metrics.OTCAttempts.WithLabelValues("locked").Inc()
		if err := s.store.DeleteOTCChallenge(ctx, sessionID); err != nil {
			return "", err
		}
		return "", ErrTooManyAttempts
	}

	challenge, err = s.store.IncrementOTCAttempts(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if challenge == nil {
		return "", ErrChallengeNotFound
	}

	userID, err := s.provider.VerifyCode(ctx, challenge.MethodID, code)
	if err != nil {
		metrics.OTCAttempts.WithLabelValues("rejected").Inc()
		log.Info().Str("session_id", sessionID).Object("challenge", challenge).Msg("One-time code rejected")
		if errors.Is(err, ErrInvalidCode) {
			return "", errors.Wrapf(ErrInvalidCode, "%d attempts remaining", challenge.RemainingAttempts())
		}
		return "", errors.Wrap(err, "otc.Verify")
	}

	metrics.OTCAttempts.WithLabelValues("verified").Inc()
	if err := s.store.DeleteOTCChallenge(ctx, sessionID); err != nil {
		return "", err
	}
	return utils.FirstNonEmpty(userID, challenge.StytchUserID), nil
}
