// Package store persists session records and one-time-code challenges on top of
// a key/value backend with per-key expiry.
package store

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/jrsteele09/portal-session-server/internal/errors"
	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultSessionTTL is used when a session is written without an expiry.
const DefaultSessionTTL = 30 * 24 * time.Hour

const (
	sessionKeyPrefix = "session:"
	otcKeyPrefix     = "otc:"
)

// KV is the key/value backend contract. Get returns nil, nil for missing keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// SessionStore reads and writes session and OTC records. Reads always re-check
// expiry and delete records whose expiry has passed, whatever the backend does.
//
// There is no compare-and-swap: concurrent read-modify-write callers can lose updates.
type SessionStore struct {
	kv         KV
	keyPrefix  string
	defaultTTL time.Duration
	nowFunc    func() time.Time
}

// Option configures a SessionStore.
type Option func(*SessionStore)

// WithNowFunc overrides the clock (primarily for testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *SessionStore) {
		s.nowFunc = now
	}
}

// WithKeyPrefix namespaces every key written by the store.
func WithKeyPrefix(prefix string) Option {
	return func(s *SessionStore) {
		s.keyPrefix = prefix
	}
}

// WithDefaultTTL sets the TTL used for sessions written without exp.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *SessionStore) {
		s.defaultTTL = ttl
	}
}

// New creates a SessionStore over kv.
func New(kv KV, options ...Option) *SessionStore {
	s := &SessionStore{
		kv:         kv,
		defaultTTL: DefaultSessionTTL,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = DefaultSessionTTL
	}
	return s
}

// SetSession persists data under id with a TTL derived from data.Exp.
func (s *SessionStore) SetSession(ctx context.Context, id string, data sessions.TokenData) error {
	value, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "SessionStore.SetSession marshal")
	}
	if err := s.kv.Set(ctx, s.sessionKey(id), value, s.ttlUntil(data.Exp, s.defaultTTL)); err != nil {
		return errors.Wrap(err, "SessionStore.SetSession")
	}
	return nil
}

// GetSession returns the session stored under id, or nil if it is missing or expired.
func (s *SessionStore) GetSession(ctx context.Context, id string) (*sessions.TokenData, error) {
	key := s.sessionKey(id)
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "SessionStore.GetSession")
	}
	if raw == nil {
		return nil, nil
	}

	var data sessions.TokenData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptRecord, "SessionStore.GetSession %s: %v", id, err)
	}

	if data.Exp > 0 && s.expired(data.Exp) {
		log.Debug().Str("session_id", id).Int64("exp", data.Exp).Msg("Deleting expired session on read")
		if err := s.kv.Delete(ctx, key); err != nil {
			return nil, errors.Wrap(err, "SessionStore.GetSession delete expired")
		}
		return nil, nil
	}
	return &data, nil
}

// DeleteSession removes the session stored under id.
func (s *SessionStore) DeleteSession(ctx context.Context, id string) error {
	return errors.Wrap(s.kv.Delete(ctx, s.sessionKey(id)), "SessionStore.DeleteSession")
}

// SetOTCChallenge persists the challenge for sessionID until its ExpiresAt.
func (s *SessionStore) SetOTCChallenge(ctx context.Context, sessionID string, challenge sessions.OTCChallenge) error {
	value, err := json.Marshal(challenge)
	if err != nil {
		return errors.Wrap(err, "SessionStore.SetOTCChallenge marshal")
	}
	if err := s.kv.Set(ctx, s.otcKey(sessionID), value, s.ttlUntil(challenge.ExpiresAt, time.Second)); err != nil {
		return errors.Wrap(err, "SessionStore.SetOTCChallenge")
	}
	return nil
}

// GetOTCChallenge returns the pending challenge for sessionID, or nil if it is missing or expired.
func (s *SessionStore) GetOTCChallenge(ctx context.Context, sessionID string) (*sessions.OTCChallenge, error) {
	key := s.otcKey(sessionID)
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "SessionStore.GetOTCChallenge")
	}
	if raw == nil {
		return nil, nil
	}

	var challenge sessions.OTCChallenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCorruptRecord, "SessionStore.GetOTCChallenge %s: %v", sessionID, err)
	}

	if s.expired(challenge.ExpiresAt) {
		if err := s.kv.Delete(ctx, key); err != nil {
			return nil, errors.Wrap(err, "SessionStore.GetOTCChallenge delete expired")
		}
		return nil, nil
	}
	return &challenge, nil
}

// IncrementOTCAttempts bumps the attempt counter of the pending challenge and
// returns the updated challenge, or nil if there is none.
func (s *SessionStore) IncrementOTCAttempts(ctx context.Context, sessionID string) (*sessions.OTCChallenge, error) {
	challenge, err := s.GetOTCChallenge(ctx, sessionID)
	if err != nil || challenge == nil {
		return nil, err
	}
	challenge.Attempts++
	if err := s.SetOTCChallenge(ctx, sessionID, *challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

// DeleteOTCChallenge removes the pending challenge for sessionID.
func (s *SessionStore) DeleteOTCChallenge(ctx context.Context, sessionID string) error {
	return errors.Wrap(s.kv.Delete(ctx, s.otcKey(sessionID)), "SessionStore.DeleteOTCChallenge")
}

// Get reads a raw key from the backend.
func (s *SessionStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.kv.Get(ctx, s.keyPrefix+key)
}

// Set writes a raw key to the backend.
func (s *SessionStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.kv.Set(ctx, s.keyPrefix+key, value, ttl)
}

// Delete removes a raw key from the backend.
func (s *SessionStore) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, s.keyPrefix+key)
}

func (s *SessionStore) sessionKey(id string) string {
	return s.keyPrefix + sessionKeyPrefix + id
}

func (s *SessionStore) otcKey(sessionID string) string {
	return s.keyPrefix + otcKeyPrefix + sessionID
}

// ttlUntil returns max(1s, expSeconds - now), or fallback when expSeconds is unset.
func (s *SessionStore) ttlUntil(expSeconds int64, fallback time.Duration) time.Duration {
	if expSeconds <= 0 {
		return fallback
	}
	remaining := expSeconds - s.nowFunc().Unix()
	if remaining < 1 {
		remaining = 1
	}
	return time.Duration(remaining) * time.Second
}

func (s *SessionStore) expired(expSeconds int64) bool {
	return expSeconds*1000 < s.nowFunc().UnixMilli()
}
