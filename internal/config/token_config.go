package config

import "time"

type TokenConfig interface {
	GetJWTSecret() string
	GetJWTIssuer() string
	GetTokenTTL() time.Duration
}

type Token struct{}

var _ TokenConfig = Token{}

// GetJWTSecret is required; main refuses to start without it.
func (Token) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "")
}

func (Token) GetJWTIssuer() string {
	return GetEnv("JWT_ISSUER", "portal-session-server")
}

func (Token) GetTokenTTL() time.Duration {
	return getDuration("TOKEN_TTL", 15*time.Minute)
}
