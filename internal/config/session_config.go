package config

import "time"

type SessionConfig interface {
	GetSessionTTL() time.Duration
	GetBrandingFile() string
	GetActivationSecret() string
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetSessionTTL() time.Duration {
	return getDuration("SESSION_TTL", 30*24*time.Hour)
}

// GetBrandingFile is a JSON file mapping org ids to branding. Empty disables branding.
func (Session) GetBrandingFile() string {
	return GetEnv("BRANDING_FILE", "")
}

// GetActivationSecret guards session activation. Empty leaves the route open.
func (Session) GetActivationSecret() string {
	return GetEnv("ACTIVATION_SECRET", "")
}
