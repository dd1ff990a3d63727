package config

import "time"

type OTCConfig interface {
	GetOTCMaxAttempts() int
	GetOTCTTL() time.Duration
	GetOTCRateLimit() int
	GetOTCFixedCode() string
}

type OTC struct{}

var _ OTCConfig = OTC{}

func (OTC) GetOTCMaxAttempts() int {
	return getInt("OTC_MAX_ATTEMPTS", 5)
}

func (OTC) GetOTCTTL() time.Duration {
	return getDuration("OTC_TTL", 10*time.Minute)
}

// GetOTCRateLimit is the number of OTC requests allowed per client IP per minute.
func (OTC) GetOTCRateLimit() int {
	return getInt("RATE_LIMIT_OTC", 10)
}

// GetOTCFixedCode enables the fixed-code provider outside production.
func (OTC) GetOTCFixedCode() string {
	return GetEnv("OTC_FIXED_CODE", "")
}
