package sessions

import "github.com/rs/zerolog"

// OTCMethod is the delivery channel of a one-time code.
type OTCMethod string

const (
	OTCMethodSMS   OTCMethod = "sms"
	OTCMethodEmail OTCMethod = "email"
)

// IsValid reports whether m is a supported delivery channel.
func (m OTCMethod) IsValid() bool {
	return m == OTCMethodSMS || m == OTCMethodEmail
}

// OTCChallenge is a pending one-time-code verification scoped to a session.
// Attempts never exceeding MaxAttempts is the caller's responsibility.
type OTCChallenge struct {
	MethodID      string    `json:"methodId"`
	Method        OTCMethod `json:"method"`
	Destination   string    `json:"destination"` // phone number or email address
	Attempts      int       `json:"attempts"`
	MaxAttempts   int       `json:"maxAttempts"`
	ExpiresAt     int64     `json:"expiresAt"` // epoch seconds
	StytchUserID  string    `json:"stytchUserId,omitempty"`
	LastRequestID string    `json:"lastRequestId,omitempty"`
}

// RemainingAttempts returns how many verification attempts are left.
func (c OTCChallenge) RemainingAttempts() int {
	if c.Attempts >= c.MaxAttempts {
		return 0
	}
	return c.MaxAttempts - c.Attempts
}

// MarshalZerologObject logs the challenge without its destination.
func (c OTCChallenge) MarshalZerologObject(e *zerolog.Event) {
	e.Str("method_id", c.MethodID).
		Str("method", string(c.Method)).
		Int("attempts", c.Attempts).
		Int("max_attempts", c.MaxAttempts).
		Int64("expires_at", c.ExpiresAt).
		Str("last_request_id", c.LastRequestID)
}
