package token

import (
	"errors"
	"fmt"

	"github.com/jrsteele09/portal-session-server/sessions"
)

// ErrorKind enumerates token-level failure modes.
type ErrorKind string

// SESSION_TOKEN_CREATION_FAILED and INVALID_SESSION_FORMAT are not produced by
// Service; they are part of the shared taxonomy for callers that wrap it.
const (
	KindNotInitialized             ErrorKind = "NOT_INITIALIZED"
	KindInitializationFailed       ErrorKind = "INITIALIZATION_FAILED"
	KindInvalidSessionData         ErrorKind = "INVALID_SESSION_DATA"
	KindSessionTokenCreationFailed ErrorKind = "SESSION_TOKEN_CREATION_FAILED"
	KindJWTCreationFailed          ErrorKind = "JWT_CREATION_FAILED"
	KindInvalidTokenFormat         ErrorKind = "INVALID_TOKEN_FORMAT"
	KindTokenSignatureInvalid      ErrorKind = "TOKEN_SIGNATURE_INVALID"
	KindTokenExpired               ErrorKind = "TOKEN_EXPIRED"
	KindPayloadValidationFailed    ErrorKind = "PAYLOAD_VALIDATION_FAILED"
	KindMissingRequiredClaims      ErrorKind = "MISSING_REQUIRED_CLAIMS"
	KindInvalidClaimsFormat        ErrorKind = "INVALID_CLAIMS_FORMAT"
	KindSessionConversionFailed    ErrorKind = "SESSION_CONVERSION_FAILED"
	KindInvalidSessionFormat       ErrorKind = "INVALID_SESSION_FORMAT"
	KindUnknown                    ErrorKind = "UNKNOWN_AUTH_ERROR"
)

// AuthError is returned by every Service operation that fails.
type AuthError struct {
	Kind             ErrorKind
	Message          string
	ValidationErrors sessions.ValidationErrors // set for *_VALIDATION_FAILED, *_CONVERSION_FAILED and INVALID_SESSION_DATA
	Err              error
}

func newAuthError(kind ErrorKind, message string, err error) *AuthError {
	authErr := &AuthError{Kind: kind, Message: message, Err: err}
	var verrs sessions.ValidationErrors
	if errors.As(err, &verrs) {
		authErr.ValidationErrors = verrs
	}
	return authErr
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any AuthError of the same kind, so the sentinels below work with errors.Is.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotInitialized          = &AuthError{Kind: KindNotInitialized}
	ErrInitializationFailed    = &AuthError{Kind: KindInitializationFailed}
	ErrInvalidSessionData      = &AuthError{Kind: KindInvalidSessionData}
	ErrJWTCreationFailed       = &AuthError{Kind: KindJWTCreationFailed}
	ErrInvalidTokenFormat      = &AuthError{Kind: KindInvalidTokenFormat}
	ErrTokenSignatureInvalid   = &AuthError{Kind: KindTokenSignatureInvalid}
	ErrTokenExpired            = &AuthError{Kind: KindTokenExpired}
	ErrPayloadValidationFailed = &AuthError{Kind: KindPayloadValidationFailed}
	ErrMissingRequiredClaims   = &AuthError{Kind: KindMissingRequiredClaims}
	ErrInvalidClaimsFormat     = &AuthError{Kind: KindInvalidClaimsFormat}
	ErrSessionConversionFailed = &AuthError{Kind: KindSessionConversionFailed}

	ErrSessionTokenCreationFailed = &AuthError{Kind: KindSessionTokenCreationFailed}
	ErrInvalidSessionFormat       = &AuthError{Kind: KindInvalidSessionFormat}
)

// KindOf returns the kind of the first AuthError in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}
