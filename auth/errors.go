package auth

import "fmt"

// SessionErrorCode identifies an orchestration failure the HTTP layer maps to a 4xx.
type SessionErrorCode string

const (
	CodeNoSessionFound      SessionErrorCode = "NO_SESSION_FOUND"
	CodeSessionExpired      SessionErrorCode = "SESSION_EXPIRED"
	CodeInvalidSessionType  SessionErrorCode = "INVALID_SESSION_TYPE"
	CodeSessionInErrorState SessionErrorCode = "SESSION_IN_ERROR_STATE"
)

// SessionError is returned by SessionService when a session is missing, expired,
// malformed or in the error state.
type SessionError struct {
	Code    SessionErrorCode
	Message string
	Err     error
}

func newSessionError(code SessionErrorCode, message string, err error) *SessionError {
	return &SessionError{Code: code, Message: message, Err: err}
}

func (e *SessionError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SessionError) Unwrap() error { return e.Err }

// Is matches any SessionError with the same code.
func (e *SessionError) Is(target error) bool {
	t, ok := target.(*SessionError)
	return ok && t.Code == e.Code
}

var (
	ErrNoSessionFound      = &SessionError{Code: CodeNoSessionFound}
	ErrSessionExpired      = &SessionError{Code: CodeSessionExpired}
	ErrInvalidSessionType  = &SessionError{Code: CodeInvalidSessionType}
	ErrSessionInErrorState = &SessionError{Code: CodeSessionInErrorState}
)
