package otc

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/pkg/errors"
)

// FixedCodeProvider accepts a single configured code for every challenge. It
// sends nothing and is meant for local and test deployments.
type FixedCodeProvider struct {
	code string

	mu    sync.Mutex
	users map[string]string // methodID -> user id
}

var _ Provider = (*FixedCodeProvider)(nil)

func NewFixedCodeProvider(code string) *FixedCodeProvider {
	return &FixedCodeProvider{code: code, users: map[string]string{}}
}

func (p *FixedCodeProvider) SendCode(_ context.Context, method sessions.OTCMethod, _ string) (StartResult, error) {
	if !method.IsValid() {
		return StartResult{}, ErrInvalidMethod
	}
	methodID := string(method) + "-" + uuid.NewString()
	userID := "user-test-" + uuid.NewString()

	p.mu.Lock()
	p.users[methodID] = userID
	p.mu.Unlock()

	return StartResult{MethodID: methodID, StytchUserID: userID}, nil
}

func (p *FixedCodeProvider) VerifyCode(_ context.Context, methodID, code string) (string, error) {
	p.mu.Lock()
	userID, ok := p.users[methodID]
	p.mu.Unlock()
	if !ok {
		return "", errors.Wrapf(ErrInvalidCode, "unknown method %s", methodID)
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(p.code)) != 1 {
		return "", ErrInvalidCode
	}
	return userID, nil
}
