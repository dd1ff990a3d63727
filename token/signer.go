package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer signs claims and supplies the key used to verify them.
type Signer interface {
	// Sign creates a signed JWT from claims
	Sign(claims jwt.Claims) (string, error)

	// GetVerificationKey is a jwt.Keyfunc returning the key for a parsed token
	GetVerificationKey(token *jwt.Token) (any, error)

	// GetSigningMethod returns the JWT signing method used
	GetSigningMethod() jwt.SigningMethod
}

// HMACSigner implements Signer using symmetric HMAC-SHA256
type HMACSigner struct {
	secret []byte
}

var _ Signer = (*HMACSigner)(nil)

// NewHMACSigner creates a new HMAC signer with the given secret
func NewHMACSigner(secret string) *HMACSigner {
	return &HMACSigner{
		secret: []byte(secret),
	}
}

func (h *HMACSigner) Sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(h.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with HMAC")
	}
	return signedToken, nil
}

func (h *HMACSigner) GetVerificationKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return h.secret, nil
}

func (h *HMACSigner) GetSigningMethod() jwt.SigningMethod {
	return jwt.SigningMethodHS256
}
