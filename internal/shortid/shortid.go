// Package shortid derives stable, order-independent identifiers from session payloads.
package shortid

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/jrsteele09/portal-session-server/sessions"
)

// DefaultLength is the length of session ids handed out to visitors.
const DefaultLength = 12

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz" + "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

var base = big.NewInt(int64(len(alphabet)))

// Generate returns the first length characters of the base62 encoded SHA-256
// digest of the canonical serialisation of data. Shorter ids are prefixes of
// longer ids for the same payload.
func Generate(data sessions.TokenData, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("shortid: length must be positive, got %d", length)
	}

	canonical := data.Clone()
	canonical.Normalize()
	payload, err := json.Marshal(canonical)
	if err != nil {
		return "", fmt.Errorf("shortid: failed to serialise session: %w", err)
	}

	digest := sha256.Sum256(payload)
	encoded := encodeBase62(digest[:])
	if length > len(encoded) {
		return "", fmt.Errorf("shortid: length %d exceeds digest encoding of %d characters", length, len(encoded))
	}
	return encoded[:length], nil
}

// encodeBase62 encodes b as a big-endian integer, most significant digit first.
func encodeBase62(b []byte) string {
	n := new(big.Int).SetBytes(b)
	if n.Sign() == 0 {
		return string(alphabet[0])
	}

	var digits []byte
	mod := new(big.Int)
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		digits = append(digits, alphabet[mod.Int64()])
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
