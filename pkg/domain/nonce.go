package domain

import (
	"encoding/hex"
	"regexp"

	"github.com/heshaorg/hesha/pkg/primitive"
)

// nonceRe matches exactly 32 lowercase hex characters (128 bits).
var nonceRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Nonce is 128 bits of entropy rendered as 32 lowercase hex characters,
// shared between proxy derivation input and the attestation's "nonce" claim.
type Nonce struct {
	hex string
}

// NewNonce validates s as 32 lowercase hex characters.
func NewNonce(s string) (Nonce, error) {
	if !nonceRe.MatchString(s) {
		return Nonce{}, invalidInput("malformed nonce", "nonce")
	}
	return Nonce{hex: s}, nil
}

// MustNonce is NewNonce but panics on error; for test fixtures.
func MustNonce(s string) Nonce {
	n, err := NewNonce(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the canonical 32-character lowercase hex form.
func (n Nonce) String() string { return n.hex }

// GenerateNonce produces a fresh 128-bit CSPRNG nonce, the issuer-side
// counterpart to NewNonce (which only validates an existing value).
func GenerateNonce() (Nonce, error) {
	b, err := primitive.RandomBytes(16)
	if err != nil {
		return Nonce{}, err
	}
	return Nonce{hex: hex.EncodeToString(b)}, nil
}
