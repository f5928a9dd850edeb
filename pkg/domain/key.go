package domain

import (
	"crypto/ed25519"

	"github.com/heshaorg/hesha/pkg/primitive"
)

// PublicKey is a validated Ed25519 public key, canonically represented as
// base64url (no padding) wherever it appears in claims or wire formats.
type PublicKey struct {
	raw ed25519.PublicKey
	b64 string
}

// NewPublicKeyFromB64 decodes s as base64url and validates it as a usable
// Ed25519 point: exactly 32 bytes, not all-zero.
func NewPublicKeyFromB64(s string) (PublicKey, error) {
	raw, err := primitive.B64URLDecode(s)
	if err != nil {
		return PublicKey{}, invalidInput("malformed public key encoding", "user_pubkey")
	}
	return NewPublicKeyFromBytes(raw)
}

// NewPublicKeyFromBytes validates raw as a 32-byte, non-all-zero Ed25519
// public key.
func NewPublicKeyFromBytes(raw []byte) (PublicKey, error) {
	if len(raw) != ed25519.PublicKeySize {
		return PublicKey{}, invalidInput("public key must be 32 bytes", "user_pubkey")
	}
	if isAllZero(raw) {
		return PublicKey{}, invalidInput("public key is all-zero", "user_pubkey")
	}
	cp := make([]byte, ed25519.PublicKeySize)
	copy(cp, raw)
	return PublicKey{raw: cp, b64: primitive.B64URLEncode(cp)}, nil
}

// MustPublicKeyFromB64 is NewPublicKeyFromB64 but panics on error; for test
// fixtures.
func MustPublicKeyFromB64(s string) PublicKey {
	pk, err := NewPublicKeyFromB64(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the canonical base64url (no padding) encoding.
func (k PublicKey) String() string { return k.b64 }

// Bytes returns the raw 32-byte Ed25519 point. Callers must not mutate the
// returned slice.
func (k PublicKey) Bytes() ed25519.PublicKey { return k.raw }

// Fingerprint returns the first 16 hex characters of SHA-256(raw key bytes)
// — a log-safe identifier, never part of the wire protocol.
func (k PublicKey) Fingerprint() string {
	sum := primitive.SHA256(k.raw)
	const n = 8 // bytes -> 16 hex chars
	return hexPrefix(sum[:], n)
}

func isAllZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

func hexPrefix(b []byte, n int) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, n*2)
	for i := 0; i < n && i < len(b); i++ {
		out = append(out, hexdigits[b[i]>>4], hexdigits[b[i]&0xf])
	}
	return string(out)
}

// PrivateKey is an Ed25519 private key (32-byte seed form). It is never
// serialized over the wire and must never be logged.
type PrivateKey struct {
	raw ed25519.PrivateKey
}

// NewPrivateKeyFromSeed builds a PrivateKey from a 32-byte seed.
func NewPrivateKeyFromSeed(seed []byte) (PrivateKey, error) {
	if len(seed) != ed25519.SeedSize {
		return PrivateKey{}, invalidInput("private key seed must be 32 bytes", "private_key")
	}
	return PrivateKey{raw: ed25519.NewKeyFromSeed(seed)}, nil
}

// GeneratePrivateKey creates a fresh random Ed25519 keypair and returns the
// private key half; Public derives the corresponding PublicKey.
func GeneratePrivateKey() (PrivateKey, error) {
	seed, err := primitive.RandomBytes(ed25519.SeedSize)
	if err != nil {
		return PrivateKey{}, err
	}
	return NewPrivateKeyFromSeed(seed)
}

// Ed25519 returns the raw key in the form crypto/ed25519 (and jwt/v5's
// EdDSA signing method) expects.
func (k PrivateKey) Ed25519() ed25519.PrivateKey { return k.raw }

// Public derives the PublicKey corresponding to k.
func (k PrivateKey) Public() PublicKey {
	pub := k.raw.Public().(ed25519.PublicKey)
	pk, _ := NewPublicKeyFromBytes(pub) // a derived key is always well-formed
	return pk
}

// Seed returns the 32-byte seed. Never log or transmit this value.
func (k PrivateKey) Seed() []byte { return k.raw.Seed() }
