// Package primitive wraps the raw cryptographic operations shared by every
// Hesha component: Ed25519 sign/verify, SHA-256, HMAC-SHA-256, CSPRNG nonces,
// base64url (no padding) encoding, and constant-time comparison. Every
// function here is pure and safe for concurrent use.
package primitive

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"

	"github.com/heshaorg/hesha/pkg/hesherr"
)

// Sign produces a 64-byte Ed25519 signature over msg using sk.
func Sign(sk ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(sk, msg)
}

// Verify reports whether sig is a valid Ed25519 signature over msg by pk.
// It rejects keys and signatures of the wrong length before delegating to
// ed25519.Verify, which itself rejects non-canonical and small-order points.
func Verify(pk ed25519.PublicKey, msg, sig []byte) bool {
	if len(pk) != ed25519.PublicKeySize {
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pk, msg, sig)
}

// SHA256 returns the 32-byte SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HMACSHA256 returns the 32-byte HMAC-SHA-256 of msg under key.
func HMACSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// RandomBytes returns n bytes of CSPRNG output.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, hesherr.Wrap(hesherr.Internal, err, "reading random bytes")
	}
	return b, nil
}

// B64URLEncode encodes b as base64url with no padding.
func B64URLEncode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// B64URLDecode decodes s as base64url with no padding. A padded input (one
// containing '=') is rejected because RawURLEncoding treats '=' as invalid.
func B64URLDecode(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, hesherr.Wrap(hesherr.MalformedToken, err, "decoding base64url")
	}
	return b, nil
}

// CTEqual performs a constant-time comparison of a and b, short-circuiting
// only on length mismatch (a length check leaks no secret information since
// lengths of MACs/signatures are public by construction).
func CTEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
