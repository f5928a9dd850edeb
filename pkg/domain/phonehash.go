package domain

import (
	"encoding/hex"
	"regexp"

	"github.com/heshaorg/hesha/pkg/primitive"
)

const phoneHashPrefix = "sha256:"

// phoneHashRe matches the literal "sha256:" prefix followed by 64 lowercase
// hex characters.
var phoneHashRe = regexp.MustCompile(`^sha256:[0-9a-f]{64}$`)

// PhoneHash is the one-way commitment to a real phone number: the literal
// prefix "sha256:" followed by hex(SHA-256(normalized phone)).
type PhoneHash struct {
	canonical string
}

// NewPhoneHash computes the PhoneHash of phone.
func NewPhoneHash(phone PhoneNumber) PhoneHash {
	sum := primitive.SHA256([]byte(phone.Normalized()))
	return PhoneHash{canonical: phoneHashPrefix + hex.EncodeToString(sum[:])}
}

// ParsePhoneHash validates s against the PhoneHash grammar.
func ParsePhoneHash(s string) (PhoneHash, error) {
	if !phoneHashRe.MatchString(s) {
		return PhoneHash{}, invalidInput("malformed phone hash", "phone_hash")
	}
	return PhoneHash{canonical: s}, nil
}

// String returns the canonical "sha256:<hex>" form.
func (h PhoneHash) String() string { return h.canonical }

// Equal reports whether two PhoneHash values are identical. Phone hashes
// are not secret (they are one-way commitments carried in attestations), so
// a plain comparison is appropriate; no constant-time requirement applies.
func (h PhoneHash) Equal(o PhoneHash) bool { return h.canonical == o.canonical }
