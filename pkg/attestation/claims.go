// Package attestation implements the signed-token envelope of spec.md §3/§4.4:
// a three-segment base64url token with a fixed {"alg":"EdDSA","typ":"JWT"}
// header, built on github.com/golang-jwt/jwt/v5's EdDSA signing method the
// same way the teacher's x402 package builds its batch tokens on jwt/v5's
// HMAC signing method.
package attestation

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heshaorg/hesha/pkg/domain"
)

// ClaimSet is the logical Hesha claim set of spec.md §3. It embeds
// jwt.RegisteredClaims so iss/sub/iat/exp/jti ride on jwt/v5's own,
// well-tested numeric-date and string-claim encoding.
type ClaimSet struct {
	jwt.RegisteredClaims
	PhoneHash    string  `json:"phone_hash"`
	UserPubkey   string  `json:"user_pubkey"`
	BindingProof string  `json:"binding_proof"`
	Nonce        string  `json:"nonce"`
	TrustDomain  *string `json:"trust_domain,omitempty"`
	Version      *string `json:"version,omitempty"`
}

// Input groups the values needed to build a fresh ClaimSet; BindingProof is
// filled in by the caller (pkg/binding) after the rest of the claim set is
// known, since the binding proof signs over these very fields.
type Input struct {
	IssuerDomain string
	Subject      domain.ProxyNumber
	IssuedAt     time.Time
	ExpiresAt    time.Time
	ID           string
	PhoneHash    domain.PhoneHash
	UserPubkey   domain.PublicKey
	Nonce        domain.Nonce
	TrustDomain  *string
	Version      *string
}

// NewClaimSet builds a ClaimSet from in, leaving BindingProof empty — the
// caller must set it (see pkg/binding.Sign) before calling Build.
func NewClaimSet(in Input) ClaimSet {
	return ClaimSet{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    in.IssuerDomain,
			Subject:   in.Subject.String(),
			IssuedAt:  jwt.NewNumericDate(in.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(in.ExpiresAt),
			ID:        in.ID,
		},
		PhoneHash:   in.PhoneHash.String(),
		UserPubkey:  in.UserPubkey.String(),
		Nonce:       in.Nonce.String(),
		TrustDomain: in.TrustDomain,
		Version:     in.Version,
	}
}

// WithBindingProof returns a copy of c with BindingProof set.
func (c ClaimSet) WithBindingProof(proof string) ClaimSet {
	c.BindingProof = proof
	return c
}

// IssuedAtTime returns the iat claim as a time.Time, or the zero Time if
// unset.
func (c ClaimSet) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// ExpiresAtTime returns the exp claim as a time.Time, or the zero Time if
// unset.
func (c ClaimSet) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
