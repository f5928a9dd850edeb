// Package binding implements the binding proof of spec.md §4.5: an Ed25519
// signature by the issuer's own private key, over a canonical message tying
// the proxy number to the user's public key, the phone hash, and the
// attestation's issuance time, so an attestation cannot be reassembled from
// its parts with a different user key or proxy substituted in.
package binding

import (
	"strconv"
	"strings"

	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
	"github.com/heshaorg/hesha/pkg/primitive"
)

// VersionTag is the only accepted binding-proof version string. A proof
// built against any other tag (e.g. a future "hesha-binding-v3" or a
// downgraded "hesha-binding-v1") is rejected outright.
const VersionTag = "hesha-binding-v2"

// proofPrefix is the literal prefix every binding_proof claim carries, per
// spec.md §3/§4.5.
const proofPrefix = "sig:"

// Message renders the canonical binding message of spec.md §4.5:
//
//	phone_hash | user_pubkey | proxy_number | iat | hesha-binding-v2
//
// iat is the attestation's issued-at time as decimal Unix seconds.
func Message(phoneHash domain.PhoneHash, userPubkey domain.PublicKey, proxy domain.ProxyNumber, issuedAtUnix int64) []byte {
	s := phoneHash.String() + "|" + userPubkey.String() + "|" + proxy.String() + "|" +
		strconv.FormatInt(issuedAtUnix, 10) + "|" + VersionTag
	return []byte(s)
}

// Sign computes binding_proof = "sig:" + b64url(Ed25519-Sign(issuerKey,
// SHA-256(Message(...)))). The outer SHA-256 is part of the wire contract
// and must be reproduced exactly even though Ed25519 already hashes its
// input internally.
func Sign(issuerKey domain.PrivateKey, phoneHash domain.PhoneHash, userPubkey domain.PublicKey, proxy domain.ProxyNumber, issuedAtUnix int64) string {
	digest := primitive.SHA256(Message(phoneHash, userPubkey, proxy, issuedAtUnix))
	sig := primitive.Sign(issuerKey.Ed25519(), digest[:])
	return proofPrefix + primitive.B64URLEncode(sig)
}

// Verify recomputes the canonical message and checks proof against it under
// issuerPubkey. It rejects a missing/wrong prefix, malformed base64url, and
// wrong-length signatures before ever calling into Ed25519 verification.
func Verify(proof string, issuerPubkey domain.PublicKey, phoneHash domain.PhoneHash, userPubkey domain.PublicKey, proxy domain.ProxyNumber, issuedAtUnix int64) error {
	rest, ok := strings.CutPrefix(proof, proofPrefix)
	if !ok {
		return hesherr.New(hesherr.BadBinding, "binding proof missing sig: prefix")
	}
	sig, err := primitive.B64URLDecode(rest)
	if err != nil {
		return hesherr.Wrap(hesherr.BadBinding, err, "decoding binding proof")
	}
	digest := primitive.SHA256(Message(phoneHash, userPubkey, proxy, issuedAtUnix))
	if !primitive.Verify(issuerPubkey.Bytes(), digest[:], sig) {
		return hesherr.New(hesherr.BadBinding, "binding proof does not verify")
	}
	return nil
}
