// Package verifier implements the end-to-end attestation verification
// pipeline of spec.md §4.6: parse, resolve the issuer key, verify the token
// signature, verify the binding proof, check temporal validity and subject
// match, and return a tagged Verdict rather than a bag of booleans.
package verifier

import (
	"context"
	"time"

	"github.com/heshaorg/hesha/pkg/attestation"
	"github.com/heshaorg/hesha/pkg/binding"
	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
)

// KeyResolver resolves the current signing public key for an issuer domain.
// pkg/keydiscovery.Resolver satisfies this; tests may supply a stub.
type KeyResolver interface {
	Resolve(ctx context.Context, issuerDomain string) (pubkey domain.PublicKey, keyID string, err error)
}

// DefaultClockSkewLeeway is applied to the iat check when Options.ClockSkewLeeway
// is zero, per spec.md §4.6 step 5.
const DefaultClockSkewLeeway = 60 * time.Second

// Options configures a single verification call.
type Options struct {
	// Now is the verifier's clock. Zero means time.Now().
	Now time.Time
	// ClockSkewLeeway bounds how far iat may be in the future. Zero means
	// DefaultClockSkewLeeway.
	ClockSkewLeeway time.Duration
	// ExpectedSubject, if non-empty, requires claims.sub to match exactly.
	ExpectedSubject string
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

func (o Options) leeway() time.Duration {
	if o.ClockSkewLeeway == 0 {
		return DefaultClockSkewLeeway
	}
	return o.ClockSkewLeeway
}

// Info carries the fields of a successfully verified attestation, per
// spec.md §4.6 step 8.
type Info struct {
	Issuer     string
	Subject    string
	UserPubkey domain.PublicKey
	ExpiresAt  time.Time
	KeyID      string
	Version    *string
}

// Verdict is a tagged result: exactly one of Ok or Err is meaningful,
// selected by Outcome.
type Verdict struct {
	Outcome hesherr.Kind
	Info    Info
	Err     error
}

// Ok reports whether the verdict represents a successful verification.
func (v Verdict) Ok() bool { return v.Err == nil }

func ok(info Info) Verdict {
	return Verdict{Info: info}
}

func fail(kind hesherr.Kind, err error) Verdict {
	return Verdict{Outcome: kind, Err: err}
}

// VerifyAttestation runs the eight-step pipeline of spec.md §4.6 against
// tokenString and returns a Verdict. The only suspension point is resolver's
// network call inside key discovery; everything else is pure.
func VerifyAttestation(ctx context.Context, tokenString string, resolver KeyResolver, opts Options) Verdict {
	// Step 1: parse.
	claims, err := attestation.Parse(tokenString)
	if err != nil {
		return fail(hesherr.KindOf(err), err)
	}

	// Step 2: resolve issuer key.
	issuerPub, keyID, err := resolver.Resolve(ctx, claims.Issuer)
	if err != nil {
		return fail(hesherr.KeyDiscoveryFailed, hesherr.Wrap(hesherr.KeyDiscoveryFailed, err, "resolving issuer key"))
	}

	// Step 3: verify token signature.
	if err := attestation.VerifySignature(tokenString, issuerPub.Bytes()); err != nil {
		return fail(hesherr.BadSignature, err)
	}

	// Step 4: reconstruct and verify the binding proof.
	proxy, err := domain.NewProxyNumber(claims.Subject)
	if err != nil {
		return fail(hesherr.MalformedToken, err)
	}
	phoneHash, err := domain.ParsePhoneHash(claims.PhoneHash)
	if err != nil {
		return fail(hesherr.MalformedToken, err)
	}
	userPubkey, err := domain.NewPublicKeyFromB64(claims.UserPubkey)
	if err != nil {
		return fail(hesherr.MalformedToken, err)
	}
	if err := binding.Verify(claims.BindingProof, issuerPub, phoneHash, userPubkey, proxy, claims.IssuedAtTime().Unix()); err != nil {
		return fail(hesherr.BadBinding, err)
	}

	// Step 5: temporal validity.
	now := opts.now()
	if claims.IssuedAtTime().After(now.Add(opts.leeway())) {
		return fail(hesherr.NotYetValid, hesherr.New(hesherr.NotYetValid, "attestation not yet valid"))
	}
	if !claims.ExpiresAtTime().After(now) {
		return fail(hesherr.Expired, hesherr.New(hesherr.Expired, "attestation expired"))
	}

	// Step 6: subject match.
	if opts.ExpectedSubject != "" && claims.Subject != opts.ExpectedSubject {
		return fail(hesherr.SubjectMismatch, hesherr.New(hesherr.SubjectMismatch, "subject does not match expected"))
	}

	// Step 7: claim grammar.
	if _, err := domain.NewNonce(claims.Nonce); err != nil {
		return fail(hesherr.MalformedToken, err)
	}

	// Step 8: verdict.
	return ok(Info{
		Issuer:     claims.Issuer,
		Subject:    claims.Subject,
		UserPubkey: userPubkey,
		ExpiresAt:  claims.ExpiresAtTime(),
		KeyID:      keyID,
		Version:    claims.Version,
	})
}
