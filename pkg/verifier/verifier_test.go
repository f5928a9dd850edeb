package verifier_test

import (
	"context"
	"crypto/ed25519"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heshaorg/hesha/pkg/attestation"
	"github.com/heshaorg/hesha/pkg/binding"
	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
	"github.com/heshaorg/hesha/pkg/primitive"
	"github.com/heshaorg/hesha/pkg/proxynum"
	"github.com/heshaorg/hesha/pkg/verifier"
)

type stubResolver struct {
	pub   domain.PublicKey
	keyID string
	err   error
}

func (s stubResolver) Resolve(context.Context, string) (domain.PublicKey, string, error) {
	return s.pub, s.keyID, s.err
}

type fixture struct {
	token     string
	issuerPub domain.PublicKey
	proxy     domain.ProxyNumber
	iat       time.Time
	exp       time.Time
}

func build(t *testing.T) fixture {
	t.Helper()
	issuerPub, issuerPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	issuerKey, err := domain.NewPrivateKeyFromSeed(issuerPriv.Seed())
	require.NoError(t, err)

	phone := domain.MustPhoneNumber("+1234567890")
	userKey, err := domain.GeneratePrivateKey()
	require.NoError(t, err)
	scope := domain.MustScope("1")
	nonce, err := domain.GenerateNonce()
	require.NoError(t, err)

	proxy, err := proxynum.Derive(phone, userKey.Public(), "issuer.example", scope, nonce)
	require.NoError(t, err)

	iat := time.Unix(1700000000, 0).UTC()
	exp := iat.Add(365 * 24 * time.Hour)
	phoneHash := domain.NewPhoneHash(phone)

	proof := binding.Sign(issuerKey, phoneHash, userKey.Public(), proxy, iat.Unix())

	claims := attestation.NewClaimSet(attestation.Input{
		IssuerDomain: "issuer.example",
		Subject:      proxy,
		IssuedAt:     iat,
		ExpiresAt:    exp,
		ID:           "11111111-1111-1111-1111-111111111111",
		PhoneHash:    phoneHash,
		UserPubkey:   userKey.Public(),
		Nonce:        nonce,
	}).WithBindingProof(proof)

	tok, err := attestation.Build(claims, issuerKey.Ed25519())
	require.NoError(t, err)

	pub, err := domain.NewPublicKeyFromBytes(issuerPub)
	require.NoError(t, err)

	return fixture{token: tok, issuerPub: pub, proxy: proxy, iat: iat, exp: exp}
}

func TestVerifyAttestationOk(t *testing.T) {
	fx := build(t)
	resolver := stubResolver{pub: fx.issuerPub, keyID: "k1"}

	v := verifier.VerifyAttestation(context.Background(), fx.token, resolver, verifier.Options{
		Now: fx.iat.Add(time.Minute),
	})
	require.True(t, v.Ok())
	require.Equal(t, fx.proxy.String(), v.Info.Subject)
	require.Equal(t, "k1", v.Info.KeyID)
}

func TestVerifyAttestationRejectsTamperedPayload(t *testing.T) {
	fx := build(t)
	resolver := stubResolver{pub: fx.issuerPub}

	parts := strings.Split(fx.token, ".")
	payload, err := primitive.B64URLDecode(parts[1])
	require.NoError(t, err)
	// Change a claim value (the jti) while keeping the payload valid JSON, so
	// the token still parses and only the signature check can reject it.
	mutated := strings.Replace(string(payload), `"jti":"11111111-`, `"jti":"21111111-`, 1)
	require.NotEqual(t, string(payload), mutated)
	tampered := parts[0] + "." + primitive.B64URLEncode([]byte(mutated)) + "." + parts[2]

	v := verifier.VerifyAttestation(context.Background(), tampered, resolver, verifier.Options{Now: fx.iat.Add(time.Minute)})
	require.False(t, v.Ok())
	require.Equal(t, hesherr.BadSignature, hesherr.KindOf(v.Err))
}

func TestVerifyAttestationRejectsExpired(t *testing.T) {
	fx := build(t)
	resolver := stubResolver{pub: fx.issuerPub}

	v := verifier.VerifyAttestation(context.Background(), fx.token, resolver, verifier.Options{
		Now: fx.exp.Add(time.Hour),
	})
	require.False(t, v.Ok())
	require.Equal(t, hesherr.Expired, hesherr.KindOf(v.Err))
}

func TestVerifyAttestationRejectsSubjectMismatch(t *testing.T) {
	fx := build(t)
	resolver := stubResolver{pub: fx.issuerPub}

	v := verifier.VerifyAttestation(context.Background(), fx.token, resolver, verifier.Options{
		Now:             fx.iat.Add(time.Minute),
		ExpectedSubject: "+19990000000",
	})
	require.False(t, v.Ok())
	require.Equal(t, hesherr.SubjectMismatch, hesherr.KindOf(v.Err))
}

func TestVerifyAttestationRejectsKeyDiscoveryFailure(t *testing.T) {
	fx := build(t)
	resolver := stubResolver{err: hesherr.New(hesherr.KeyDiscoveryFailed, "boom")}

	v := verifier.VerifyAttestation(context.Background(), fx.token, resolver, verifier.Options{Now: fx.iat.Add(time.Minute)})
	require.False(t, v.Ok())
	require.Equal(t, hesherr.KeyDiscoveryFailed, hesherr.KindOf(v.Err))
}
