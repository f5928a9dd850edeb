package attestation

import (
	"crypto/ed25519"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heshaorg/hesha/pkg/hesherr"
)

// MaxTokenBytes bounds token size to guard against DoS, per spec.md §4.4.
const MaxTokenBytes = 8 * 1024

// maxPlausibleUnixSeconds bounds iat/exp sanity-checking to "before year
// 2100" — generous for a 365-day validity window issued at any point in
// this implementation's realistic lifetime, per spec.md §4.4's "integer
// claims outside plausible Unix-second range" rejection rule.
const maxPlausibleUnixSeconds = 4102444800

var validMethods = []string{"EdDSA"}

// Build signs claims with issuerKey and returns the three-segment token
// "h.p.s". The header is always the fixed {"alg":"EdDSA","typ":"JWT"}: jwt/v5
// sets alg from the signing method and typ to "JWT", and encoding/json sorts
// map keys alphabetically ("alg" < "typ"), producing exactly the byte
// sequence spec.md §3 fixes.
func Build(claims ClaimSet, issuerKey ed25519.PrivateKey) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(issuerKey)
	if err != nil {
		return "", hesherr.Wrap(hesherr.Internal, err, "signing attestation token")
	}
	return signed, nil
}

// Parse splits tokenString into its three segments, decodes the claim set,
// and checks every mandatory field from spec.md §3 is present and
// well-typed. It does NOT verify the signature — callers combine Parse with
// VerifySignature once the issuer's public key is known (spec.md §4.6 steps
// 1-3), so the two can be tested and reasoned about independently.
func Parse(tokenString string) (ClaimSet, error) {
	if len(tokenString) > MaxTokenBytes {
		return ClaimSet{}, hesherr.New(hesherr.MalformedToken, "token exceeds maximum size")
	}
	if strings.Count(tokenString, ".") != 2 {
		return ClaimSet{}, hesherr.New(hesherr.MalformedToken, "token does not have exactly three segments")
	}

	parser := jwt.NewParser(jwt.WithValidMethods(validMethods), jwt.WithoutClaimsValidation())
	var claims ClaimSet
	token, _, err := parser.ParseUnverified(tokenString, &claims)
	if err != nil {
		return ClaimSet{}, hesherr.Wrap(hesherr.MalformedToken, err, "parsing attestation token")
	}
	if alg, _ := token.Header["alg"].(string); alg != "EdDSA" {
		return ClaimSet{}, hesherr.New(hesherr.MalformedToken, "unsupported alg").WithField("alg")
	}
	if typ, _ := token.Header["typ"].(string); typ != "JWT" {
		return ClaimSet{}, hesherr.New(hesherr.MalformedToken, "unsupported typ").WithField("typ")
	}

	if err := validateRequiredClaims(claims); err != nil {
		return ClaimSet{}, err
	}
	return claims, nil
}

// VerifySignature recomputes the signing input from the literal header and
// payload segments of tokenString (jwt/v5 never re-serializes them) and
// checks the Ed25519 signature against issuerPub.
func VerifySignature(tokenString string, issuerPub ed25519.PublicKey) error {
	if len(tokenString) > MaxTokenBytes {
		return hesherr.New(hesherr.MalformedToken, "token exceeds maximum size")
	}
	parser := jwt.NewParser(jwt.WithValidMethods(validMethods), jwt.WithoutClaimsValidation())
	var claims ClaimSet
	_, err := parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return issuerPub, nil
	})
	if err != nil {
		return hesherr.Wrap(hesherr.BadSignature, err, "verifying attestation signature")
	}
	return nil
}

func validateRequiredClaims(c ClaimSet) error {
	type fieldCheck struct {
		name  string
		valid bool
	}
	checks := []fieldCheck{
		{"iss", c.Issuer != ""},
		{"sub", c.Subject != ""},
		{"jti", c.ID != ""},
		{"phone_hash", c.PhoneHash != ""},
		{"user_pubkey", c.UserPubkey != ""},
		{"binding_proof", c.BindingProof != ""},
		{"nonce", c.Nonce != ""},
		{"iat", c.IssuedAt != nil},
		{"exp", c.ExpiresAt != nil},
	}
	for _, chk := range checks {
		if !chk.valid {
			return hesherr.New(hesherr.MalformedToken, "missing required claim").WithField(chk.name)
		}
	}
	if sec := c.IssuedAt.Unix(); sec <= 0 || sec >= maxPlausibleUnixSeconds {
		return hesherr.New(hesherr.MalformedToken, "iat outside plausible range").WithField("iat")
	}
	if sec := c.ExpiresAt.Unix(); sec <= 0 || sec >= maxPlausibleUnixSeconds {
		return hesherr.New(hesherr.MalformedToken, "exp outside plausible range").WithField("exp")
	}
	return nil
}
