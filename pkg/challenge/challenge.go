// Package challenge implements the consent challenge/response flow of
// spec.md §4.8: a service mints a short-lived Challenge bound to a proxy
// number, the wallet signs it with the user's private key, and the service
// verifies the signature plus the full attestation before accepting consent
// exactly once per challenge_nonce.
package challenge

import (
	"strconv"
	"sync"
	"time"

	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
	"github.com/heshaorg/hesha/pkg/primitive"
)

// MaxLifetime is the hard ceiling on expires_at - issued_at, per spec.md §3.
const MaxLifetime = 5 * time.Minute

// DefaultTimestampLeeway bounds how far a wallet's reported timestamp may
// drift from the challenge window, per spec.md §4.8.
const DefaultTimestampLeeway = 30 * time.Second

// State is a Challenge's position in the Open -> {Consumed, Expired,
// Rejected} state machine. Terminal states are sinks.
type State string

const (
	Open     State = "open"
	Consumed State = "consumed"
	Expired  State = "expired"
	Rejected State = "rejected"
)

// Challenge is a service-issued, short-lived consent request bound to one
// proxy number.
type Challenge struct {
	ServiceID      string
	ProxyNumber    domain.ProxyNumber
	ChallengeNonce string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	CallbackURL    string
}

// New builds a Challenge for serviceID/proxy with a fresh CSPRNG nonce and
// an expiry lifetime capped at MaxLifetime.
func New(serviceID string, proxy domain.ProxyNumber, lifetime time.Duration, callbackURL string) (Challenge, error) {
	if lifetime <= 0 || lifetime > MaxLifetime {
		lifetime = MaxLifetime
	}
	nonceBytes, err := primitive.RandomBytes(16)
	if err != nil {
		return Challenge{}, err
	}
	now := time.Now()
	return Challenge{
		ServiceID:      serviceID,
		ProxyNumber:    proxy,
		ChallengeNonce: primitive.B64URLEncode(nonceBytes),
		IssuedAt:       now,
		ExpiresAt:      now.Add(lifetime),
		CallbackURL:    callbackURL,
	}, nil
}

// ResponseMessage renders the canonical bytes the wallet signs:
// utf8(service_id + "|" + challenge_nonce + "|" + timestamp).
func ResponseMessage(serviceID, challengeNonce string, timestampUnix int64) []byte {
	return []byte(serviceID + "|" + challengeNonce + "|" + strconv.FormatInt(timestampUnix, 10))
}

// Sign produces the wallet-side consent signature over c, using the private
// key whose public counterpart is expected to match the presenting
// attestation's user_pubkey.
func Sign(userKey domain.PrivateKey, c Challenge, timestampUnix int64) string {
	sig := primitive.Sign(userKey.Ed25519(), ResponseMessage(c.ServiceID, c.ChallengeNonce, timestampUnix))
	return primitive.B64URLEncode(sig)
}

// Response is what a wallet returns to a service after signing a Challenge.
type Response struct {
	Attestation string
	Signature   string
	Timestamp   int64
}

// Tracker guards the one-shot Open->Consumed transition across concurrent
// callback delivery: a given challenge_nonce can be consumed at most once.
type Tracker struct {
	mu       sync.Mutex
	consumed map[string]State
}

// NewTracker builds an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{consumed: make(map[string]State)}
}

// StateOf returns the recorded terminal state for nonce, or "" if it has
// not yet been consumed or rejected.
func (t *Tracker) StateOf(nonce string) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumed[nonce]
}

// Verify checks c is still live, resp.Timestamp is within the allowed
// window, resp.Signature verifies under userPubkey, and c.ChallengeNonce has
// not already been consumed — atomically claiming it if every check passes.
// verifyAttestation is the caller's hook to run the full C6 verification
// with expected_subject == c.ProxyNumber; Verify does not import pkg/verifier
// itself to avoid a dependency cycle risk as the two packages evolve.
func (t *Tracker) Verify(c Challenge, resp Response, userPubkey domain.PublicKey, now time.Time, verifyAttestation func() error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if state := t.consumed[c.ChallengeNonce]; state != "" {
		if state == Consumed {
			return hesherr.New(hesherr.ChallengeAlreadyConsumed, "challenge already consumed")
		}
		return hesherr.New(hesherr.ChallengeExpired, "challenge already in terminal state "+string(state))
	}

	if now.After(c.ExpiresAt) {
		t.consumed[c.ChallengeNonce] = Expired
		return hesherr.New(hesherr.ChallengeExpired, "challenge expired")
	}

	windowStart := c.IssuedAt.Add(-DefaultTimestampLeeway)
	windowEnd := c.ExpiresAt.Add(DefaultTimestampLeeway)
	ts := time.Unix(resp.Timestamp, 0)
	if ts.Before(windowStart) || ts.After(windowEnd) {
		t.consumed[c.ChallengeNonce] = Rejected
		return hesherr.New(hesherr.ChallengeExpired, "response timestamp outside allowed window")
	}

	sig, err := primitive.B64URLDecode(resp.Signature)
	if err != nil {
		t.consumed[c.ChallengeNonce] = Rejected
		return hesherr.Wrap(hesherr.BadSignature, err, "decoding challenge response signature")
	}
	msg := ResponseMessage(c.ServiceID, c.ChallengeNonce, resp.Timestamp)
	if !primitive.Verify(userPubkey.Bytes(), msg, sig) {
		t.consumed[c.ChallengeNonce] = Rejected
		return hesherr.New(hesherr.BadSignature, "challenge response signature invalid")
	}

	if err := verifyAttestation(); err != nil {
		t.consumed[c.ChallengeNonce] = Rejected
		return err
	}

	t.consumed[c.ChallengeNonce] = Consumed
	return nil
}
