// Package issuer implements the HTTP surface of spec.md §4.9/§6: POST
// /attest (validate inputs, invoke the phone-ownership oracle, derive the
// proxy number, build and sign the attestation) and GET
// /.well-known/hesha/pubkey.json.
package issuer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/heshaorg/hesha/pkg/attestation"
	"github.com/heshaorg/hesha/pkg/binding"
	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
	"github.com/heshaorg/hesha/pkg/keydiscovery"
	"github.com/heshaorg/hesha/pkg/oracle"
	"github.com/heshaorg/hesha/pkg/proxynum"
)

// SupportedVersion is the only "version" claim value this issuer will mint
// attestations for; spec.md §9 mandates rejecting unsupported versions on
// issuance (verification is left permissive, see pkg/verifier).
const SupportedVersion = "1.0"

// Handler serves the issuer's HTTP surface.
type Handler struct {
	IssuerDomain string
	IssuerKey    domain.PrivateKey
	Validity     time.Duration
	PubkeyMaxAge time.Duration
	Oracle       oracle.PhoneOwnershipOracle
	KeyID        string
}

type attestRequest struct {
	PhoneNumber string `json:"phone_number"`
	UserPubkey  string `json:"user_pubkey"`
	Scope       string `json:"scope"`
	Version     string `json:"version,omitempty"`
}

type attestResponse struct {
	ProxyNumber string `json:"proxy_number"`
	Attestation string `json:"attestation"`
	ExpiresAt   int64  `json:"expires_at"`
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ServeAttest implements POST /attest.
func (h *Handler) ServeAttest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}

	var req attestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	if req.Version != "" && req.Version != SupportedVersion {
		writeError(w, http.StatusUnprocessableEntity, "invalid_version", "unsupported version")
		return
	}

	phone, err := domain.NewPhoneNumber(req.PhoneNumber)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_phone_number", err.Error())
		return
	}
	userPubkey, err := domain.NewPublicKeyFromB64(req.UserPubkey)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_public_key", err.Error())
		return
	}
	scope, err := domain.NewScope(req.Scope)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_scope", err.Error())
		return
	}

	if err := h.Oracle.VerifyOwnership(r.Context(), phone); err != nil {
		slog.Warn("attest: oracle denied phone ownership", "err", err)
		writeError(w, http.StatusUnauthorized, "verification_failed", "phone ownership could not be verified")
		return
	}

	nonce, err := domain.GenerateNonce()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "nonce generation failed")
		return
	}

	proxy, err := proxynum.Derive(phone, userPubkey, h.IssuerDomain, scope, nonce)
	if err != nil {
		slog.Error("attest: proxy derivation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "proxy derivation failed")
		return
	}

	phoneHash := domain.NewPhoneHash(phone)
	iat := time.Now()
	exp := iat.Add(h.Validity)

	proof := binding.Sign(h.IssuerKey, phoneHash, userPubkey, proxy, iat.Unix())

	claims := attestation.NewClaimSet(attestation.Input{
		IssuerDomain: h.IssuerDomain,
		Subject:      proxy,
		IssuedAt:     iat,
		ExpiresAt:    exp,
		ID:           uuid.NewString(),
		PhoneHash:    phoneHash,
		UserPubkey:   userPubkey,
		Nonce:        nonce,
	}).WithBindingProof(proof)

	token, err := attestation.Build(claims, h.IssuerKey.Ed25519())
	if err != nil {
		slog.Error("attest: signing failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal", "signing failed")
		return
	}

	writeJSON(w, http.StatusOK, attestResponse{
		ProxyNumber: proxy.String(),
		Attestation: token,
		ExpiresAt:   exp.Unix(),
	})
}

// ServePubkey implements GET /.well-known/hesha/pubkey.json.
func (h *Handler) ServePubkey(w http.ResponseWriter, r *http.Request) {
	rec := keydiscovery.IssuerKeyRecord{
		PublicKey: h.IssuerKey.Public().String(),
		Algorithm: "Ed25519",
		KeyID:     h.KeyID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age="+maxAgeSeconds(h.PubkeyMaxAge))
	_ = json.NewEncoder(w).Encode(rec)
}

func maxAgeSeconds(d time.Duration) string {
	secs := int64(d.Seconds())
	if secs <= 0 {
		secs = int64(keydiscovery.DefaultMaxTTL.Seconds())
	}
	return strconv.FormatInt(secs, 10)
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{Error: code, ErrorDescription: description})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// StatusForKind maps a hesherr.Kind to the HTTP status table of spec.md §6,
// for callers (e.g. middleware) that need it outside ServeAttest's direct
// construction above.
func StatusForKind(kind hesherr.Kind) int {
	switch kind {
	case hesherr.InvalidInput:
		return http.StatusUnprocessableEntity
	case hesherr.VerificationDenied:
		return http.StatusUnauthorized
	case hesherr.Internal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
