// Package issuerconfig loads the issuer daemon's configuration from
// environment variables, the same way the pack's gateway config package
// does: godotenv for local development, plain os.LookupEnv in production.
package issuerconfig

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/heshaorg/hesha/pkg/domain"
)

// OracleMode selects which PhoneOwnershipOracle implementation cmd/issuerd
// wires up.
type OracleMode string

const (
	OracleModeMock OracleMode = "mock"
	OracleModeHTTP OracleMode = "http"
)

// Config holds all issuer daemon configuration.
type Config struct {
	// IssuerDomain is the host published in every attestation's iss claim
	// and served at /.well-known/hesha/pubkey.json.
	IssuerDomain string

	// IssuerKey is the Ed25519 signing key for attestations and binding
	// proofs. Never logged.
	IssuerKey domain.PrivateKey

	// Port is the HTTP listen port.
	Port int

	// AttestationValidity is exp - iat for freshly issued attestations.
	AttestationValidity time.Duration

	// PubkeyCacheMaxAge is advertised via Cache-Control on the
	// well-known key endpoint.
	PubkeyCacheMaxAge time.Duration

	// OracleMode selects mock or http-backed phone ownership verification.
	OracleMode OracleMode

	// OracleURL is the HTTP oracle endpoint; required when OracleMode is
	// OracleModeHTTP.
	OracleURL string

	// OracleTimeout bounds a single oracle call.
	OracleTimeout time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded if present (dev convenience); production
// deployments rely on real environment variables instead.
func Load() (*Config, error) {
	_ = godotenv.Load()

	domainName := getEnv("HESHA_ISSUER_DOMAIN", "")
	if domainName == "" {
		return nil, fmt.Errorf("HESHA_ISSUER_DOMAIN env var is required")
	}

	seedHex := getEnv("HESHA_ISSUER_PRIVATE_KEY", "")
	if seedHex == "" {
		return nil, fmt.Errorf("HESHA_ISSUER_PRIVATE_KEY env var is required (32-byte hex seed)")
	}
	issuerKey, err := parseSeedHex(seedHex)
	if err != nil {
		return nil, fmt.Errorf("HESHA_ISSUER_PRIVATE_KEY: %w", err)
	}

	cfg := &Config{
		IssuerDomain:         domainName,
		IssuerKey:            issuerKey,
		Port:                 getEnvInt("HESHA_PORT", 8443),
		AttestationValidity:  time.Duration(getEnvInt("HESHA_ATTESTATION_VALIDITY", 365*24)) * time.Hour,
		PubkeyCacheMaxAge:    time.Duration(getEnvInt("HESHA_PUBKEY_CACHE_MAX_AGE", 3600)) * time.Second,
		OracleMode:           OracleMode(getEnv("HESHA_ORACLE_MODE", string(OracleModeMock))),
		OracleURL:            getEnv("HESHA_ORACLE_URL", ""),
		OracleTimeout:        time.Duration(getEnvInt("HESHA_ORACLE_TIMEOUT", 10)) * time.Second,
	}

	if cfg.OracleMode == OracleModeHTTP && cfg.OracleURL == "" {
		return nil, fmt.Errorf("HESHA_ORACLE_URL env var is required when HESHA_ORACLE_MODE=http")
	}
	if cfg.OracleMode != OracleModeMock && cfg.OracleMode != OracleModeHTTP {
		return nil, fmt.Errorf("HESHA_ORACLE_MODE must be %q or %q, got %q", OracleModeMock, OracleModeHTTP, cfg.OracleMode)
	}

	return cfg, nil
}

func parseSeedHex(s string) (domain.PrivateKey, error) {
	seed, err := hex.DecodeString(s)
	if err != nil {
		return domain.PrivateKey{}, fmt.Errorf("must be valid hex: %w", err)
	}
	return domain.NewPrivateKeyFromSeed(seed)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
