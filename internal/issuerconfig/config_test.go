package issuerconfig_test

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heshaorg/hesha/internal/issuerconfig"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HESHA_ISSUER_DOMAIN", "HESHA_ISSUER_PRIVATE_KEY", "HESHA_PORT",
		"HESHA_ATTESTATION_VALIDITY", "HESHA_PUBKEY_CACHE_MAX_AGE",
		"HESHA_ORACLE_MODE", "HESHA_ORACLE_URL", "HESHA_ORACLE_TIMEOUT",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadRequiresIssuerDomain(t *testing.T) {
	clearEnv(t)
	_, err := issuerconfig.Load()
	require.Error(t, err)
}

func TestLoadRequiresPrivateKey(t *testing.T) {
	clearEnv(t)
	os.Setenv("HESHA_ISSUER_DOMAIN", "issuer.example")
	defer os.Unsetenv("HESHA_ISSUER_DOMAIN")

	_, err := issuerconfig.Load()
	require.Error(t, err)
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	clearEnv(t)
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	os.Setenv("HESHA_ISSUER_DOMAIN", "issuer.example")
	os.Setenv("HESHA_ISSUER_PRIVATE_KEY", hex.EncodeToString(priv.Seed()))
	os.Setenv("HESHA_PORT", "9090")
	defer clearEnv(t)

	cfg, err := issuerconfig.Load()
	require.NoError(t, err)
	require.Equal(t, "issuer.example", cfg.IssuerDomain)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, issuerconfig.OracleModeMock, cfg.OracleMode)
}

func TestLoadRequiresOracleURLForHTTPMode(t *testing.T) {
	clearEnv(t)
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	os.Setenv("HESHA_ISSUER_DOMAIN", "issuer.example")
	os.Setenv("HESHA_ISSUER_PRIVATE_KEY", hex.EncodeToString(priv.Seed()))
	os.Setenv("HESHA_ORACLE_MODE", "http")
	defer clearEnv(t)

	_, err = issuerconfig.Load()
	require.Error(t, err)
}
