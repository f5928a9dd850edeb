package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/heshaorg/hesha/internal/issuerconfig"
	"github.com/heshaorg/hesha/pkg/issuer"
	"github.com/heshaorg/hesha/pkg/oracle"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("HESHA_LOG_FORMAT") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := issuerconfig.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	var ownershipOracle oracle.PhoneOwnershipOracle
	switch cfg.OracleMode {
	case issuerconfig.OracleModeHTTP:
		slog.Info("oracle mode: http", "url", cfg.OracleURL)
		ownershipOracle = oracle.NewHTTPOracle(cfg.OracleURL, cfg.OracleTimeout)
	default:
		slog.Info("oracle mode: mock (set HESHA_ORACLE_MODE=http for a real backend)")
		ownershipOracle = oracle.MockOracle{}
	}

	h := &issuer.Handler{
		IssuerDomain: cfg.IssuerDomain,
		IssuerKey:    cfg.IssuerKey,
		Validity:     cfg.AttestationValidity,
		PubkeyMaxAge: cfg.PubkeyCacheMaxAge,
		Oracle:       ownershipOracle,
		KeyID:        cfg.IssuerKey.Public().Fingerprint(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/attest", h.ServeAttest)
	mux.HandleFunc("/.well-known/hesha/pubkey.json", h.ServePubkey)

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("issuer starting",
		"addr", addr,
		"issuer_domain", cfg.IssuerDomain,
		"key_id", h.KeyID,
		"oracle_mode", cfg.OracleMode,
	)

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
