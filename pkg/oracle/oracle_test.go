package oracle_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
	"github.com/heshaorg/hesha/pkg/oracle"
)

func TestMockOracleAllows(t *testing.T) {
	phone := domain.MustPhoneNumber("+1234567890")
	require.NoError(t, oracle.MockOracle{}.VerifyOwnership(context.Background(), phone))
}

func TestMockOracleDenies(t *testing.T) {
	phone := domain.MustPhoneNumber("+1234567890")
	err := oracle.MockOracle{Deny: true}.VerifyOwnership(context.Background(), phone)
	require.Error(t, err)
	require.Equal(t, hesherr.VerificationDenied, hesherr.KindOf(err))
}

func TestHTTPOracleAllows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PhoneNumber string `json:"phone_number"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "+1234567890", req.PhoneNumber)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"verified": true})
	}))
	defer srv.Close()

	o := oracle.NewHTTPOracle(srv.URL, 5*time.Second)
	phone := domain.MustPhoneNumber("+1234567890")
	require.NoError(t, o.VerifyOwnership(context.Background(), phone))
}

func TestHTTPOracleDeniesOnFalseVerified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"verified": false, "reason": "otp mismatch"})
	}))
	defer srv.Close()

	o := oracle.NewHTTPOracle(srv.URL, 5*time.Second)
	phone := domain.MustPhoneNumber("+1234567890")
	err := o.VerifyOwnership(context.Background(), phone)
	require.Error(t, err)
	require.Equal(t, hesherr.VerificationDenied, hesherr.KindOf(err))
}

func TestHTTPOracleDeniesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := oracle.NewHTTPOracle(srv.URL, 5*time.Second)
	phone := domain.MustPhoneNumber("+1234567890")
	err := o.VerifyOwnership(context.Background(), phone)
	require.Error(t, err)
	require.Equal(t, hesherr.VerificationDenied, hesherr.KindOf(err))
}
