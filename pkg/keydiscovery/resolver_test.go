package keydiscovery_test

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
	"github.com/heshaorg/hesha/pkg/keydiscovery"
)

func recordFor(t *testing.T, pub ed25519.PublicKey) keydiscovery.IssuerKeyRecord {
	t.Helper()
	pk, err := domain.NewPublicKeyFromBytes(pub)
	require.NoError(t, err)
	return keydiscovery.IssuerKeyRecord{
		PublicKey: pk.String(),
		Algorithm: "Ed25519",
		KeyID:     "k1",
		CreatedAt: "2024-01-01T00:00:00Z",
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	rec := recordFor(t, pub)

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/.well-known/hesha/pubkey.json", r.URL.Path)
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Cache-Control", "public, max-age=120")
		_ = json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	resolver := keydiscovery.New(srv.Client())

	pk1, keyID, err := resolver.Resolve(context.Background(), host)
	require.NoError(t, err)
	require.Equal(t, "k1", keyID)
	require.Equal(t, pub, []byte(pk1.Bytes()))

	_, _, err = resolver.Resolve(context.Background(), host)
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResolveCoalescesConcurrentMisses(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	rec := recordFor(t, pub)

	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		w.Header().Set("Cache-Control", "public, max-age=120")
		_ = json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	resolver := keydiscovery.New(srv.Client())

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _, err := resolver.Resolve(context.Background(), host)
			require.NoError(t, err)
		}()
	}
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestResolveRejectsMalformedRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	resolver := keydiscovery.New(srv.Client())

	_, _, err := resolver.Resolve(context.Background(), host)
	require.Error(t, err)
	require.Equal(t, hesherr.KeyDiscoveryFailed, hesherr.KindOf(err))
}

func TestResolveRejectsServerError(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	resolver := keydiscovery.New(srv.Client())

	_, _, err := resolver.Resolve(context.Background(), host)
	require.Error(t, err)
	// the server error is treated as transient, so it should have been
	// retried up to the backoff's max-retries bound before surfacing.
	require.Greater(t, atomic.LoadInt32(&hits), int32(1))
}

func TestResolveAcceptsMaxAgeAboveCap(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	rec := recordFor(t, pub)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(keydiscovery.DefaultMaxTTL.Seconds())*10))
		_ = json.NewEncoder(w).Encode(rec)
	}))
	defer srv.Close()

	host := strings.TrimPrefix(srv.URL, "http://")
	resolver := keydiscovery.New(srv.Client())

	_, _, err = resolver.Resolve(context.Background(), host)
	require.NoError(t, err)
}
