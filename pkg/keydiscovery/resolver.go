// Package keydiscovery implements the issuer key-discovery flow of
// spec.md §4.7: fetch https://{domain}/.well-known/hesha/pubkey.json over
// TLS, cache it with a TTL derived from Cache-Control, coalesce concurrent
// misses for the same domain with a single-flight primitive, and retry
// transient network failures with jittered exponential backoff before
// surfacing KeyDiscoveryFailed.
package keydiscovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
)

// DefaultMaxTTL is the hard cap on cache lifetime regardless of what a
// server's Cache-Control header requests (Open Question (b): spec.md §9
// suggests 1 hour via example and states no hard ceiling; we adopt it as
// the cap).
const DefaultMaxTTL = time.Hour

// DefaultTTL is used when a server omits Cache-Control max-age entirely; it
// equals the DefaultMaxTTL cap.
const DefaultTTL = DefaultMaxTTL

// StaleGrace bounds how long an expired cache entry may still be served
// when a refetch fails, per spec.md §4.7.
const StaleGrace = 5 * time.Minute

// FetchTimeout bounds a single HTTPS fetch, per spec.md §5's suggested
// 5-second discovery timeout.
const FetchTimeout = 5 * time.Second

const maxRetries = 3

// IssuerKeyRecord is the decoded wire form of spec.md §3's IssuerKeyRecord.
type IssuerKeyRecord struct {
	PublicKey string `json:"public_key"`
	Algorithm string `json:"algorithm"`
	KeyID     string `json:"key_id"`
	CreatedAt string `json:"created_at"`
}

type cacheEntry struct {
	pubkey    domain.PublicKey
	keyID     string
	expiresAt time.Time
}

// Resolver resolves and caches issuer public keys. The zero value is not
// usable; construct with New.
type Resolver struct {
	client *http.Client
	group  singleflight.Group

	mu    sync.Mutex
	cache map[string]cacheEntry

	// allowInsecure permits plain HTTP for localhost/test hosts.
	allowInsecure func(host string) bool
}

// New builds a Resolver using client for HTTP(S) fetches. A nil client
// defaults to one with FetchTimeout.
func New(client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: FetchTimeout}
	}
	return &Resolver{
		client:        client,
		cache:         make(map[string]cacheEntry),
		allowInsecure: isLocalhost,
	}
}

func isLocalhost(host string) bool {
	h := host
	if i := strings.LastIndex(h, ":"); i >= 0 {
		h = h[:i]
	}
	return h == "localhost" || h == "127.0.0.1" || h == "::1"
}

// Resolve returns the cached public key and key_id for issuerDomain,
// fetching and caching on miss. Concurrent misses for the same domain
// coalesce into one HTTPS GET via singleflight.
func (r *Resolver) Resolve(ctx context.Context, issuerDomain string) (domain.PublicKey, string, error) {
	r.mu.Lock()
	entry, ok := r.cache[issuerDomain]
	r.mu.Unlock()

	if ok && time.Now().Before(entry.expiresAt) {
		return entry.pubkey, entry.keyID, nil
	}

	v, err, _ := r.group.Do(issuerDomain, func() (interface{}, error) {
		fresh, ferr := r.fetchWithRetry(ctx, issuerDomain)
		if ferr != nil {
			if ok && time.Now().Before(entry.expiresAt.Add(StaleGrace)) {
				slog.Warn("key discovery: serving stale issuer key", "issuer", issuerDomain, "err", ferr)
				return entry, nil
			}
			return cacheEntry{}, ferr
		}
		r.mu.Lock()
		r.cache[issuerDomain] = fresh
		r.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return domain.PublicKey{}, "", hesherr.Wrap(hesherr.KeyDiscoveryFailed, err, "resolving issuer key: "+issuerDomain)
	}

	fresh := v.(cacheEntry)
	return fresh.pubkey, fresh.keyID, nil
}

func (r *Resolver) fetchWithRetry(ctx context.Context, issuerDomain string) (cacheEntry, error) {
	backoff, err := retry.NewExponential(100 * time.Millisecond)
	if err != nil {
		return cacheEntry{}, hesherr.Wrap(hesherr.Internal, err, "constructing backoff")
	}
	backoff = retry.WithMaxRetries(maxRetries, backoff)
	backoff = retry.WithJitterPercent(20, backoff)

	var result cacheEntry
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		entry, ferr := r.fetchOnce(ctx, issuerDomain)
		if ferr != nil {
			if isTransient(ferr) {
				return retry.RetryableError(ferr)
			}
			return ferr
		}
		result = entry
		return nil
	})
	return result, err
}

// isTransient reports whether err is worth retrying: everything except a
// malformed record or an invalid key, which fetchOnce marks as
// *nonRetryableError since a retry would just decode the same bad bytes
// again.
func isTransient(err error) bool {
	_, nonRetryable := err.(*nonRetryableError)
	return !nonRetryable
}

func (r *Resolver) fetchOnce(ctx context.Context, issuerDomain string) (cacheEntry, error) {
	scheme := "https"
	if r.allowInsecure(issuerDomain) {
		scheme = "http"
	}
	url := fmt.Sprintf("%s://%s/.well-known/hesha/pubkey.json", scheme, issuerDomain)

	reqCtx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return cacheEntry{}, err
	}

	slog.Debug("key discovery request", "url", url)
	resp, err := r.client.Do(req)
	if err != nil {
		return cacheEntry{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cacheEntry{}, err
	}
	if resp.StatusCode >= 400 {
		return cacheEntry{}, fmt.Errorf("key discovery: issuer returned %d", resp.StatusCode)
	}

	var rec IssuerKeyRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return cacheEntry{}, &nonRetryableError{fmt.Errorf("decoding issuer key record: %w", err)}
	}
	if rec.Algorithm != "Ed25519" {
		return cacheEntry{}, &nonRetryableError{fmt.Errorf("unsupported issuer key algorithm %q", rec.Algorithm)}
	}
	pub, err := domain.NewPublicKeyFromB64(rec.PublicKey)
	if err != nil {
		return cacheEntry{}, &nonRetryableError{err}
	}

	ttl := ttlFromCacheControl(resp.Header.Get("Cache-Control"))
	return cacheEntry{pubkey: pub, keyID: rec.KeyID, expiresAt: time.Now().Add(ttl)}, nil
}

// nonRetryableError marks a fetch failure that will never succeed on
// retry (malformed record, bad key) so fetchWithRetry's isTransient skips
// it.
type nonRetryableError struct{ error }

func (e *nonRetryableError) Unwrap() error { return e.error }

func ttlFromCacheControl(header string) time.Duration {
	ttl := DefaultTTL
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if v, ok := strings.CutPrefix(part, "max-age="); ok {
			if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
				ttl = time.Duration(secs) * time.Second
			}
		}
	}
	if ttl > DefaultMaxTTL {
		ttl = DefaultMaxTTL
	}
	return ttl
}
