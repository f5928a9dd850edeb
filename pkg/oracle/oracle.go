// Package oracle defines the opaque phone-ownership verification
// collaborator of spec.md §4.9/§5: the issuer treats phone-ownership proof
// (SMS OTP, carrier lookup, whatever an operator wires up) as an external
// call it awaits once per /attest request, exactly the way the pack's
// gateway treats payment verification as an external FacilitatorClient call.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
)

// PhoneOwnershipOracle verifies that the caller presenting phone actually
// controls it. Implementations are free to use SMS OTP, a carrier API, or
// any other out-of-band mechanism; the protocol treats the call as opaque.
type PhoneOwnershipOracle interface {
	VerifyOwnership(ctx context.Context, phone domain.PhoneNumber) error
}

// MockOracle always succeeds (or always fails, if configured), for local
// development and tests where no real phone-verification backend exists.
type MockOracle struct {
	// Deny, if true, makes every call fail with VerificationDenied.
	Deny bool
}

// VerifyOwnership implements PhoneOwnershipOracle.
func (m MockOracle) VerifyOwnership(ctx context.Context, phone domain.PhoneNumber) error {
	if m.Deny {
		return hesherr.New(hesherr.VerificationDenied, "mock oracle configured to deny")
	}
	return nil
}

// HTTPOracle calls a remote phone-verification service over HTTP, the way
// the pack's RemoteFacilitator calls a payment facilitator: POST a small
// JSON body, decode a small JSON response, map failure to VerificationDenied.
type HTTPOracle struct {
	url    string
	client *http.Client
}

// NewHTTPOracle builds an HTTPOracle that POSTs to url with timeout.
func NewHTTPOracle(url string, timeout time.Duration) *HTTPOracle {
	return &HTTPOracle{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// VerifyOwnership implements PhoneOwnershipOracle.
func (o *HTTPOracle) VerifyOwnership(ctx context.Context, phone domain.PhoneNumber) error {
	body, err := json.Marshal(struct {
		PhoneNumber string `json:"phone_number"`
	}{PhoneNumber: phone.String()})
	if err != nil {
		return hesherr.Wrap(hesherr.Internal, err, "encoding oracle request")
	}

	slog.Debug("oracle request", "url", o.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
	if err != nil {
		return hesherr.Wrap(hesherr.Internal, err, "building oracle request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return hesherr.Wrap(hesherr.VerificationDenied, err, "calling phone ownership oracle")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return hesherr.Wrap(hesherr.VerificationDenied, err, "reading oracle response")
	}

	slog.Debug("oracle response", "status", resp.StatusCode)

	if resp.StatusCode >= 400 {
		return hesherr.New(hesherr.VerificationDenied, fmt.Sprintf("oracle returned %d", resp.StatusCode))
	}

	var decoded struct {
		Verified bool   `json:"verified"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return hesherr.Wrap(hesherr.VerificationDenied, err, "decoding oracle response")
	}
	if !decoded.Verified {
		return hesherr.New(hesherr.VerificationDenied, decoded.Reason)
	}
	return nil
}
