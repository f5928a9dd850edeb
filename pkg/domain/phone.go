// Package domain holds the value types of the Hesha protocol: phone
// numbers, scopes, nonces, keys, phone hashes, and proxy numbers. Every type
// is constructed through a validating constructor; there is no way to build
// a value that violates the grammar in spec.md §3.
package domain

import (
	"regexp"
	"strings"
)

// phoneRe matches a strict E.164 number: leading '+', 7-15 digits, first
// digit non-zero.
var phoneRe = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// PhoneNumber is a validated E.164 phone number. Never log this value.
type PhoneNumber struct {
	e164 string
}

// NewPhoneNumber validates s against the E.164 grammar and returns a
// PhoneNumber. It never succeeds on input with whitespace, separators, or a
// leading zero after the country code marker.
func NewPhoneNumber(s string) (PhoneNumber, error) {
	if !phoneRe.MatchString(s) {
		return PhoneNumber{}, invalidInput("malformed phone number", "phone_number")
	}
	return PhoneNumber{e164: s}, nil
}

// MustPhoneNumber is NewPhoneNumber but panics on error; for test fixtures.
func MustPhoneNumber(s string) PhoneNumber {
	p, err := NewPhoneNumber(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the canonical E.164 form, e.g. "+1234567890".
func (p PhoneNumber) String() string { return p.e164 }

// Normalized returns the decimal-digits-only form used as hash preimage:
// the '+' is stripped, nothing else changes.
func (p PhoneNumber) Normalized() string {
	return strings.TrimPrefix(p.e164, "+")
}

// IsZero reports whether p is the zero value (never produced by the
// constructor, but useful for callers checking an unset field).
func (p PhoneNumber) IsZero() bool { return p.e164 == "" }
