package domain

import "regexp"

// scopeRe matches a 1-4 digit country calling code with no leading zero.
var scopeRe = regexp.MustCompile(`^[1-9]\d{0,3}$`)

// Scope is a validated country calling code, independent of the subject
// phone's own country code.
type Scope struct {
	digits string
}

// NewScope validates s as a 1-4 digit decimal scope string.
func NewScope(s string) (Scope, error) {
	if !scopeRe.MatchString(s) {
		return Scope{}, invalidInput("malformed scope", "scope")
	}
	return Scope{digits: s}, nil
}

// MustScope is NewScope but panics on error; for test fixtures.
func MustScope(s string) Scope {
	sc, err := NewScope(s)
	if err != nil {
		panic(err)
	}
	return sc
}

// String returns the canonical decimal scope string.
func (s Scope) String() string { return s.digits }

// Len returns the number of digits in the scope (1-4).
func (s Scope) Len() int { return len(s.digits) }
