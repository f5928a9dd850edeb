package domain

import "github.com/heshaorg/hesha/pkg/hesherr"

// invalidInput is the shared constructor for this package's validation
// errors — every NewX constructor in domain fails this way, per spec.md §4.2
// ("Constructors ... fail with InvalidPhone, InvalidScope, ...").
func invalidInput(msg, field string) *hesherr.Error {
	return hesherr.New(hesherr.InvalidInput, msg).WithField(field)
}
