// Package proxynum implements the deterministic proxy-number derivation
// algorithm of spec.md §4.3: identical inputs must yield byte-identical
// output across processes, languages, and platforms.
package proxynum

import (
	"encoding/hex"
	"strconv"

	"github.com/heshaorg/hesha/pkg/domain"
	"github.com/heshaorg/hesha/pkg/hesherr"
	"github.com/heshaorg/hesha/pkg/primitive"
)

// Derive computes the ProxyNumber for (phone, userPubkey, issuerDomain,
// scope, nonce) per the five-step algorithm in spec.md §4.3:
//
//  1. input = phone + "|" + pubkey + "|" + issuerDomain + "|" + scope + "|" + nonce
//  2. h = SHA-256(input), rendered as 64 lowercase hex characters
//  3. walk the hex digits left to right, map each to int(c,16)%10, stop at 20 digits
//  4. k = max(8, min(10, 15 - len(scope) - 3)); proxy = "+" + scope + "00" + digits[:k]
//  5. assert len(proxy) <= 15
func Derive(phone domain.PhoneNumber, userPubkey domain.PublicKey, issuerDomain string, scope domain.Scope, nonce domain.Nonce) (domain.ProxyNumber, error) {
	input := phone.String() + "|" + userPubkey.String() + "|" + issuerDomain + "|" + scope.String() + "|" + nonce.String()
	sum := primitive.SHA256([]byte(input))
	hexDigest := hex.EncodeToString(sum[:])

	const decimalDigitsNeeded = 20
	decimal := make([]byte, 0, decimalDigitsNeeded)
	for i := 0; i < len(hexDigest) && len(decimal) < decimalDigitsNeeded; i++ {
		v, err := strconv.ParseUint(string(hexDigest[i]), 16, 8)
		if err != nil {
			return domain.ProxyNumber{}, hesherr.Wrap(hesherr.Internal, err, "decoding hex digit during proxy derivation")
		}
		decimal = append(decimal, byte('0'+(v%10)))
	}

	k := scopeDigitCount(scope.Len())
	proxy := "+" + scope.String() + "00" + string(decimal[:k])
	if len(proxy) > 15 {
		return domain.ProxyNumber{}, hesherr.New(hesherr.Internal, "proxy derivation overflow")
	}
	return domain.NewProxyNumber(proxy)
}

// scopeDigitCount computes k = max(8, min(10, 15 - len(scope) - 3)).
func scopeDigitCount(scopeLen int) int {
	k := 15 - scopeLen - 3
	if k > 10 {
		k = 10
	}
	if k < 8 {
		k = 8
	}
	return k
}
