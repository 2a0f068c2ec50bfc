package lightning

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// VerifyPreimage reports whether sha256(preimage) equals the payment hash.
// Both values are hex encoded.
func VerifyPreimage(preimage, paymentHash string) bool {
	raw, err := hex.DecodeString(preimage)
	if err != nil {
		return false
	}

	want, err := hex.DecodeString(paymentHash)
	if err != nil {
		return false
	}

	sum := sha256.Sum256(raw)
	return subtle.ConstantTimeCompare(sum[:], want) == 1
}
