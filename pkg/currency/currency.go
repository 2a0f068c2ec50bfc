package currency

// All money flows through this package as integer cents and integer
// satoshis. Conversions floor; the fee side of a split never rounds up.

// FeeSplit divides a gross amount in cents into platform fee and runner net.
// feePercent is clamped to [0,100]; net + fee always equals gross.
func FeeSplit(amountCents, feePercent int64) (feeCents, netCents int64) {
	if feePercent < 0 {
		feePercent = 0
	}
	if feePercent > 100 {
		feePercent = 100
	}

	feeCents = amountCents * feePercent / 100
	netCents = amountCents - feeCents
	return feeCents, netCents
}

// CentsToSats converts USD cents to satoshis at the given sats-per-USD rate,
// flooring at the conversion boundary.
func CentsToSats(cents, satsPerUSD int64) int64 {
	return cents * satsPerUSD / 100
}
