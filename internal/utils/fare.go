package utils

// bpsDenominator is 100% expressed in basis points.
const bpsDenominator = 10_000

// MobileMoneyFee returns ceil(base * bps / 10000) using integer math so
// 2% of 9001 XAF is 181, never 180.
func MobileMoneyFee(base, bps int64) int64 {
	if base <= 0 || bps <= 0 {
		return 0
	}
	return (base*bps + bpsDenominator - 1) / bpsDenominator
}

// ApplySurcharge returns (fee, final) for a base price. Synchronous
// settlement never carries a fee.
func ApplySurcharge(base, bps int64, async bool) (int64, int64) {
	if !async {
		return 0, base
	}
	fee := MobileMoneyFee(base, bps)
	return fee, base + fee
}

// LoyaltyPoints converts a paid amount into points, rounding down.
func LoyaltyPoints(total, perPoint int64) int64 {
	if total <= 0 || perPoint <= 0 {
		return 0
	}
	return total / perPoint
}
