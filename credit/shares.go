package credit

import "github.com/shopspring/decimal"

// MaxPercentage is the whole of a period's pool.
const MaxPercentage = 100

// ShareOf returns floor(total × pct / 100). Exact for every int64 total.
func ShareOf(total int64, pct int) int64 {
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromInt(int64(pct))).
		Shift(-2).
		Floor().
		IntPart()
}

// ValidPercentage reports whether pct is in 0..100.
func ValidPercentage(pct int) bool {
	return pct >= 0 && pct <= MaxPercentage
}
