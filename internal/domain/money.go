package domain

import (
	"fmt"
	"math"
)

// Money is stored in hundredths of the platform token (cents) so that balance
// arithmetic stays exact in DynamoDB ADD expressions.

// FormatAmount renders cents as a fixed two-decimal string, e.g. 12500 -> "125.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ToCents converts a decimal token amount to cents, rounding half away from zero.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// ApplyBasisPoints returns cents * bps / 10000, truncated toward zero.
func ApplyBasisPoints(cents int64, bps int64) int64 {
	return cents * bps / 10000
}
