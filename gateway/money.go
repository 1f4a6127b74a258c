package gateway

import (
	"math"
	"strconv"
)

// ToMinorUnits converts a major-unit amount (e.g. 10.50 SAR) to minor units
// (1050 halalas). Rounding happens here and only here so that 0.1+0.2 style
// float artifacts never reach a provider.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromMinorUnits converts provider minor units back to a major-unit amount.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}

// DecimalAmount formats a major-unit amount as a fixed two-decimal string for
// providers that take decimal strings on the wire (PayPal, Tabby, Tamara).
func DecimalAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}

// ParseDecimalAmount parses a provider decimal-string amount. Unparseable
// input counts as zero; provider refund arithmetic treats it as absent.
func ParseDecimalAmount(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
