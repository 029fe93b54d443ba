package generic

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Integer minor units computed through decimal arithmetic
// =============================================================================
//
// Amounts are stored as int64 minor units. Anything involving a rate (take
// rates, processing fees, FX, surge) is computed in decimal and rounded half
// away from zero exactly once, so splits always add back up to the total.

var hundred = decimal.NewFromInt(100)

// zeroDecimal lists currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"jpy": true,
	"krw": true,
	"vnd": true,
	"clp": true,
}

// IsZeroDecimal reports whether currency has no minor unit.
func IsZeroDecimal(currency string) bool {
	return zeroDecimal[strings.ToLower(currency)]
}

// MustRate parses a decimal rate such as "0.029". It panics on invalid
// input and is meant for package-level tables.
func MustRate(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("generic: invalid rate %q: %v", s, err))
	}
	return d
}

// Percent returns p/100 as a rate (Percent(15) == 0.15).
func Percent(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p).Div(hundred)
}

// ApplyRate returns round(amount * rate).
func ApplyRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

// Scale returns round(amount * factor) for float factors like surge multipliers.
func Scale(amount int64, factor float64) int64 {
	return ApplyRate(amount, decimal.NewFromFloat(factor))
}

// Split divides amount into (share, rest) where share = round(amount * rate)
// and share + rest == amount.
func Split(amount int64, rate decimal.Decimal) (share, rest int64) {
	share = ApplyRate(amount, rate)
	return share, amount - share
}

// ProcessingFee returns round(amount * pct) + fixed, the card-processing
// formula (2.9% + 30c).
func ProcessingFee(amount int64, pct decimal.Decimal, fixed int64) int64 {
	return ApplyRate(amount, pct) + fixed
}

// GrossUp returns the amount to charge so that after ProcessingFee the
// recipient still receives net: ceil((net + fixed) / (1 - pct)).
func GrossUp(net int64, pct decimal.Decimal, fixed int64) int64 {
	denom := decimal.NewFromInt(1).Sub(pct)
	if !denom.IsPositive() {
		return net
	}
	return decimal.NewFromInt(net + fixed).Div(denom).Ceil().IntPart()
}

// ToMinor converts a major-unit decimal (12.34) into minor units of currency.
func ToMinor(major decimal.Decimal, currency string) int64 {
	if IsZeroDecimal(currency) {
		return major.Round(0).IntPart()
	}
	return major.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts minor units back to a major-unit decimal.
func FromMinor(minor int64, currency string) decimal.Decimal {
	d := decimal.NewFromInt(minor)
	if IsZeroDecimal(currency) {
		return d
	}
	return d.Div(hundred)
}

// Convert converts minor units of from into minor units of to using rate
// (units of `to` per one unit of `from`).
func Convert(minor int64, from, to string, rate decimal.Decimal) int64 {
	return ToMinor(FromMinor(minor, from).Mul(rate), to)
}

// FormatMinor renders minor units as a major-unit string ("42.00", "1250").
func FormatMinor(minor int64, currency string) string {
	if IsZeroDecimal(currency) {
		return decimal.NewFromInt(minor).String()
	}
	return FromMinor(minor, currency).StringFixed(2)
}
