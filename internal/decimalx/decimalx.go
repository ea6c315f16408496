// Package decimalx centralises the quantization rules spec'd for money and
// rate arithmetic: 2 decimal places HALF_UP for money, 4 for factors/rates.
// Intermediate arithmetic elsewhere keeps full decimal.Decimal precision;
// only values crossing a persistence boundary pass through these helpers.
package decimalx

import "github.com/shopspring/decimal"

// Money quantises to 2 decimal places, HALF_UP.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Factor quantises to 4 decimal places, HALF_UP — used for proration
// factors and similar rates.
func Factor(d decimal.Decimal) decimal.Decimal {
	return d.Round(4)
}

// Zero is the canonical zero decimal, used in comparisons throughout the
// payroll packages instead of decimal.Decimal{}.
var Zero = decimal.NewFromInt(0)

// Tolerance is the absolute tolerance used for cross-field equality checks
// in property tests (spec §8): 0.02.
var Tolerance = decimal.NewFromFloat(0.02)

// WithinTolerance reports whether a and b differ by at most Tolerance.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// MaxZero clamps d to be no smaller than zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	return Max(d, Zero)
}
