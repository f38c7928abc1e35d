// Package money provides 2-decimal ledger arithmetic shared by every
// balancing and settlement component. All persisted amounts are
// DECIMAL(12,2); any derived amount must pass through Round2 before it
// is written back.
package money

import "math"

// Epsilon is the half-cent tolerance used when comparing rounded amounts.
const Epsilon = 0.005

// Round2 rounds an amount to 2 decimal places, half away from zero.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// IsZero reports whether a rounded amount is zero to the cent.
func IsZero(amount float64) bool {
	return math.Abs(amount) < Epsilon
}

// Equal reports whether two amounts are equal to the cent.
func Equal(a, b float64) bool {
	return IsZero(a - b)
}

// SameSign reports whether both amounts are nonzero and carry the same sign.
func SameSign(a, b float64) bool {
	if IsZero(a) || IsZero(b) {
		return false
	}
	return (a > 0) == (b > 0)
}

// Min returns the smaller of two amounts.
func Min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Abs returns the absolute value of an amount.
func Abs(amount float64) float64 {
	return math.Abs(amount)
}

// Sum rounds the running total of the given amounts to 2 decimals.
func Sum(amounts ...float64) float64 {
	var total float64
	for _, amount := range amounts {
		total += amount
	}
	return Round2(total)
}
