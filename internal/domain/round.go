package domain

import "math"

// ExportDigits is the number of decimals kept in exported tables.
const ExportDigits = 3

// Round rounds v to the given number of decimals, halves away from zero.
// Negative zero is returned as zero so it never prints as "-0". Magnitudes of
// 1e15 and above carry no fractional digits and are returned unchanged.
func Round(v float64, digits int) float64 {
	if !isFinite(v) || math.Abs(v) >= 1e15 {
		return v
	}
	p := math.Pow10(digits)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}
