package formulas

import "math"

// RoundTo rounds v to precision decimal places (half away from zero).
// A negative precision leaves v untouched.
func RoundTo(v float64, precision int) float64 {
	if precision < 0 || !IsFinite(v) {
		return v
	}
	scale := math.Pow(10, float64(precision))
	rounded := math.Round(v*scale) / scale
	if !IsFinite(rounded) {
		return v
	}
	// Normalize negative zero so canonical encodings stay stable
	if rounded == 0 {
		return 0
	}
	return rounded
}

// Ptr returns a pointer to v. Handy for optional numeric fields.
func Ptr(v float64) *float64 {
	return &v
}
