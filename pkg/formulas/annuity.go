package formulas

import "math"

// Payment calculates the fixed periodic payment that fully amortizes principal
// over periods at the given periodic rate.
//
// Formula: PMT = P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero rate degenerates to straight-line principal (P / n). Returns nil when
// periods is not positive or the result is not finite.
func Payment(principal, periodicRate float64, periods int) *float64 {
	if periods <= 0 {
		return nil
	}

	var pmt float64
	if periodicRate == 0 {
		pmt = principal / float64(periods)
	} else {
		growth := math.Pow(1+periodicRate, float64(periods))
		pmt = principal * periodicRate * growth / (growth - 1)
	}

	if !IsFinite(pmt) {
		return nil
	}
	return &pmt
}

// RemainingBalance returns the outstanding principal after paid payments of a
// fully amortizing schedule. Balances never go negative; paying every period
// (or more) leaves zero.
func RemainingBalance(principal, periodicRate float64, periods, paid int) *float64 {
	pmt := Payment(principal, periodicRate, periods)
	if pmt == nil || paid < 0 {
		return nil
	}
	if paid >= periods {
		zero := 0.0
		return &zero
	}

	var balance float64
	if periodicRate == 0 {
		balance = principal - *pmt*float64(paid)
	} else {
		growth := math.Pow(1+periodicRate, float64(paid))
		balance = principal*growth - *pmt*(growth-1)/periodicRate
	}

	if !IsFinite(balance) {
		return nil
	}
	balance = math.Max(0, balance)
	return &balance
}
