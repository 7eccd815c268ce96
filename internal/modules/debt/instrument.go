// Package debt computes annual debt service for loan instruments, aggregates
// it across a portfolio, and aligns the portfolio total to a reporting period.
package debt

// Source says whether an instrument is already on the books or being requested.
type Source string

const (
	SourceExisting Source = "existing"
	SourceProposed Source = "proposed"
)

// PaymentFrequency is how often an instrument is paid.
type PaymentFrequency string

const (
	FrequencyMonthly   PaymentFrequency = "monthly"
	FrequencyQuarterly PaymentFrequency = "quarterly"
	FrequencyAnnual    PaymentFrequency = "annual"
)

// PeriodsPerYear returns the number of payments per year, or 0 for an
// unknown frequency.
func (f PaymentFrequency) PeriodsPerYear() int {
	switch f {
	case FrequencyMonthly:
		return 12
	case FrequencyQuarterly:
		return 4
	case FrequencyAnnual:
		return 1
	default:
		return 0
	}
}

// MonthsPerPeriod returns the number of months covered by one payment.
func (f PaymentFrequency) MonthsPerPeriod() int {
	if ppy := f.PeriodsPerYear(); ppy > 0 {
		return 12 / ppy
	}
	return 0
}

// Instrument is a single loan. Pointer fields are optional on input; the
// required ones (principal, rate, amortization months, payment frequency)
// are reported as missing when nil or empty.
type Instrument struct {
	ID                 string           `json:"id" msgpack:"id"`
	Source             Source           `json:"source" msgpack:"source"`
	Principal          *float64         `json:"principal" msgpack:"principal"`
	Rate               *float64         `json:"rate" msgpack:"rate"`
	AmortizationMonths *int             `json:"amortizationMonths" msgpack:"amortizationMonths"`
	TermMonths         *int             `json:"termMonths,omitempty" msgpack:"termMonths,omitempty"`
	InterestOnlyMonths *int             `json:"interestOnlyMonths,omitempty" msgpack:"interestOnlyMonths,omitempty"`
	Balloon            bool             `json:"balloon,omitempty" msgpack:"balloon,omitempty"`
	PaymentFrequency   PaymentFrequency `json:"paymentFrequency" msgpack:"paymentFrequency"`
}

// IsProposed reports whether the instrument is part of the requested financing.
func (i Instrument) IsProposed() bool {
	return i.Source == SourceProposed
}

// WithRate returns a copy of the instrument carrying a different annual rate.
// The receiver is left untouched.
func (i Instrument) WithRate(rate float64) Instrument {
	out := i
	out.Rate = &rate
	return out
}

// Breakdown is the first-period principal/interest split, annualized.
type Breakdown struct {
	Principal float64 `json:"principal" msgpack:"principal"`
	Interest  float64 `json:"interest" msgpack:"interest"`
}

// Diagnostics explains an absent result or qualifies a present one.
type Diagnostics struct {
	MissingInputs        []string `json:"missingInputs,omitempty" msgpack:"missingInputs,omitempty"`
	UnsupportedStructure bool     `json:"unsupportedStructure,omitempty" msgpack:"unsupportedStructure,omitempty"`
	Notes                []string `json:"notes,omitempty" msgpack:"notes,omitempty"`
	// BalloonBalance is the principal still outstanding at maturity for a
	// balloon loan whose term ends before its amortization schedule.
	// Disclosed only, never added to debt service.
	BalloonBalance *float64 `json:"balloonBalance,omitempty" msgpack:"balloonBalance,omitempty"`
}

// InstrumentServiceResult is the debt service computed for one instrument.
// Either AnnualDebtService is set (with its periodic payment and breakdown),
// or the diagnostics carry missing inputs or an unsupported structure.
type InstrumentServiceResult struct {
	InstrumentID        string      `json:"instrumentId" msgpack:"instrumentId"`
	Source              Source      `json:"source" msgpack:"source"`
	AnnualDebtService   *float64    `json:"annualDebtService" msgpack:"annualDebtService"`
	PeriodicDebtService *float64    `json:"periodicDebtService" msgpack:"periodicDebtService"`
	PeriodsPerYear      int         `json:"periodsPerYear,omitempty" msgpack:"periodsPerYear,omitempty"`
	Breakdown           *Breakdown  `json:"breakdown,omitempty" msgpack:"breakdown,omitempty"`
	Diagnostics         Diagnostics `json:"diagnostics" msgpack:"diagnostics"`
}

// Valid reports whether a numeric result was produced.
func (r InstrumentServiceResult) Valid() bool {
	return r.AnnualDebtService != nil
}
