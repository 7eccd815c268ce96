package debt

import (
	"fmt"
	"math"

	"github.com/aristath/underwriter/pkg/formulas"
)

// ComputeAnnualDebtService computes the annual debt service of one instrument.
//
// Validation runs in order and the first match wins: missing required
// fields, then unsupported structures (negative principal or rate,
// non-positive amortization, unknown frequency), then zero principal, which
// yields a zero result with no diagnostics.
//
// Interest-only loans report the post-IO fully amortizing payment. Balloon
// loans amortize over AmortizationMonths and exclude the balloon itself.
func ComputeAnnualDebtService(inst Instrument) InstrumentServiceResult {
	res := InstrumentServiceResult{InstrumentID: inst.ID, Source: inst.Source}

	if missing := missingInputs(inst); len(missing) > 0 {
		res.Diagnostics.MissingInputs = missing
		return res
	}

	if note := unsupported(inst); note != "" {
		res.Diagnostics.UnsupportedStructure = true
		res.Diagnostics.Notes = []string{note}
		return res
	}

	principal := *inst.Principal
	rate := *inst.Rate
	ppy := inst.PaymentFrequency.PeriodsPerYear()
	res.PeriodsPerYear = ppy

	if principal == 0 {
		zero := 0.0
		res.AnnualDebtService = &zero
		res.PeriodicDebtService = formulas.Ptr(0)
		res.Breakdown = &Breakdown{}
		return res
	}

	periods := toPeriods(*inst.AmortizationMonths, inst.PaymentFrequency)
	periodicRate := rate / float64(ppy)

	pmt := formulas.Payment(principal, periodicRate, periods)
	if pmt == nil {
		res.Diagnostics.UnsupportedStructure = true
		res.Diagnostics.Notes = []string{"payment is not computable for this structure"}
		return res
	}

	annual := *pmt * float64(ppy)
	interest := principal * periodicRate * float64(ppy)

	res.PeriodicDebtService = pmt
	res.AnnualDebtService = &annual
	res.Breakdown = &Breakdown{
		Principal: annual - interest,
		Interest:  interest,
	}

	if inst.InterestOnlyMonths != nil && *inst.InterestOnlyMonths > 0 {
		res.Diagnostics.Notes = append(res.Diagnostics.Notes, fmt.Sprintf(
			"interest-only period of %d months ignored: reporting the post-IO fully amortizing payment over %d months",
			*inst.InterestOnlyMonths, *inst.AmortizationMonths))
	}

	if inst.Balloon {
		res.Diagnostics.Notes = append(res.Diagnostics.Notes, fmt.Sprintf(
			"balloon principal at maturity excluded from debt service: schedule amortized over %d months",
			*inst.AmortizationMonths))
		if inst.TermMonths != nil && *inst.TermMonths < *inst.AmortizationMonths {
			paid := toPeriods(*inst.TermMonths, inst.PaymentFrequency)
			res.Diagnostics.BalloonBalance = formulas.RemainingBalance(principal, periodicRate, periods, paid)
		}
	}

	return res
}

func missingInputs(inst Instrument) []string {
	var missing []string
	if inst.Principal == nil {
		missing = append(missing, "principal")
	}
	if inst.Rate == nil {
		missing = append(missing, "rate")
	}
	if inst.AmortizationMonths == nil {
		missing = append(missing, "amortizationMonths")
	}
	if inst.PaymentFrequency == "" {
		missing = append(missing, "paymentFrequency")
	}
	return missing
}

func unsupported(inst Instrument) string {
	switch {
	case !formulas.IsFinite(*inst.Principal):
		return "principal is not a finite number"
	case !formulas.IsFinite(*inst.Rate):
		return "rate is not a finite number"
	case *inst.Principal < 0:
		return "negative principal is not supported"
	case *inst.Rate < 0:
		return "negative rate is not supported"
	case *inst.AmortizationMonths <= 0:
		return "amortizationMonths must be positive"
	case inst.PaymentFrequency.PeriodsPerYear() == 0:
		return fmt.Sprintf("unknown payment frequency %q", inst.PaymentFrequency)
	case inst.TermMonths != nil && *inst.TermMonths <= 0:
		return "termMonths must be positive when set"
	case inst.InterestOnlyMonths != nil && *inst.InterestOnlyMonths < 0:
		return "interestOnlyMonths cannot be negative"
	}
	return ""
}

// toPeriods converts a month count to payment periods, rounding partial
// quarters and years up.
func toPeriods(months int, freq PaymentFrequency) int {
	per := freq.MonthsPerPeriod()
	if per <= 1 {
		return months
	}
	return int(math.Ceil(float64(months) / float64(per)))
}
