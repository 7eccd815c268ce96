package debt

import (
	"gonum.org/v1/gonum/floats"
)

// PortfolioDiagnostics lists the instruments excluded from the totals.
type PortfolioDiagnostics struct {
	InvalidInstruments []string `json:"invalidInstruments,omitempty" msgpack:"invalidInstruments,omitempty"`
	Notes              []string `json:"notes,omitempty" msgpack:"notes,omitempty"`
}

// PortfolioServiceResult aggregates debt service across instruments.
// Totals are nil only when no instrument produced a result.
type PortfolioServiceResult struct {
	TotalAnnualDebtService    *float64                  `json:"totalAnnualDebtService" msgpack:"totalAnnualDebtService"`
	TotalPrincipal            *float64                  `json:"totalPrincipal" msgpack:"totalPrincipal"`
	TotalInterest             *float64                  `json:"totalInterest" msgpack:"totalInterest"`
	ExistingAnnualDebtService *float64                  `json:"existingAnnualDebtService" msgpack:"existingAnnualDebtService"`
	ProposedAnnualDebtService *float64                  `json:"proposedAnnualDebtService" msgpack:"proposedAnnualDebtService"`
	Instruments               []InstrumentServiceResult `json:"instruments" msgpack:"instruments"`
	Diagnostics               PortfolioDiagnostics      `json:"diagnostics" msgpack:"diagnostics"`
}

// ComputeDebtPortfolioService runs the amortization engine on each instrument
// independently and sums the valid results. Invalid instruments are listed
// by id in the diagnostics.
func ComputeDebtPortfolioService(instruments []Instrument) PortfolioServiceResult {
	if len(instruments) == 0 {
		return PortfolioServiceResult{
			Instruments: []InstrumentServiceResult{},
			Diagnostics: PortfolioDiagnostics{Notes: []string{"no instruments supplied"}},
		}
	}

	results := make([]InstrumentServiceResult, 0, len(instruments))
	var annual, principal, interest, existing, proposed []float64
	var invalid []string

	for _, inst := range instruments {
		r := ComputeAnnualDebtService(inst)
		results = append(results, r)

		if !r.Valid() {
			invalid = append(invalid, inst.ID)
			continue
		}

		annual = append(annual, *r.AnnualDebtService)
		principal = append(principal, r.Breakdown.Principal)
		interest = append(interest, r.Breakdown.Interest)
		if inst.IsProposed() {
			proposed = append(proposed, *r.AnnualDebtService)
		} else {
			existing = append(existing, *r.AnnualDebtService)
		}
	}

	out := PortfolioServiceResult{
		Instruments: results,
		Diagnostics: PortfolioDiagnostics{InvalidInstruments: invalid},
	}

	if len(annual) == 0 {
		out.Diagnostics.Notes = []string{"no instrument produced a debt service figure"}
		return out
	}

	out.TotalAnnualDebtService = sum(annual)
	out.TotalPrincipal = sum(principal)
	out.TotalInterest = sum(interest)
	out.ExistingAnnualDebtService = sum(existing)
	out.ProposedAnnualDebtService = sum(proposed)
	return out
}

func sum(values []float64) *float64 {
	total := floats.Sum(values)
	return &total
}
