// Package financials turns normalized, dated facts into a period-indexed
// financial model.
package financials

import (
	"sort"
	"time"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/pkg/formulas"
)

// Quality flag prefixes attached to periods.
const (
	FlagDuplicateFact = "duplicate_fact:"
	FlagNonFinite     = "non_finite:"
	FlagDerived       = "derived:"
)

type periodKey struct {
	end time.Time
	typ domain.PeriodType
}

// Build groups facts by (period end, period type) into an immutable model.
// Within a period the last fact for a key wins and the duplicate is flagged.
// Non-finite values are dropped and flagged. EBITDA is derived from
// operating income plus depreciation and amortization when it is not
// reported directly.
func Build(facts []domain.Fact, businessModel domain.BusinessModel) domain.FinancialModel {
	if businessModel == "" {
		businessModel = domain.BusinessModelGeneral
	}

	periods := make(map[periodKey]*domain.Period)
	seen := make(map[periodKey]map[string]bool)

	for _, f := range facts {
		key := periodKey{end: dateOnly(f.PeriodEnd), typ: f.PeriodType}
		p, ok := periods[key]
		if !ok {
			p = &domain.Period{
				PeriodID:     PeriodID(key.typ, key.end),
				PeriodEnd:    key.end,
				Type:         key.typ,
				Income:       map[string]float64{},
				Balance:      map[string]float64{},
				Cashflow:     map[string]float64{},
				QualityFlags: []string{},
			}
			periods[key] = p
			seen[key] = map[string]bool{}
		}

		if !formulas.IsFinite(f.Value) {
			p.QualityFlags = appendFlag(p.QualityFlags, FlagNonFinite+f.Key)
			continue
		}

		if seen[key][f.Key] {
			p.QualityFlags = appendFlag(p.QualityFlags, FlagDuplicateFact+f.Key)
			// Last one wins, across statements too
			delete(p.Income, f.Key)
			delete(p.Balance, f.Key)
			delete(p.Cashflow, f.Key)
		}
		seen[key][f.Key] = true

		switch f.Statement {
		case domain.StatementBalance:
			p.Balance[f.Key] = f.Value
		case domain.StatementCashflow:
			p.Cashflow[f.Key] = f.Value
		default:
			p.Income[f.Key] = f.Value
		}
	}

	model := domain.FinancialModel{BusinessModel: businessModel, Periods: make([]domain.Period, 0, len(periods))}
	for _, p := range periods {
		deriveEBITDA(p)
		sort.Strings(p.QualityFlags)
		model.Periods = append(model.Periods, *p)
	}
	model.Periods = model.SortedByEnd()
	return model
}

// PeriodID names a period: FY2024-12, YTD2025-06, TTM2025-06, Q2025-06.
// Fiscal years carry their closing month so a year-end change never yields
// two periods with the same id.
func PeriodID(typ domain.PeriodType, end time.Time) string {
	prefix := string(typ)
	if typ == domain.PeriodTypeFYE {
		prefix = "FY"
	}
	return prefix + end.Format("2006-01")
}

func deriveEBITDA(p *domain.Period) {
	if _, ok := p.Income["ebitda"]; ok {
		return
	}
	values := p.Values()
	if _, ok := values["ebitda"]; ok {
		return
	}
	op, okOp := values["operating_income"]
	da, okDA := values["depreciation_amortization"]
	if !okOp || !okDA {
		return
	}
	p.Income["ebitda"] = op + da
	p.QualityFlags = appendFlag(p.QualityFlags, FlagDerived+"ebitda")
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func appendFlag(flags []string, flag string) []string {
	for _, f := range flags {
		if f == flag {
			return flags
		}
	}
	return append(flags, flag)
}
