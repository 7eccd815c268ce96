package testing

import (
	"time"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/debt"
)

// FixtureFY2024End and FixtureYTD2025End are the period ends used by the fixtures.
var (
	FixtureFY2024End  = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	FixtureYTD2025End = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
)

// NewBorrowerFixture returns a healthy general-business borrower with a full
// FY2024-12 (revenue 1,000,000 and EBITDA 400,000) and a YTD2025-06 interim.
func NewBorrowerFixture() domain.FinancialModel {
	return domain.FinancialModel{
		BorrowerID:    "borrower-fixture",
		BusinessModel: domain.BusinessModelGeneral,
		Periods: []domain.Period{
			{
				PeriodID:  "FY2024-12",
				PeriodEnd: FixtureFY2024End,
				Type:      domain.PeriodTypeFYE,
				Income: map[string]float64{
					"revenue":                   1_000_000,
					"cost_of_goods_sold":        550_000,
					"gross_profit":              450_000,
					"operating_income":          320_000,
					"depreciation_amortization": 80_000,
					"ebitda":                    400_000,
					"interest_expense":          30_000,
					"net_income":                200_000,
				},
				Balance: map[string]float64{
					"cash":                150_000,
					"accounts_receivable": 120_000,
					"inventory":           90_000,
					"current_assets":      500_000,
					"current_liabilities": 250_000,
					"total_debt":          1_200_000,
					"total_liabilities":   1_400_000,
					"total_equity":        900_000,
				},
				Cashflow: map[string]float64{
					"capex": 40_000,
				},
				QualityFlags: []string{},
			},
			{
				PeriodID:  "YTD2025-06",
				PeriodEnd: FixtureYTD2025End,
				Type:      domain.PeriodTypeYTD,
				Income: map[string]float64{
					"revenue":          520_000,
					"ebitda":           190_000,
					"interest_expense": 15_000,
					"net_income":       95_000,
				},
				Balance: map[string]float64{
					"current_assets":      480_000,
					"current_liabilities": 260_000,
					"total_debt":          1_150_000,
				},
				Cashflow:     map[string]float64{},
				QualityFlags: []string{},
			},
		},
	}
}

// NewBorrowerFacts returns the FY2024 figures of NewBorrowerFixture as raw facts.
func NewBorrowerFacts() []domain.Fact {
	p := NewBorrowerFixture().Periods[0]
	var facts []domain.Fact
	add := func(stmt domain.Statement, values map[string]float64) {
		for k, v := range values {
			facts = append(facts, domain.Fact{
				Key:        k,
				Statement:  stmt,
				Value:      v,
				PeriodEnd:  p.PeriodEnd,
				PeriodType: p.Type,
				Source:     "fixture",
			})
		}
	}
	add(domain.StatementIncome, p.Income)
	add(domain.StatementBalance, p.Balance)
	add(domain.StatementCashflow, p.Cashflow)
	return facts
}

// NewProposedTermLoan returns the 10-year 1,000,000 loan at 5.5% paid monthly.
// Its annual debt service is about 130,231.53.
func NewProposedTermLoan() debt.Instrument {
	principal, rate, months := 1_000_000.0, 0.055, 120
	return debt.Instrument{
		ID:                 "proposed-term",
		Source:             debt.SourceProposed,
		Principal:          &principal,
		Rate:               &rate,
		AmortizationMonths: &months,
		PaymentFrequency:   debt.FrequencyMonthly,
	}
}

// NewExistingEquipmentLoan returns a small existing quarterly-pay equipment note.
func NewExistingEquipmentLoan() debt.Instrument {
	principal, rate, months := 120_000.0, 0.07, 60
	return debt.Instrument{
		ID:                 "existing-equipment",
		Source:             debt.SourceExisting,
		Principal:          &principal,
		Rate:               &rate,
		AmortizationMonths: &months,
		PaymentFrequency:   debt.FrequencyQuarterly,
	}
}
