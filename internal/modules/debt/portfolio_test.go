package debt

import (
	"testing"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/pkg/formulas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDebtPortfolioService_Empty(t *testing.T) {
	res := ComputeDebtPortfolioService(nil)

	assert.Nil(t, res.TotalAnnualDebtService)
	assert.Nil(t, res.TotalPrincipal)
	assert.Nil(t, res.TotalInterest)
	assert.NotEmpty(t, res.Diagnostics.Notes)
	assert.Empty(t, res.Instruments)
}

func TestComputeDebtPortfolioService_Isolation(t *testing.T) {
	valid := termLoan(1_000_000, 0.055, 120)
	valid.ID = "good"
	invalid := termLoan(-10, 0.055, 120)
	invalid.ID = "bad"

	res := ComputeDebtPortfolioService([]Instrument{valid, invalid})
	single := ComputeAnnualDebtService(valid)

	require.NotNil(t, res.TotalAnnualDebtService)
	assert.Equal(t, *single.AnnualDebtService, *res.TotalAnnualDebtService)
	assert.Equal(t, []string{"bad"}, res.Diagnostics.InvalidInstruments)
	assert.Len(t, res.Instruments, 2)
}

func TestComputeDebtPortfolioService_AllInvalidIsUndefined(t *testing.T) {
	res := ComputeDebtPortfolioService([]Instrument{
		{ID: "a"},
		{ID: "b", Principal: formulas.Ptr(-1), Rate: formulas.Ptr(0.1), AmortizationMonths: intPtr(12), PaymentFrequency: FrequencyMonthly},
	})

	assert.Nil(t, res.TotalAnnualDebtService)
	assert.Nil(t, res.ExistingAnnualDebtService)
	assert.Nil(t, res.ProposedAnnualDebtService)
	assert.Equal(t, []string{"a", "b"}, res.Diagnostics.InvalidInstruments)
}

func TestComputeDebtPortfolioService_ZeroIsNotUndefined(t *testing.T) {
	res := ComputeDebtPortfolioService([]Instrument{termLoan(0, 0.05, 60)})

	require.NotNil(t, res.TotalAnnualDebtService)
	assert.Equal(t, 0.0, *res.TotalAnnualDebtService)
}

func TestComputeDebtPortfolioService_SumsAndSplits(t *testing.T) {
	existing := termLoan(250_000, 0.06, 60)
	existing.ID = "existing"
	existing.Source = SourceExisting
	proposed := termLoan(500_000, 0.07, 120)
	proposed.ID = "proposed"

	res := ComputeDebtPortfolioService([]Instrument{existing, proposed})
	e := ComputeAnnualDebtService(existing)
	p := ComputeAnnualDebtService(proposed)

	require.NotNil(t, res.TotalAnnualDebtService)
	assert.InDelta(t, *e.AnnualDebtService+*p.AnnualDebtService, *res.TotalAnnualDebtService, 1e-9)
	assert.InDelta(t, *e.AnnualDebtService, *res.ExistingAnnualDebtService, 1e-9)
	assert.InDelta(t, *p.AnnualDebtService, *res.ProposedAnnualDebtService, 1e-9)
	assert.InDelta(t, e.Breakdown.Interest+p.Breakdown.Interest, *res.TotalInterest, 1e-9)
	assert.InDelta(t, e.Breakdown.Principal+p.Breakdown.Principal, *res.TotalPrincipal, 1e-9)
	assert.Empty(t, res.Diagnostics.InvalidInstruments)
}

func TestComputeDebtPortfolioService_Deterministic(t *testing.T) {
	instruments := []Instrument{termLoan(100_000, 0.05, 60), termLoan(50_000, 0, 24)}
	assert.Equal(t, ComputeDebtPortfolioService(instruments), ComputeDebtPortfolioService(instruments))
}

func TestAlignDebtServiceToPeriod(t *testing.T) {
	portfolio := ComputeDebtPortfolioService([]Instrument{termLoan(1_000_000, 0.055, 120)})

	tests := []struct {
		periodType domain.PeriodType
		alignment  AlignmentType
		noted      bool
	}{
		{domain.PeriodTypeFYE, AlignmentFY, false},
		{domain.PeriodTypeYTD, AlignmentInterimUnprorated, true},
		{domain.PeriodTypeTTM, AlignmentInterimUnprorated, true},
		{domain.PeriodTypeQuarter, AlignmentInterimUnprorated, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.periodType), func(t *testing.T) {
			aligned := AlignDebtServiceToPeriod(portfolio, tt.periodType)

			assert.Equal(t, tt.alignment, aligned.AlignmentType)
			// Interim periods are intentionally not prorated
			assert.Equal(t, *portfolio.TotalAnnualDebtService, *aligned.TotalDebtService)
			if tt.noted {
				assert.Equal(t, []string{NoProrationNote}, aligned.Notes)
			} else {
				assert.Empty(t, aligned.Notes)
			}
		})
	}
}

func TestAlignDebtServiceToPeriod_UndefinedStaysUndefined(t *testing.T) {
	aligned := AlignDebtServiceToPeriod(ComputeDebtPortfolioService(nil), domain.PeriodTypeFYE)
	assert.Nil(t, aligned.TotalDebtService)
}
