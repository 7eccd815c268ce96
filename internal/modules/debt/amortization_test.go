package debt

import (
	"testing"

	"github.com/aristath/underwriter/pkg/formulas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func termLoan(principal, rate float64, months int) Instrument {
	return Instrument{
		ID:                 "loan-1",
		Source:             SourceProposed,
		Principal:          formulas.Ptr(principal),
		Rate:               formulas.Ptr(rate),
		AmortizationMonths: intPtr(months),
		PaymentFrequency:   FrequencyMonthly,
	}
}

func TestComputeAnnualDebtService_StandardLoan(t *testing.T) {
	res := ComputeAnnualDebtService(termLoan(1_000_000, 0.055, 120))

	require.True(t, res.Valid())
	assert.InDelta(t, 10852.63, *res.PeriodicDebtService, 0.01)
	assert.InDelta(t, 130231.53, *res.AnnualDebtService, 0.01)
	assert.Equal(t, 12, res.PeriodsPerYear)
	require.NotNil(t, res.Breakdown)
	assert.InDelta(t, 55000.0, res.Breakdown.Interest, 1e-6)
	assert.InDelta(t, *res.AnnualDebtService-55000, res.Breakdown.Principal, 1e-6)
	assert.Empty(t, res.Diagnostics.MissingInputs)
	assert.False(t, res.Diagnostics.UnsupportedStructure)
}

func TestComputeAnnualDebtService_ThirtyYearMortgage(t *testing.T) {
	res := ComputeAnnualDebtService(termLoan(200_000, 0.06, 360))

	require.True(t, res.Valid())
	assert.InDelta(t, 1199.10, *res.PeriodicDebtService, 0.01)
}

func TestComputeAnnualDebtService_ZeroRateIdentity(t *testing.T) {
	res := ComputeAnnualDebtService(termLoan(120_000, 0, 120))

	require.True(t, res.Valid())
	assert.Equal(t, 120_000.0*12/120, *res.AnnualDebtService)
	assert.Equal(t, 0.0, res.Breakdown.Interest)
	assert.Equal(t, *res.AnnualDebtService, res.Breakdown.Principal)
}

func TestComputeAnnualDebtService_Frequencies(t *testing.T) {
	tests := []struct {
		name      string
		freq      PaymentFrequency
		months    int
		periods   int
		perPeriod float64
	}{
		{"monthly", FrequencyMonthly, 60, 60, 12},
		{"quarterly rounds partial quarter up", FrequencyQuarterly, 10, 4, 4},
		{"annual rounds partial year up", FrequencyAnnual, 30, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := termLoan(100_000, 0.08, tt.months)
			inst.PaymentFrequency = tt.freq

			res := ComputeAnnualDebtService(inst)

			require.True(t, res.Valid())
			expected := formulas.Payment(100_000, 0.08/tt.perPeriod, tt.periods)
			require.NotNil(t, expected)
			assert.InDelta(t, *expected, *res.PeriodicDebtService, 1e-9)
			assert.InDelta(t, *expected*tt.perPeriod, *res.AnnualDebtService, 1e-9)
		})
	}
}

func TestComputeAnnualDebtService_MissingInputs(t *testing.T) {
	res := ComputeAnnualDebtService(Instrument{ID: "blank"})

	assert.False(t, res.Valid())
	assert.Nil(t, res.PeriodicDebtService)
	assert.Nil(t, res.Breakdown)
	assert.Equal(t, []string{"principal", "rate", "amortizationMonths", "paymentFrequency"}, res.Diagnostics.MissingInputs)
	assert.False(t, res.Diagnostics.UnsupportedStructure)
}

func TestComputeAnnualDebtService_MissingBeatsUnsupported(t *testing.T) {
	inst := termLoan(-5, 0.05, 60)
	inst.Rate = nil

	res := ComputeAnnualDebtService(inst)

	assert.Equal(t, []string{"rate"}, res.Diagnostics.MissingInputs)
	assert.False(t, res.Diagnostics.UnsupportedStructure)
}

func TestComputeAnnualDebtService_Unsupported(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Instrument)
	}{
		{"negative principal", func(i *Instrument) { i.Principal = formulas.Ptr(-1) }},
		{"negative rate", func(i *Instrument) { i.Rate = formulas.Ptr(-0.01) }},
		{"zero amortization", func(i *Instrument) { i.AmortizationMonths = intPtr(0) }},
		{"negative amortization", func(i *Instrument) { i.AmortizationMonths = intPtr(-12) }},
		{"unknown frequency", func(i *Instrument) { i.PaymentFrequency = "weekly" }},
		{"zero term", func(i *Instrument) { i.TermMonths = intPtr(0) }},
		{"negative interest-only", func(i *Instrument) { i.InterestOnlyMonths = intPtr(-1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := termLoan(100_000, 0.05, 60)
			tt.mutate(&inst)

			res := ComputeAnnualDebtService(inst)

			assert.Nil(t, res.AnnualDebtService)
			assert.Nil(t, res.PeriodicDebtService)
			assert.True(t, res.Diagnostics.UnsupportedStructure)
			assert.Len(t, res.Diagnostics.Notes, 1)
		})
	}
}

func TestComputeAnnualDebtService_ZeroPrincipal(t *testing.T) {
	res := ComputeAnnualDebtService(termLoan(0, 0.07, 84))

	require.True(t, res.Valid())
	assert.Equal(t, 0.0, *res.AnnualDebtService)
	assert.Equal(t, 0.0, *res.PeriodicDebtService)
	assert.Equal(t, Diagnostics{}, res.Diagnostics)
}

func TestComputeAnnualDebtService_InterestOnlyReportsPostIOPayment(t *testing.T) {
	plain := ComputeAnnualDebtService(termLoan(500_000, 0.07, 240))

	io := termLoan(500_000, 0.07, 240)
	io.InterestOnlyMonths = intPtr(24)
	res := ComputeAnnualDebtService(io)

	require.True(t, res.Valid())
	assert.Equal(t, *plain.AnnualDebtService, *res.AnnualDebtService)
	// Post-IO payment is always above the interest-only payment
	assert.Greater(t, *res.AnnualDebtService, 500_000*0.07)
	require.Len(t, res.Diagnostics.Notes, 1)
	assert.Contains(t, res.Diagnostics.Notes[0], "interest-only")
}

func TestComputeAnnualDebtService_BalloonExclusion(t *testing.T) {
	plain := ComputeAnnualDebtService(termLoan(750_000, 0.065, 300))

	for _, term := range []int{60, 120, 300} {
		inst := termLoan(750_000, 0.065, 300)
		inst.Balloon = true
		inst.TermMonths = intPtr(term)

		res := ComputeAnnualDebtService(inst)

		require.True(t, res.Valid())
		assert.Equal(t, *plain.AnnualDebtService, *res.AnnualDebtService, "term %d", term)
		require.NotEmpty(t, res.Diagnostics.Notes)
		assert.Contains(t, res.Diagnostics.Notes[0], "balloon")
	}
}

func TestComputeAnnualDebtService_BalloonBalanceDisclosed(t *testing.T) {
	inst := termLoan(750_000, 0.065, 300)
	inst.Balloon = true
	inst.TermMonths = intPtr(60)

	res := ComputeAnnualDebtService(inst)

	require.NotNil(t, res.Diagnostics.BalloonBalance)
	assert.Greater(t, *res.Diagnostics.BalloonBalance, 0.0)
	assert.Less(t, *res.Diagnostics.BalloonBalance, 750_000.0)

	expected := formulas.RemainingBalance(750_000, 0.065/12, 300, 60)
	assert.InDelta(t, *expected, *res.Diagnostics.BalloonBalance, 1e-6)

	inst.TermMonths = intPtr(300)
	assert.Nil(t, ComputeAnnualDebtService(inst).Diagnostics.BalloonBalance)
}

func TestComputeAnnualDebtService_Deterministic(t *testing.T) {
	inst := termLoan(333_333, 0.0725, 97)
	inst.Balloon = true
	inst.TermMonths = intPtr(36)

	assert.Equal(t, ComputeAnnualDebtService(inst), ComputeAnnualDebtService(inst))
}

func TestComputeAnnualDebtService_DoesNotMutateInput(t *testing.T) {
	inst := termLoan(100_000, 0.05, 60)
	before := *inst.Principal

	ComputeAnnualDebtService(inst)

	assert.Equal(t, before, *inst.Principal)
}
