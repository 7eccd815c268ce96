package stress

import (
	"errors"
	"testing"

	"github.com/aristath/underwriter/internal/modules/debt"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/snapshot"
	testutil "github.com/aristath/underwriter/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineOptions() snapshot.Options {
	return snapshot.Options{Instruments: []debt.Instrument{testutil.NewProposedTermLoan()}}
}

func TestRun_DefaultScenarios(t *testing.T) {
	res, err := Run(testutil.NewBorrowerFixture(), engineOptions(), policy.ProductSBA7a, nil, nil)
	require.NoError(t, err)

	require.NotNil(t, res.Baseline)
	assert.Equal(t, policy.TierA, res.BaselinePolicy.Tier)
	require.Len(t, res.Scenarios, len(DefaultScenarios()))

	expected := map[string]float64{
		"revenue_decline_10": 2.46,
		"ebitda_decline_25":  2.30,
		"rate_shock_200bps":  2.81,
		"combined_downturn":  1.88,
	}
	for _, sc := range res.Scenarios {
		require.NotNil(t, sc.DSCR, sc.Scenario.Name)
		assert.InDelta(t, expected[sc.Scenario.Name], *sc.DSCR, 1e-9, sc.Scenario.Name)
	}

	// Combined downturn pushes debt/EBITDA to 4.29, a minor breach
	assert.Equal(t, policy.TierB, res.WorstTier)
	assert.Equal(t, "combined_downturn", res.WorstScenario)
	assert.InDelta(t, 2.36, *res.MeanDSCR, 0.01)
	assert.InDelta(t, 1.88, *res.MinDSCR, 1e-9)
}

func TestRun_RateShockThroughInterestProxy(t *testing.T) {
	res, err := Run(testutil.NewBorrowerFixture(), snapshot.Options{}, policy.ProductSBA7a, nil,
		[]Scenario{{Name: "rates", RateShockBps: 200}})
	require.NoError(t, err)

	require.Len(t, res.Scenarios, 1)
	sc := res.Scenarios[0]
	assert.Equal(t, snapshot.SourceInterestProxy, sc.Snapshot.DebtService.Diagnostics.Source)
	// 30,000 + 1,200,000 * 2%
	assert.Equal(t, 54_000.0, *sc.Snapshot.DebtService.TotalDebtService)
	assert.InDelta(t, 7.41, *sc.DSCR, 1e-9)
}

func TestRun_NoScenarios(t *testing.T) {
	res, err := Run(testutil.NewBorrowerFixture(), engineOptions(), policy.ProductSBA7a, nil, []Scenario{})
	require.NoError(t, err)

	assert.Empty(t, res.Scenarios)
	assert.Equal(t, policy.TierA, res.WorstTier)
	assert.Equal(t, BaselineName, res.WorstScenario)
	assert.Nil(t, res.MeanDSCR)
}

func TestRun_NoBaseline(t *testing.T) {
	model := testutil.NewBorrowerFixture()
	model.Periods = model.Periods[1:]

	_, err := Run(model, engineOptions(), policy.ProductSBA7a, nil, nil)

	assert.True(t, errors.Is(err, ErrNoBaseline))
}

func TestRun_DoesNotMutateInputs(t *testing.T) {
	model := testutil.NewBorrowerFixture()
	opts := engineOptions()
	before := model.Clone()
	rate := *opts.Instruments[0].Rate

	_, err := Run(model, opts, policy.ProductSBA7a, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, before, model)
	assert.Equal(t, rate, *opts.Instruments[0].Rate)
}

func TestRun_Deterministic(t *testing.T) {
	a, errA := Run(testutil.NewBorrowerFixture(), engineOptions(), policy.ProductConventionalTerm, nil, nil)
	b, errB := Run(testutil.NewBorrowerFixture(), engineOptions(), policy.ProductConventionalTerm, nil, nil)

	require.NoError(t, errA)
	require.NoError(t, errB)
	assert.Equal(t, a, b)
}
