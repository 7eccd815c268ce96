package underwriting

import (
	"bytes"
	"errors"
	"testing"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/debt"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/pricing"
	"github.com/aristath/underwriter/internal/modules/snapshot"
	"github.com/aristath/underwriter/internal/modules/stress"
	testutil "github.com/aristath/underwriter/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureInput() Input {
	return Input{
		DealID:  "deal-1",
		Model:   testutil.NewBorrowerFixture(),
		Options: snapshot.Options{Instruments: []debt.Instrument{testutil.NewProposedTermLoan()}},
		Product: policy.ProductSBA7a,
	}
}

func TestRunFullUnderwrite_EndToEnd(t *testing.T) {
	outcome := RunFullUnderwrite(fixtureInput())

	require.True(t, outcome.Complete())
	res, ok := outcome.(*Result)
	require.True(t, ok)

	assert.True(t, res.Diagnostics.PipelineComplete)
	assert.Equal(t, []Stage{StageSnapshot, StageLens, StagePolicy, StageStress, StagePricing, StageMemo}, res.Diagnostics.StagesCompleted)

	assert.Equal(t, snapshot.SourceDebtEngine, res.Snapshot.DebtService.Diagnostics.Source)
	assert.InDelta(t, 130231.53, *res.Snapshot.DebtService.TotalDebtService, 0.01)
	assert.InDelta(t, 3.07, *res.Snapshot.Metric(metrics.MetricDSCR), 1e-9)
	assert.Equal(t, policy.TierA, res.Policy.Tier)
	assert.Equal(t, policy.TierB, res.Stress.WorstTier)
	assert.Equal(t, policy.TierB, res.Pricing.PricingTier)
	assert.Equal(t, pricing.RecommendApproveWithConditions, res.Memo.Recommendation)
}

func TestRunFullUnderwrite_Deterministic(t *testing.T) {
	assert.Equal(t, RunFullUnderwrite(fixtureInput()), RunFullUnderwrite(fixtureInput()))
}

func TestRunFullUnderwrite_NoPeriodFailsAtSnapshot(t *testing.T) {
	in := fixtureInput()
	in.Options.Strategy = snapshot.StrategySpecificPeriod
	in.Options.PeriodID = "FY1990"

	outcome := RunFullUnderwrite(in)

	require.False(t, outcome.Complete())
	f, ok := outcome.(*Failure)
	require.True(t, ok)
	assert.Equal(t, StageSnapshot, f.FailedAt)
	assert.Contains(t, f.Reason, "FY1990")
	assert.False(t, f.Diagnostics.PipelineComplete)
	assert.Empty(t, f.Diagnostics.StagesCompleted)

	var err error = f
	assert.EqualError(t, err, `underwriting failed at snapshot: no analysis period found: period "FY1990" not in model`)
}

func TestRunFullUnderwrite_EmptyModel(t *testing.T) {
	outcome := RunFullUnderwrite(Input{Model: domain.FinancialModel{}})

	f, ok := outcome.(*Failure)
	require.True(t, ok)
	assert.Equal(t, "no analysis period found for strategy LATEST_FY", f.Reason)
}

func TestRun_StressFailure(t *testing.T) {
	failing := stages{stress: func(domain.FinancialModel, snapshot.Options, policy.Product, *policy.ConfigOverride, []stress.Scenario) (stress.Result, error) {
		return stress.Result{}, stress.ErrNoBaseline
	}}

	outcome := run(fixtureInput(), failing, func(Stage) {})

	f, ok := outcome.(*Failure)
	require.True(t, ok)
	assert.Equal(t, StageStress, f.FailedAt)
	assert.Equal(t, "stress engine produced no baseline snapshot", f.Reason)
	assert.Equal(t, []Stage{StageSnapshot, StageLens, StagePolicy}, f.Diagnostics.StagesCompleted)
}

func TestRun_StressOtherError(t *testing.T) {
	failing := stages{stress: func(domain.FinancialModel, snapshot.Options, policy.Product, *policy.ConfigOverride, []stress.Scenario) (stress.Result, error) {
		return stress.Result{}, errors.New("boom")
	}}

	f, ok := run(fixtureInput(), failing, func(Stage) {}).(*Failure)
	require.True(t, ok)
	assert.Equal(t, "boom", f.Reason)
}

func TestRunFullUnderwrite_CustomPricing(t *testing.T) {
	in := fixtureInput()
	cfg := pricing.DefaultConfig()
	cfg.BaseRate = 0.05
	in.Pricing = &cfg

	res, ok := RunFullUnderwrite(in).(*Result)
	require.True(t, ok)
	assert.Equal(t, 0.05, res.Pricing.BaseRate)
}

func TestRunFullUnderwrite_DoesNotMutateInput(t *testing.T) {
	in := fixtureInput()
	before := in.Model.Clone()

	RunFullUnderwrite(in)

	assert.Equal(t, before, in.Model)
}

func TestService_LogsWithoutChangingOutcome(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService(zerolog.New(&buf).Level(zerolog.DebugLevel))

	outcome := svc.Underwrite(fixtureInput())

	assert.Equal(t, RunFullUnderwrite(fixtureInput()), outcome)
	assert.Contains(t, buf.String(), `"component":"underwriting_service"`)
	assert.Contains(t, buf.String(), "Underwriting complete")
	assert.Contains(t, buf.String(), `"stage":"memo"`)
}

func TestService_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService(zerolog.New(&buf))

	outcome := svc.Underwrite(Input{DealID: "empty"})

	assert.False(t, outcome.Complete())
	assert.Contains(t, buf.String(), "Underwriting halted")
}
