// Package stress re-runs the snapshot builder and policy evaluation under
// adverse scenarios: revenue and EBITDA shocks and interest rate shocks.
package stress

import (
	"errors"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/debt"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/snapshot"
	"github.com/aristath/underwriter/pkg/formulas"
	"gonum.org/v1/gonum/stat"
)

// ErrNoBaseline is returned when the unshocked snapshot cannot be built.
var ErrNoBaseline = errors.New("stress: no baseline snapshot")

// BaselineName labels the unshocked run.
const BaselineName = "baseline"

// Scenario is a set of shocks. Shocks are fractional changes (-0.10 is a
// ten percent decline); RateShockBps is added to every instrument's rate.
type Scenario struct {
	Name         string  `json:"name" msgpack:"name"`
	RevenueShock float64 `json:"revenueShock" msgpack:"revenueShock"`
	EBITDAShock  float64 `json:"ebitdaShock" msgpack:"ebitdaShock"`
	RateShockBps float64 `json:"rateShockBps" msgpack:"rateShockBps"`
}

// DefaultScenarios is the standard stress set.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "revenue_decline_10", RevenueShock: -0.10, EBITDAShock: -0.20},
		{Name: "ebitda_decline_25", EBITDAShock: -0.25},
		{Name: "rate_shock_200bps", RateShockBps: 200},
		{Name: "combined_downturn", RevenueShock: -0.15, EBITDAShock: -0.30, RateShockBps: 300},
	}
}

// ScenarioResult is the snapshot and policy outcome under one scenario.
type ScenarioResult struct {
	Scenario Scenario                 `json:"scenario" msgpack:"scenario"`
	Snapshot *snapshot.CreditSnapshot `json:"snapshot" msgpack:"snapshot"`
	Policy   policy.Result            `json:"policy" msgpack:"policy"`
	DSCR     *float64                 `json:"dscr" msgpack:"dscr"`
}

// Result collects the baseline and every stressed run.
type Result struct {
	Baseline       *snapshot.CreditSnapshot `json:"baseline" msgpack:"baseline"`
	BaselinePolicy policy.Result            `json:"baselinePolicy" msgpack:"baselinePolicy"`
	Scenarios      []ScenarioResult         `json:"scenarios" msgpack:"scenarios"`
	WorstTier      policy.Tier              `json:"worstTier" msgpack:"worstTier"`
	WorstScenario  string                   `json:"worstScenario" msgpack:"worstScenario"`
	MeanDSCR       *float64                 `json:"meanDscr" msgpack:"meanDscr"`
	MinDSCR        *float64                 `json:"minDscr" msgpack:"minDscr"`
}

// Run builds the baseline snapshot and one snapshot per scenario, each
// evaluated against the product policy. A nil scenario list runs the
// defaults. The model and options are never modified.
func Run(model domain.FinancialModel, opts snapshot.Options, product policy.Product, override *policy.ConfigOverride, scenarios []Scenario) (Result, error) {
	baseline := snapshot.Build(model, opts)
	if baseline == nil {
		return Result{}, ErrNoBaseline
	}
	period, ok := snapshot.SelectPeriod(model, opts.Strategy, opts.PeriodID)
	if !ok {
		return Result{}, ErrNoBaseline
	}
	if scenarios == nil {
		scenarios = DefaultScenarios()
	}

	res := Result{
		Baseline:       baseline,
		BaselinePolicy: policy.EvaluatePolicy(baseline, product, override),
		Scenarios:      make([]ScenarioResult, 0, len(scenarios)),
		WorstScenario:  BaselineName,
	}
	res.WorstTier = res.BaselinePolicy.Tier

	var dscrs []float64
	for _, sc := range scenarios {
		shockedOpts := opts
		shockedOpts.Instruments = shockInstruments(opts.Instruments, sc.RateShockBps)

		snap := snapshot.BuildForPeriod(model.BusinessModel, shockPeriod(period, sc, len(opts.Instruments) == 0), shockedOpts)
		pol := policy.EvaluatePolicy(snap, product, override)
		dscr := snap.Metric(metrics.MetricDSCR)

		res.Scenarios = append(res.Scenarios, ScenarioResult{Scenario: sc, Snapshot: snap, Policy: pol, DSCR: dscr})
		if dscr != nil {
			dscrs = append(dscrs, *dscr)
		}
		if pol.Tier.Rank() > res.WorstTier.Rank() {
			res.WorstTier = pol.Tier
			res.WorstScenario = sc.Name
		}
	}

	if len(dscrs) > 0 {
		mean := formulas.RoundTo(stat.Mean(dscrs, nil), 2)
		res.MeanDSCR = &mean
		lowest := dscrs[0]
		for _, d := range dscrs[1:] {
			if d < lowest {
				lowest = d
			}
		}
		res.MinDSCR = &lowest
	}
	return res, nil
}

// shockPeriod applies revenue and EBITDA shocks to a copy of the period.
// Operating income and net income move by the same amount as EBITDA. When
// debt service comes from the interest proxy, the rate shock is applied to
// total debt and added to interest expense.
func shockPeriod(p domain.Period, sc Scenario, interestProxy bool) domain.Period {
	out := p.Clone()
	values := p.Values()

	if rev, ok := values["revenue"]; ok && sc.RevenueShock != 0 {
		out.Income["revenue"] = rev * (1 + sc.RevenueShock)
		if rr, ok := values["recurring_revenue"]; ok {
			out.Income["recurring_revenue"] = rr * (1 + sc.RevenueShock)
		}
	}

	if ebitda, ok := values["ebitda"]; ok && sc.EBITDAShock != 0 {
		delta := ebitda * sc.EBITDAShock
		out.Income["ebitda"] = ebitda + delta
		for _, key := range []string{"operating_income", "net_income"} {
			if v, ok := values[key]; ok {
				out.Income[key] = v + delta
			}
		}
	}

	if interestProxy && sc.RateShockBps != 0 {
		interest, okInterest := values["interest_expense"]
		totalDebt, okDebt := values["total_debt"]
		if okInterest && okDebt {
			out.Income["interest_expense"] = interest + totalDebt*sc.RateShockBps/10_000
		}
	}
	return out
}

func shockInstruments(instruments []debt.Instrument, bps float64) []debt.Instrument {
	if len(instruments) == 0 {
		return nil
	}
	out := make([]debt.Instrument, len(instruments))
	for i, inst := range instruments {
		if inst.Rate != nil && bps != 0 {
			inst = inst.WithRate(*inst.Rate + bps/10_000)
		}
		out[i] = inst
	}
	return out
}
