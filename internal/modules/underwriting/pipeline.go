// Package underwriting chains the computation stages into one deterministic
// call: snapshot, lens and policy, stress, pricing, then memo.
package underwriting

import (
	"errors"
	"fmt"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/lens"
	"github.com/aristath/underwriter/internal/modules/memo"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/pricing"
	"github.com/aristath/underwriter/internal/modules/snapshot"
	"github.com/aristath/underwriter/internal/modules/stress"
)

// Stage names a pipeline stage.
type Stage string

const (
	StageSnapshot Stage = "snapshot"
	StageLens     Stage = "lens"
	StagePolicy   Stage = "policy"
	StageStress   Stage = "stress"
	StagePricing  Stage = "pricing"
	StageMemo     Stage = "memo"
)

// Input is everything one underwriting run needs.
type Input struct {
	DealID    string                 `json:"dealId"`
	Model     domain.FinancialModel  `json:"model"`
	Options   snapshot.Options       `json:"options"`
	Product   policy.Product         `json:"product"`
	Override  *policy.ConfigOverride `json:"override,omitempty"`
	Scenarios []stress.Scenario      `json:"scenarios,omitempty"`
	Pricing   *pricing.Config        `json:"pricing,omitempty"`
}

// Diagnostics reports how far the pipeline got.
type Diagnostics struct {
	PipelineComplete bool    `json:"pipelineComplete" msgpack:"pipelineComplete"`
	StagesCompleted  []Stage `json:"stagesCompleted" msgpack:"stagesCompleted"`
}

// Outcome is either a *Result or a *Failure.
type Outcome interface {
	Complete() bool
	Diag() Diagnostics
	outcome()
}

// Result is a completed underwriting run.
type Result struct {
	DealID      string                   `json:"dealId" msgpack:"dealId"`
	Snapshot    *snapshot.CreditSnapshot `json:"snapshot" msgpack:"snapshot"`
	Lens        lens.Analysis            `json:"lens" msgpack:"lens"`
	Policy      policy.Result            `json:"policy" msgpack:"policy"`
	Stress      stress.Result            `json:"stress" msgpack:"stress"`
	Pricing     pricing.Quote            `json:"pricing" msgpack:"pricing"`
	Memo        memo.Memo                `json:"memo" msgpack:"memo"`
	Diagnostics Diagnostics              `json:"diagnostics" msgpack:"diagnostics"`
}

// Failure is a run halted by a pipeline-fatal condition.
type Failure struct {
	DealID      string      `json:"dealId" msgpack:"dealId"`
	FailedAt    Stage       `json:"failedAt" msgpack:"failedAt"`
	Reason      string      `json:"reason" msgpack:"reason"`
	Diagnostics Diagnostics `json:"diagnostics" msgpack:"diagnostics"`
}

func (*Result) Complete() bool       { return true }
func (r *Result) Diag() Diagnostics  { return r.Diagnostics }
func (*Result) outcome()             {}
func (*Failure) Complete() bool      { return false }
func (f *Failure) Diag() Diagnostics { return f.Diagnostics }
func (*Failure) outcome()            {}

// Error lets a failure travel as an error where callers want one.
func (f *Failure) Error() string {
	return fmt.Sprintf("underwriting failed at %s: %s", f.FailedAt, f.Reason)
}

// RunFullUnderwrite runs every stage in order. It returns a *Failure when no
// analysis period qualifies or stress testing cannot build a baseline;
// every other stage always produces a value.
func RunFullUnderwrite(in Input) Outcome {
	return run(in, defaultStages, func(Stage) {})
}

// stages holds the stage implementations that can fail.
type stages struct {
	stress func(domain.FinancialModel, snapshot.Options, policy.Product, *policy.ConfigOverride, []stress.Scenario) (stress.Result, error)
}

var defaultStages = stages{stress: stress.Run}

func run(in Input, impl stages, done func(Stage)) Outcome {
	var stages []Stage
	complete := func(s Stage) {
		stages = append(stages, s)
		done(s)
	}
	fail := func(at Stage, reason string) *Failure {
		return &Failure{
			DealID:      in.DealID,
			FailedAt:    at,
			Reason:      reason,
			Diagnostics: Diagnostics{StagesCompleted: append([]Stage{}, stages...)},
		}
	}

	snap := snapshot.Build(in.Model, in.Options)
	if snap == nil {
		return fail(StageSnapshot, noPeriodReason(in.Options))
	}
	complete(StageSnapshot)

	analysis := lens.Analyze(snap)
	complete(StageLens)

	pol := policy.EvaluatePolicy(snap, in.Product, in.Override)
	complete(StagePolicy)

	st, err := impl.stress(in.Model, in.Options, in.Product, in.Override, in.Scenarios)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, stress.ErrNoBaseline) {
			reason = "stress engine produced no baseline snapshot"
		}
		return fail(StageStress, reason)
	}
	complete(StageStress)

	cfg := pricing.DefaultConfig()
	if in.Pricing != nil {
		cfg = *in.Pricing
	}
	quote := pricing.Price(pol.Tier, st.WorstTier, cfg)
	complete(StagePricing)

	m := memo.Render(memo.Input{
		DealID:   in.DealID,
		Snapshot: snap,
		Lens:     analysis,
		Policy:   pol,
		Stress:   st,
		Pricing:  quote,
	})
	complete(StageMemo)

	return &Result{
		DealID:   in.DealID,
		Snapshot: snap,
		Lens:     analysis,
		Policy:   pol,
		Stress:   st,
		Pricing:  quote,
		Memo:     m,
		Diagnostics: Diagnostics{
			PipelineComplete: true,
			StagesCompleted:  stages,
		},
	}
}

func noPeriodReason(opts snapshot.Options) string {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = snapshot.StrategyLatestFY
	}
	if strategy == snapshot.StrategySpecificPeriod {
		return fmt.Sprintf("no analysis period found: period %q not in model", opts.PeriodID)
	}
	return fmt.Sprintf("no analysis period found for strategy %s", strategy)
}
