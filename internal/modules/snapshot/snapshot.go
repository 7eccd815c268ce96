// Package snapshot builds credit snapshots (one analysis period plus its
// ratios and debt service) and compares metric sets between snapshots.
package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/aristath/underwriter/internal/domain"
	"github.com/aristath/underwriter/internal/modules/debt"
	"github.com/aristath/underwriter/internal/modules/metrics"
	"github.com/aristath/underwriter/pkg/formulas"
)

// Strategy selects the analysis period from a model.
type Strategy string

const (
	StrategyLatestFY        Strategy = "LATEST_FY"
	StrategyLatestAvailable Strategy = "LATEST_AVAILABLE"
	StrategyLatestInterim   Strategy = "LATEST_INTERIM"
	StrategySpecificPeriod  Strategy = "SPECIFIC_PERIOD"
)

// DebtServiceSource tags which computation produced the debt service figure.
type DebtServiceSource string

const (
	SourceDebtEngine    DebtServiceSource = "debtEngine"
	SourceInterestProxy DebtServiceSource = "income.interest"
)

// Options control snapshot construction. A zero Strategy means LATEST_FY and
// a zero Registry means the built-in seed registry.
type Options struct {
	Strategy    Strategy          `json:"strategy"`
	PeriodID    string            `json:"periodId,omitempty"`
	Instruments []debt.Instrument `json:"instruments,omitempty"`
	Registry    metrics.Registry  `json:"-" msgpack:"-"`
}

// DebtServiceBreakdown splits engine-computed debt service by instrument source.
type DebtServiceBreakdown struct {
	Existing *float64 `json:"existing" msgpack:"existing"`
	Proposed *float64 `json:"proposed" msgpack:"proposed"`
}

// DebtServiceDiagnostics says where the debt service figure came from.
type DebtServiceDiagnostics struct {
	Source             DebtServiceSource  `json:"source" msgpack:"source"`
	AlignmentType      debt.AlignmentType `json:"alignmentType,omitempty" msgpack:"alignmentType,omitempty"`
	InvalidInstruments []string           `json:"invalidInstruments,omitempty" msgpack:"invalidInstruments,omitempty"`
	Notes              []string           `json:"notes,omitempty" msgpack:"notes,omitempty"`
}

// DebtService is the annual debt service used for coverage ratios.
type DebtService struct {
	TotalDebtService *float64                       `json:"totalDebtService" msgpack:"totalDebtService"`
	Breakdown        DebtServiceBreakdown           `json:"breakdown" msgpack:"breakdown"`
	Instruments      []debt.InstrumentServiceResult `json:"instruments,omitempty" msgpack:"instruments,omitempty"`
	Diagnostics      DebtServiceDiagnostics         `json:"diagnostics" msgpack:"diagnostics"`
}

// CreditSnapshot is a read-only view of one analysis period.
type CreditSnapshot struct {
	PeriodID      string                         `json:"periodId" msgpack:"periodId"`
	PeriodEnd     time.Time                      `json:"periodEnd" msgpack:"periodEnd"`
	PeriodType    domain.PeriodType              `json:"periodType" msgpack:"periodType"`
	BusinessModel domain.BusinessModel           `json:"businessModel" msgpack:"businessModel"`
	Facts         map[string]float64             `json:"facts" msgpack:"facts"`
	Metrics       map[string]metrics.MetricValue `json:"metrics" msgpack:"metrics"`
	DebtService   DebtService                    `json:"debtService" msgpack:"debtService"`
	Registry      metrics.RegistryBinding        `json:"registry" msgpack:"registry"`
	QualityFlags  []string                       `json:"qualityFlags,omitempty" msgpack:"qualityFlags,omitempty"`
	Warnings      []string                       `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// Metric returns a metric value, or nil when absent or not computable.
func (s *CreditSnapshot) Metric(id string) *float64 {
	if s == nil {
		return nil
	}
	mv, ok := s.Metrics[id]
	if !ok || mv.Value == nil {
		return nil
	}
	v := *mv.Value
	return &v
}

// MetricValues flattens the snapshot's metrics to id -> value.
// A nil snapshot yields an empty map.
func (s *CreditSnapshot) MetricValues() map[string]*float64 {
	if s == nil {
		return map[string]*float64{}
	}
	out := make(map[string]*float64, len(s.Metrics))
	for id := range s.Metrics {
		out[id] = s.Metric(id)
	}
	return out
}

// Build selects a period per the options' strategy and computes its metrics.
// It returns nil when no period qualifies.
func Build(model domain.FinancialModel, opts Options) *CreditSnapshot {
	period, ok := SelectPeriod(model, opts.Strategy, opts.PeriodID)
	if !ok {
		return nil
	}
	return BuildForPeriod(model.BusinessModel, period, opts)
}

// BuildForPeriod computes a snapshot for an explicit period, bypassing
// period selection.
func BuildForPeriod(businessModel domain.BusinessModel, period domain.Period, opts Options) *CreditSnapshot {
	reg := opts.Registry
	if reg.IsZero() {
		reg = metrics.SeedRegistry()
	}

	values := period.Values()
	facts := make(formulas.Facts, len(values)+2)
	for k, v := range values {
		facts[k] = formulas.Ptr(v)
	}

	snap := &CreditSnapshot{
		PeriodID:      period.PeriodID,
		PeriodEnd:     period.PeriodEnd,
		PeriodType:    period.Type,
		BusinessModel: businessModel,
		Facts:         values,
		Registry:      reg.Binding(),
		QualityFlags:  append([]string(nil), period.QualityFlags...),
	}

	snap.DebtService = debtService(period, opts.Instruments, &snap.Warnings)

	facts[metrics.FactDebtService] = snap.DebtService.TotalDebtService
	if ebitda, ok := values["ebitda"]; ok {
		facts[metrics.FactCashFlowAvailable] = formulas.Ptr(ebitda)
	} else {
		facts[metrics.FactCashFlowAvailable] = nil
		snap.Warnings = append(snap.Warnings, "ebitda unavailable: cash flow available cannot be determined")
	}

	snap.Metrics = metrics.EvaluateAll(reg, facts, businessModel)
	sort.Strings(snap.Warnings)
	return snap
}

func debtService(period domain.Period, instruments []debt.Instrument, warnings *[]string) DebtService {
	if len(instruments) == 0 {
		ds := DebtService{Diagnostics: DebtServiceDiagnostics{Source: SourceInterestProxy}}
		if interest, ok := period.Values()["interest_expense"]; ok {
			ds.TotalDebtService = formulas.Ptr(interest)
			ds.Breakdown.Existing = formulas.Ptr(interest)
		} else {
			*warnings = append(*warnings, "interest_expense unavailable for debt service proxy")
		}
		return ds
	}

	portfolio := debt.ComputeDebtPortfolioService(instruments)
	aligned := debt.AlignDebtServiceToPeriod(portfolio, period.Type)

	for _, id := range portfolio.Diagnostics.InvalidInstruments {
		*warnings = append(*warnings, fmt.Sprintf("instrument %s excluded from debt service", id))
	}

	notes := append([]string{}, portfolio.Diagnostics.Notes...)
	notes = append(notes, aligned.Notes...)
	if len(notes) == 0 {
		notes = nil
	}

	return DebtService{
		TotalDebtService: aligned.TotalDebtService,
		Breakdown: DebtServiceBreakdown{
			Existing: aligned.Existing,
			Proposed: aligned.Proposed,
		},
		Instruments: portfolio.Instruments,
		Diagnostics: DebtServiceDiagnostics{
			Source:             SourceDebtEngine,
			AlignmentType:      aligned.AlignmentType,
			InvalidInstruments: portfolio.Diagnostics.InvalidInstruments,
			Notes:              notes,
		},
	}
}
