// Package memo renders the structured credit memo for an underwriting run.
// Rendering is pure: the same artifacts always produce the same memo.
package memo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/underwriter/internal/modules/lens"
	"github.com/aristath/underwriter/internal/modules/policy"
	"github.com/aristath/underwriter/internal/modules/pricing"
	"github.com/aristath/underwriter/internal/modules/snapshot"
	"github.com/aristath/underwriter/internal/modules/stress"
)

// Section is a headed block of memo lines.
type Section struct {
	Heading string   `json:"heading" msgpack:"heading"`
	Lines   []string `json:"lines" msgpack:"lines"`
}

// Memo is the rendered credit memo.
type Memo struct {
	Title          string                 `json:"title" msgpack:"title"`
	Recommendation pricing.Recommendation `json:"recommendation" msgpack:"recommendation"`
	Summary        string                 `json:"summary" msgpack:"summary"`
	Sections       []Section              `json:"sections" msgpack:"sections"`
}

// Input bundles every artifact the memo draws on.
type Input struct {
	DealID   string
	Snapshot *snapshot.CreditSnapshot
	Lens     lens.Analysis
	Policy   policy.Result
	Stress   stress.Result
	Pricing  pricing.Quote
}

// Render builds the memo.
func Render(in Input) Memo {
	title := "Credit Memo"
	if in.DealID != "" {
		title = fmt.Sprintf("Credit Memo: %s", in.DealID)
	}

	m := Memo{
		Title:          title,
		Recommendation: in.Pricing.Recommendation,
		Summary:        summary(in),
	}
	m.Sections = []Section{
		snapshotSection(in.Snapshot),
		debtServiceSection(in.Snapshot),
		lensSection(in.Lens),
		policySection(in.Policy),
		stressSection(in.Stress),
		pricingSection(in.Pricing),
	}
	return m
}

// Text renders the memo as plain text.
func (m Memo) Text() string {
	var b strings.Builder
	b.WriteString(m.Title)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Recommendation: %s\n", m.Recommendation)
	b.WriteString(m.Summary)
	b.WriteString("\n")
	for _, s := range m.Sections {
		fmt.Fprintf(&b, "\n## %s\n", s.Heading)
		for _, line := range s.Lines {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}
	return b.String()
}

func summary(in Input) string {
	period := "no analysis period"
	if in.Snapshot != nil {
		period = in.Snapshot.PeriodID
	}
	return fmt.Sprintf("Policy tier %s (%s), worst stressed tier %s, priced at tier %s: %s.",
		in.Policy.Tier, in.Policy.PolicyVersion, in.Stress.WorstTier, in.Pricing.PricingTier, period)
}

func snapshotSection(snap *snapshot.CreditSnapshot) Section {
	s := Section{Heading: "Financial Snapshot", Lines: []string{}}
	if snap == nil {
		s.Lines = append(s.Lines, "no snapshot available")
		return s
	}
	s.Lines = append(s.Lines,
		fmt.Sprintf("Period %s (%s) ending %s", snap.PeriodID, snap.PeriodType, snap.PeriodEnd.Format("2006-01-02")),
		fmt.Sprintf("Business model: %s", snap.BusinessModel),
		fmt.Sprintf("Metric registry %s (%s)", snap.Registry.VersionID, shortHash(snap.Registry.ContentHash)),
	)

	ids := make([]string, 0, len(snap.Metrics))
	for id := range snap.Metrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		mv := snap.Metrics[id]
		if mv.Value == nil {
			s.Lines = append(s.Lines, fmt.Sprintf("%s: n/a", mv.Label))
			continue
		}
		s.Lines = append(s.Lines, fmt.Sprintf("%s: %s", mv.Label, formatValue(*mv.Value, mv.IsPercent)))
	}
	s.Lines = append(s.Lines, snap.Warnings...)
	return s
}

func debtServiceSection(snap *snapshot.CreditSnapshot) Section {
	s := Section{Heading: "Debt Service", Lines: []string{}}
	if snap == nil {
		return s
	}
	ds := snap.DebtService
	s.Lines = append(s.Lines,
		fmt.Sprintf("Source: %s", ds.Diagnostics.Source),
		fmt.Sprintf("Total annual debt service: %s", formatMoney(ds.TotalDebtService)),
	)
	if ds.Diagnostics.Source == snapshot.SourceDebtEngine {
		s.Lines = append(s.Lines,
			fmt.Sprintf("Existing: %s", formatMoney(ds.Breakdown.Existing)),
			fmt.Sprintf("Proposed: %s", formatMoney(ds.Breakdown.Proposed)),
		)
	}
	for _, inst := range ds.Instruments {
		for _, note := range inst.Diagnostics.Notes {
			s.Lines = append(s.Lines, fmt.Sprintf("%s: %s", inst.InstrumentID, note))
		}
	}
	s.Lines = append(s.Lines, ds.Diagnostics.Notes...)
	return s
}

func lensSection(a lens.Analysis) Section {
	s := Section{Heading: fmt.Sprintf("Business Lens (%s)", a.Lens), Lines: []string{}}
	for _, f := range a.Highlights {
		s.Lines = append(s.Lines, "Strength: "+f.Message)
	}
	for _, f := range a.Concerns {
		s.Lines = append(s.Lines, "Concern: "+f.Message)
	}
	s.Lines = append(s.Lines, a.Notes...)
	return s
}

func policySection(r policy.Result) Section {
	s := Section{Heading: "Policy", Lines: []string{}}
	s.Lines = append(s.Lines, fmt.Sprintf("Product %s, policy %s: tier %s", r.Product, r.PolicyVersion, r.Tier))
	if r.Passed {
		s.Lines = append(s.Lines, "All evaluated thresholds met")
	}
	for _, b := range r.Breaches {
		s.Lines = append(s.Lines, fmt.Sprintf("%s breach on %s: actual %.2f, deviation %.1f%%",
			b.Severity, b.Metric, b.ActualValue, b.Deviation*100))
	}
	s.Lines = append(s.Lines, r.Warnings...)
	return s
}

func stressSection(r stress.Result) Section {
	s := Section{Heading: "Stress Testing", Lines: []string{}}
	for _, sc := range r.Scenarios {
		dscr := "n/a"
		if sc.DSCR != nil {
			dscr = fmt.Sprintf("%.2f", *sc.DSCR)
		}
		s.Lines = append(s.Lines, fmt.Sprintf("%s: DSCR %s, tier %s", sc.Scenario.Name, dscr, sc.Policy.Tier))
	}
	s.Lines = append(s.Lines, fmt.Sprintf("Worst tier %s under %s", r.WorstTier, r.WorstScenario))
	return s
}

func pricingSection(q pricing.Quote) Section {
	s := Section{Heading: "Pricing", Lines: []string{}}
	s.Lines = append(s.Lines,
		fmt.Sprintf("All-in rate %.3f%% (base %.2f%% + %.0f bps + %.0f bps stress)", q.AllInRate*100, q.BaseRate*100, q.SpreadBps, q.StressAddOnBps),
		fmt.Sprintf("Origination fee %.2f%%", q.OriginationFeePct*100),
	)
	s.Lines = append(s.Lines, q.Rationale...)
	return s
}

func formatValue(v float64, percent bool) string {
	if percent {
		return fmt.Sprintf("%.1f%%", v*100)
	}
	return fmt.Sprintf("%.2f", v)
}

func formatMoney(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
