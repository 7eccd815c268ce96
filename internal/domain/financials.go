// Package domain provides the value types shared by every underwriting stage:
// dated facts, reporting periods, financial models, and business models.
package domain

import (
	"sort"
	"time"
)

// BusinessModel classifies the borrower's operating model.
// Metric applicability and lens selection key off it.
type BusinessModel string

const (
	BusinessModelGeneral       BusinessModel = "general"
	BusinessModelSaaS          BusinessModel = "saas"
	BusinessModelManufacturing BusinessModel = "manufacturing"
	BusinessModelRetail        BusinessModel = "retail"
	BusinessModelServices      BusinessModel = "services"
	BusinessModelRealEstate    BusinessModel = "real_estate"
)

// PeriodType is the kind of reporting period a set of facts belongs to.
type PeriodType string

const (
	// PeriodTypeFYE is a full fiscal year
	PeriodTypeFYE PeriodType = "FYE"
	// PeriodTypeYTD is fiscal year-to-date
	PeriodTypeYTD PeriodType = "YTD"
	// PeriodTypeTTM is trailing twelve months
	PeriodTypeTTM PeriodType = "TTM"
	// PeriodTypeQuarter is a single fiscal quarter
	PeriodTypeQuarter PeriodType = "Q"
)

// IsFullYear reports whether the period covers a complete fiscal year.
func (p PeriodType) IsFullYear() bool {
	return p == PeriodTypeFYE
}

// Statement names the financial statement a fact is reported on.
type Statement string

const (
	StatementIncome   Statement = "income"
	StatementBalance  Statement = "balance"
	StatementCashflow Statement = "cashflow"
)

// Fact is a single normalized, dated numeric fact about a borrower.
type Fact struct {
	Key        string     `json:"key" msgpack:"key"`
	Statement  Statement  `json:"statement" msgpack:"statement"`
	Value      float64    `json:"value" msgpack:"value"`
	PeriodEnd  time.Time  `json:"periodEnd" msgpack:"periodEnd"`
	PeriodType PeriodType `json:"periodType" msgpack:"periodType"`
	Source     string     `json:"source,omitempty" msgpack:"source,omitempty"`
}

// Period is an immutable snapshot of the facts reported for one period.
type Period struct {
	PeriodID     string             `json:"periodId" msgpack:"periodId"`
	PeriodEnd    time.Time          `json:"periodEnd" msgpack:"periodEnd"`
	Type         PeriodType         `json:"type" msgpack:"type"`
	Income       map[string]float64 `json:"income" msgpack:"income"`
	Balance      map[string]float64 `json:"balance" msgpack:"balance"`
	Cashflow     map[string]float64 `json:"cashflow" msgpack:"cashflow"`
	QualityFlags []string           `json:"qualityFlags" msgpack:"qualityFlags"`
}

// Clone returns a deep copy of the period.
func (p Period) Clone() Period {
	out := p
	out.Income = cloneValues(p.Income)
	out.Balance = cloneValues(p.Balance)
	out.Cashflow = cloneValues(p.Cashflow)
	out.QualityFlags = append([]string{}, p.QualityFlags...)
	return out
}

// Values flattens the period's statements into a single fact map.
// Income wins over cash flow, which wins over balance, when a key is
// reported on more than one statement.
func (p Period) Values() map[string]float64 {
	out := make(map[string]float64, len(p.Income)+len(p.Balance)+len(p.Cashflow))
	for k, v := range p.Balance {
		out[k] = v
	}
	for k, v := range p.Cashflow {
		out[k] = v
	}
	for k, v := range p.Income {
		out[k] = v
	}
	return out
}

// FinancialModel is an ordered, period-indexed view of a borrower's financials.
// It has no mutators: a new fact set produces a new model.
type FinancialModel struct {
	BorrowerID    string        `json:"borrowerId,omitempty" msgpack:"borrowerId,omitempty"`
	BusinessModel BusinessModel `json:"businessModel" msgpack:"businessModel"`
	Periods       []Period      `json:"periods" msgpack:"periods"`
}

// Clone returns a deep copy of the model.
func (m FinancialModel) Clone() FinancialModel {
	out := m
	out.Periods = make([]Period, len(m.Periods))
	for i, p := range m.Periods {
		out.Periods[i] = p.Clone()
	}
	return out
}

// Period looks up a period by id.
func (m FinancialModel) Period(id string) (Period, bool) {
	for _, p := range m.Periods {
		if p.PeriodID == id {
			return p, true
		}
	}
	return Period{}, false
}

// SortedByEnd returns the periods ordered by end date (oldest first), ties by type.
func (m FinancialModel) SortedByEnd() []Period {
	out := append([]Period{}, m.Periods...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].PeriodEnd.Equal(out[j].PeriodEnd) {
			return out[i].PeriodEnd.Before(out[j].PeriodEnd)
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func cloneValues(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
