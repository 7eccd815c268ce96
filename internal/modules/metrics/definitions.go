// Package metrics provides the versioned metric registry: named formula
// definitions over fact keys, draft/publish immutability, content hashing,
// and evaluation of every applicable metric against a fact set.
package metrics

import (
	"github.com/aristath/underwriter/internal/domain"
)

// MetricDefinition is one named formula in the registry.
type MetricDefinition struct {
	ID            string                 `json:"id" msgpack:"id"`
	Label         string                 `json:"label" msgpack:"label"`
	Expr          string                 `json:"expr" msgpack:"expr"`
	Precision     int                    `json:"precision" msgpack:"precision"`
	IsPercent     bool                   `json:"isPercent,omitempty" msgpack:"isPercent,omitempty"`
	RequiredFacts []string               `json:"requiredFacts" msgpack:"requiredFacts"`
	ApplicableTo  []domain.BusinessModel `json:"applicableTo" msgpack:"applicableTo"`
	Version       int                    `json:"version" msgpack:"version"`
}

// AppliesTo reports whether the metric is meaningful for a business model.
// An empty ApplicableTo list means the metric applies to every model.
func (d MetricDefinition) AppliesTo(model domain.BusinessModel) bool {
	if len(d.ApplicableTo) == 0 {
		return true
	}
	for _, m := range d.ApplicableTo {
		if m == model {
			return true
		}
	}
	return false
}

// Well-known metric ids referenced outside the registry.
const (
	MetricRevenue           = "revenue"
	MetricEBITDA            = "ebitda"
	MetricEBITDAMargin      = "ebitda_margin"
	MetricGrossMargin       = "gross_margin"
	MetricNetMargin         = "net_margin"
	MetricCurrentRatio      = "current_ratio"
	MetricQuickRatio        = "quick_ratio"
	MetricWorkingCapital    = "working_capital"
	MetricDebtToEBITDA      = "debt_to_ebitda"
	MetricDebtToEquity      = "debt_to_equity"
	MetricInterestCoverage  = "interest_coverage"
	MetricDSO               = "days_sales_outstanding"
	MetricDSCR              = "dscr"
	MetricFixedCharge       = "fixed_charge_coverage"
	MetricInventoryTurnover = "inventory_turnover"
	MetricRentToRevenue     = "rent_to_revenue"
	MetricLoanToValue       = "loan_to_value"
	MetricRecurringRevenue  = "recurring_revenue_ratio"
)

// Derived fact keys injected by the snapshot builder before evaluation.
const (
	FactCashFlowAvailable = "cash_flow_available"
	FactDebtService       = "debt_service"
)

// SeedDefinitions returns the built-in canonical metric set used whenever no
// published registry version is available.
//
// The grammar has no parentheses, so ratios of differences are written as a
// difference of ratios (e.g. fixed charge coverage).
func SeedDefinitions() []MetricDefinition {
	return []MetricDefinition{
		{ID: MetricRevenue, Label: "Revenue", Expr: "revenue", Precision: 0, RequiredFacts: []string{"revenue"}, Version: 1},
		{ID: MetricEBITDA, Label: "EBITDA", Expr: "ebitda", Precision: 0, RequiredFacts: []string{"ebitda"}, Version: 1},
		{ID: MetricEBITDAMargin, Label: "EBITDA Margin", Expr: "ebitda / revenue", Precision: 4, IsPercent: true, RequiredFacts: []string{"ebitda", "revenue"}, Version: 1},
		{ID: MetricGrossMargin, Label: "Gross Margin", Expr: "gross_profit / revenue", Precision: 4, IsPercent: true, RequiredFacts: []string{"gross_profit", "revenue"}, Version: 1},
		{ID: MetricNetMargin, Label: "Net Margin", Expr: "net_income / revenue", Precision: 4, IsPercent: true, RequiredFacts: []string{"net_income", "revenue"}, Version: 1},
		{ID: MetricCurrentRatio, Label: "Current Ratio", Expr: "current_assets / current_liabilities", Precision: 2, RequiredFacts: []string{"current_assets", "current_liabilities"}, Version: 1},
		{ID: MetricQuickRatio, Label: "Quick Ratio", Expr: "cash / current_liabilities + accounts_receivable / current_liabilities", Precision: 2, RequiredFacts: []string{"cash", "accounts_receivable", "current_liabilities"}, Version: 1},
		{ID: MetricWorkingCapital, Label: "Working Capital", Expr: "current_assets - current_liabilities", Precision: 0, RequiredFacts: []string{"current_assets", "current_liabilities"}, Version: 1},
		{ID: MetricDebtToEBITDA, Label: "Total Debt / EBITDA", Expr: "total_debt / ebitda", Precision: 2, RequiredFacts: []string{"total_debt", "ebitda"}, Version: 1},
		{ID: MetricDebtToEquity, Label: "Debt to Equity", Expr: "total_liabilities / total_equity", Precision: 2, RequiredFacts: []string{"total_liabilities", "total_equity"}, Version: 1},
		{ID: MetricInterestCoverage, Label: "Interest Coverage", Expr: "ebitda / interest_expense", Precision: 2, RequiredFacts: []string{"ebitda", "interest_expense"}, Version: 1},
		{ID: MetricDSO, Label: "Days Sales Outstanding", Expr: "accounts_receivable / revenue * 365", Precision: 1, RequiredFacts: []string{"accounts_receivable", "revenue"}, Version: 1},
		{ID: MetricDSCR, Label: "Debt Service Coverage", Expr: "cash_flow_available / debt_service", Precision: 2, RequiredFacts: []string{FactCashFlowAvailable, FactDebtService}, Version: 1},
		{ID: MetricFixedCharge, Label: "Fixed Charge Coverage", Expr: "cash_flow_available / debt_service - capex / debt_service", Precision: 2, RequiredFacts: []string{FactCashFlowAvailable, FactDebtService, "capex"}, Version: 1},
		{ID: MetricInventoryTurnover, Label: "Inventory Turnover", Expr: "cost_of_goods_sold / inventory", Precision: 2, RequiredFacts: []string{"cost_of_goods_sold", "inventory"},
			ApplicableTo: []domain.BusinessModel{domain.BusinessModelManufacturing, domain.BusinessModelRetail}, Version: 1},
		{ID: MetricRentToRevenue, Label: "Occupancy Cost Ratio", Expr: "rent_expense / revenue", Precision: 4, IsPercent: true, RequiredFacts: []string{"rent_expense", "revenue"},
			ApplicableTo: []domain.BusinessModel{domain.BusinessModelRetail, domain.BusinessModelServices}, Version: 1},
		{ID: MetricLoanToValue, Label: "Loan to Value", Expr: "total_debt / property_value", Precision: 4, IsPercent: true, RequiredFacts: []string{"total_debt", "property_value"},
			ApplicableTo: []domain.BusinessModel{domain.BusinessModelRealEstate}, Version: 1},
		{ID: MetricRecurringRevenue, Label: "Recurring Revenue Ratio", Expr: "recurring_revenue / revenue", Precision: 4, IsPercent: true, RequiredFacts: []string{"recurring_revenue", "revenue"},
			ApplicableTo: []domain.BusinessModel{domain.BusinessModelSaaS}, Version: 1},
	}
}
