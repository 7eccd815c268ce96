package debt

import (
	"github.com/aristath/underwriter/internal/domain"
)

// AlignmentType records how portfolio debt service was mapped onto a period.
type AlignmentType string

const (
	AlignmentFY                AlignmentType = "FY"
	AlignmentInterimUnprorated AlignmentType = "INTERIM_UNPRORATED"
)

// NoProrationNote is attached to every interim alignment.
const NoProrationNote = "no proration applied: interim period uses the full annual debt service"

// AlignedDebtService is portfolio debt service expressed for one reporting period.
type AlignedDebtService struct {
	TotalDebtService *float64          `json:"totalDebtService" msgpack:"totalDebtService"`
	Existing         *float64          `json:"existing" msgpack:"existing"`
	Proposed         *float64          `json:"proposed" msgpack:"proposed"`
	PeriodType       domain.PeriodType `json:"periodType" msgpack:"periodType"`
	AlignmentType    AlignmentType     `json:"alignmentType" msgpack:"alignmentType"`
	Notes            []string          `json:"notes,omitempty" msgpack:"notes,omitempty"`
}

// AlignDebtServiceToPeriod maps the portfolio's annual total onto a period.
// Interim periods deliberately keep the full annual figure and say so in a
// note; prorating would change coverage ratios and needs a product decision.
func AlignDebtServiceToPeriod(portfolio PortfolioServiceResult, periodType domain.PeriodType) AlignedDebtService {
	out := AlignedDebtService{
		TotalDebtService: copyPtr(portfolio.TotalAnnualDebtService),
		Existing:         copyPtr(portfolio.ExistingAnnualDebtService),
		Proposed:         copyPtr(portfolio.ProposedAnnualDebtService),
		PeriodType:       periodType,
		AlignmentType:    AlignmentFY,
	}
	if !periodType.IsFullYear() {
		out.AlignmentType = AlignmentInterimUnprorated
		out.Notes = []string{NoProrationNote}
	}
	return out
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
